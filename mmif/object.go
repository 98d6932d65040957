package mmif

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// Freezable is implemented by every MMIF entity and collection.
//
// Freeze blocks further assignment on the receiver only. DeepFreeze also
// freezes everything reachable from it and reports whether every reachable
// value ended up either frozen or inherently immutable.
type Freezable interface {
	Freeze()
	DeepFreeze() bool
	IsFrozen() bool
}

// Serializable is implemented by every MMIF entity and collection.
type Serializable interface {
	Serialize(pretty bool) (string, error)
	plain(o encodeOptions) interface{}
}

type encodeOptions struct {
	// equality drops timestamps and keys collections by id so that two
	// serializations can be compared regardless of order and clock.
	equality bool
}

// attr is one named attribute of an entity. Keys use the internal naming.
type attr struct {
	key       string
	required  bool
	timestamp bool
	get       func() interface{}
	set       func(v interface{}) error
}

// entity is the property container contract every MMIF object implements.
type entity interface {
	Freezable
	kind() string
	attrs() []attr
	// extras returns nil when the entity disallows additional properties.
	extras() *bag
}

// frost holds the frozen flag of an entity or collection.
type frost struct {
	frozen bool
}

func (f *frost) Freeze() { f.frozen = true }

func (f *frost) IsFrozen() bool { return f.frozen }

// bag is the insertion-ordered additional-properties map of an entity.
type bag struct {
	keys   []string
	values map[string]interface{}
}

func newBag() *bag {
	return &bag{values: map[string]interface{}{}}
}

func (b *bag) get(k string) (interface{}, bool) {
	v, ok := b.values[k]
	return v, ok
}

func (b *bag) set(k string, v interface{}) {
	if _, ok := b.values[k]; !ok {
		b.keys = append(b.keys, k)
	}
	b.values[k] = v
}

func (b *bag) len() int { return len(b.keys) }

func findAttr(attrs []attr, key string) (attr, bool) {
	for _, a := range attrs {
		if a.key == key {
			return a, true
		}
	}
	return attr{}, false
}

// assign routes one key to a named attribute or to the additional
// properties. It does not look at the frozen flag.
func assign(e entity, key string, v interface{}) error {
	key = internalKey(key)
	if a, ok := findAttr(e.attrs(), key); ok {
		return a.set(v)
	}
	b := e.extras()
	if b == nil {
		return additionalProperty(e.kind(), wireKey(key))
	}
	b.set(key, fromAtSign(v))
	return nil
}

func setItem(e entity, key string, v interface{}) error {
	if e.IsFrozen() {
		return immutable(e.kind())
	}
	return assign(e, key, v)
}

func getItem(e entity, key string) (interface{}, bool) {
	key = internalKey(key)
	if a, ok := findAttr(e.attrs(), key); ok {
		return a.get(), true
	}
	b := e.extras()
	if b == nil {
		return nil, false
	}
	v, ok := b.get(key)
	if ok && e.IsFrozen() {
		v = cloneJSON(v)
	}
	return v, ok
}

// decode populates a fresh entity from an object whose keys were already
// renamed. Keys are visited in sorted order so failures are reproducible.
func decode(e entity, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := assign(e, k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func encode(e entity, o encodeOptions) map[string]interface{} {
	out := map[string]interface{}{}
	if b := e.extras(); b != nil {
		for _, k := range b.keys {
			v := b.values[k]
			if v == nil {
				continue
			}
			out[wireKey(k)] = plainValue(v, o)
		}
	}
	for _, a := range e.attrs() {
		if a.timestamp && o.equality {
			continue
		}
		v := a.get()
		if !a.required && isEmpty(v) {
			continue
		}
		out[wireKey(a.key)] = plainValue(v, o)
	}
	return out
}

func plainValue(v interface{}, o encodeOptions) interface{} {
	switch x := v.(type) {
	case Serializable:
		return x.plain(o)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.Format(timeLayout)
	case map[string]interface{}, []interface{}:
		return toAtSign(x)
	}
	return v
}

// entitySize counts the non-empty named attributes plus the additional ones.
func entitySize(e entity) int {
	n := 0
	for _, a := range e.attrs() {
		if !isEmpty(a.get()) {
			n++
		}
	}
	if b := e.extras(); b != nil {
		n += b.len()
	}
	return n
}

type lengther interface {
	Len() int
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case time.Time:
		return x.IsZero()
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	case entity:
		return entitySize(x) == 0
	case lengther:
		return x.Len() == 0
	}
	return false
}

func deepFreeze(e entity) bool {
	e.Freeze()
	fully := true
	for _, a := range e.attrs() {
		fully = freezeMember(a.get()) && fully
	}
	if b := e.extras(); b != nil {
		for _, k := range b.keys {
			if !freezeMember(b.values[k]) {
				log.WithField("key", wireKey(k)).Debugf("%s holds a value that cannot be frozen", e.kind())
				fully = false
			}
		}
	}
	return fully
}

// freezeMember freezes v when it is freezable and reports whether it is
// now immutable. Decoded JSON containers count as immutable because a
// frozen entity only hands out copies of them.
func freezeMember(v interface{}) bool {
	switch x := v.(type) {
	case Freezable:
		return x.DeepFreeze()
	case nil, string, bool, json.Number, time.Time,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case []interface{}:
		fully := true
		for _, e := range x {
			fully = freezeMember(e) && fully
		}
		return fully
	case map[string]interface{}:
		fully := true
		for _, e := range x {
			fully = freezeMember(e) && fully
		}
		return fully
	}
	return false
}

// Equal reports whether a and b are of the same type and serialize to the
// same content. Timestamps and the order of keyed collections and map
// entries are ignored.
func Equal(a, b Serializable) bool {
	if a == nil || b == nil {
		return a == b
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	o := encodeOptions{equality: true}
	return jsonEqual(a.plain(o), b.plain(o))
}

func serialize(s Serializable, pretty bool) (string, error) {
	return marshal(s.plain(encodeOptions{}), pretty)
}
