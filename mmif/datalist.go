package mmif

import (
	"encoding/json"
)

// listItem is what a DataList can hold: anything keyed by its own id.
type listItem interface {
	Serializable
	Freezable
	ID() string
}

// DataList is an insertion-ordered collection keyed by the id of each
// element. It serializes as a plain JSON array.
type DataList[T listItem] struct {
	frost
	name  string
	keys  []string
	items map[string]T
	elem  func(map[string]interface{}) (T, error)
}

func newDataList[T listItem](name string, elem func(map[string]interface{}) (T, error)) *DataList[T] {
	return &DataList[T]{name: name, items: map[string]T{}, elem: elem}
}

// Append adds value under its own id. An existing id is a KeyConflict unless
// overwrite is set, in which case the value replaces the old one in place.
func (l *DataList[T]) Append(value T, overwrite bool) error {
	if l.frozen {
		return immutable(l.name)
	}
	key := value.ID()
	if _, ok := l.items[key]; ok && !overwrite {
		return newError(ErrKeyConflict, "key %s already exists in %s", key, l.name)
	}
	l.put(key, value)
	return nil
}

// Set assigns value to key, the subscript form of Append with overwrite.
// key must be the id of value.
func (l *DataList[T]) Set(key string, value T) error {
	if l.frozen {
		return immutable(l.name)
	}
	if key != value.ID() {
		return validationErrorf("cannot store %s under key %s in %s", value.ID(), key, l.name)
	}
	l.put(key, value)
	return nil
}

func (l *DataList[T]) put(key string, value T) {
	if _, ok := l.items[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.items[key] = value
}

// Get returns the element stored under key; ok is false when there is none.
func (l *DataList[T]) Get(key string) (value T, ok bool) {
	value, ok = l.items[key]
	return value, ok
}

func (l *DataList[T]) Contains(key string) bool {
	_, ok := l.items[key]
	return ok
}

func (l *DataList[T]) Len() int { return len(l.keys) }

// Keys returns the ids in insertion order.
func (l *DataList[T]) Keys() []string {
	return append([]string(nil), l.keys...)
}

// Items returns the elements in insertion order.
func (l *DataList[T]) Items() []T {
	out := make([]T, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, l.items[k])
	}
	return out
}

// Reversed returns the elements, most recently inserted first.
func (l *DataList[T]) Reversed() []T {
	out := make([]T, 0, len(l.keys))
	for i := len(l.keys) - 1; i >= 0; i-- {
		out = append(out, l.items[l.keys[i]])
	}
	return out
}

func (l *DataList[T]) DeepFreeze() bool {
	l.Freeze()
	fully := true
	for _, k := range l.keys {
		fully = l.items[k].DeepFreeze() && fully
	}
	return fully
}

func (l *DataList[T]) plain(o encodeOptions) interface{} {
	if o.equality {
		out := make(map[string]interface{}, len(l.keys))
		for _, k := range l.keys {
			out[k] = l.items[k].plain(o)
		}
		return out
	}
	out := make([]interface{}, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, l.items[k].plain(o))
	}
	return out
}

func (l *DataList[T]) Serialize(pretty bool) (string, error) {
	return serialize(l, pretty)
}

func (l *DataList[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.plain(encodeOptions{}))
}

// Deserialize replaces the content of the list with the elements of a JSON
// array given as text, bytes or an already decoded slice.
func (l *DataList[T]) Deserialize(input interface{}) error {
	if l.frozen {
		return immutable(l.name)
	}
	arr, err := loadArray(input)
	if err != nil {
		return err
	}
	return l.fill(arr)
}

// fill replaces the content of the list. Nothing changes unless every
// element decodes.
func (l *DataList[T]) fill(arr []interface{}) error {
	if l.frozen {
		return immutable(l.name)
	}
	keys := make([]string, 0, len(arr))
	items := make(map[string]T, len(arr))
	for i, raw := range arr {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return validationErrorf("%s[%d] must be an object, got %s", l.name, i, jsonKind(raw))
		}
		v, err := l.elem(m)
		if err != nil {
			return err
		}
		key := v.ID()
		if _, ok := items[key]; ok {
			return newError(ErrKeyConflict, "key %s already exists in %s", key, l.name)
		}
		keys = append(keys, key)
		items[key] = v
	}
	l.keys, l.items = keys, items
	return nil
}

// assign replaces the content of the list with the elements of other. The
// two lists share elements but not their index.
func (l *DataList[T]) assign(other *DataList[T]) error {
	if l.frozen {
		return immutable(l.name)
	}
	if other == l {
		return nil
	}
	items := make(map[string]T, len(other.keys))
	for _, k := range other.keys {
		items[k] = other.items[k]
	}
	l.keys, l.items = append([]string(nil), other.keys...), items
	return nil
}

// listAttr binds an attribute holding a DataList. The list itself is never
// replaced, only refilled, so references handed out earlier stay valid.
func listAttr[T listItem](key string, l *DataList[T], required bool) attr {
	return attr{
		key:      key,
		required: required,
		get:      func() interface{} { return l },
		set: func(v interface{}) error {
			switch x := v.(type) {
			case *DataList[T]:
				return l.assign(x)
			case []interface{}:
				return l.fill(fromAtSign(x).([]interface{}))
			}
			return validationErrorf("%s must be an array, got %s", wireKey(key), jsonKind(v))
		},
	}
}
