package mmif

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/Financial-Times/mmif-rw-neo4j/mmif/vocabulary"
	log "github.com/sirupsen/logrus"
)

// View is the output of one run of one processing step.
type View struct {
	frost
	context     string
	id          string
	metadata    *ViewMetadata
	annotations *DataList[Element]
}

// NewView returns an empty view with the given id.
func NewView(id string) *View {
	v := newEmptyView()
	v.id = id
	return v
}

// ParseView builds a view from its JSON form.
func ParseView(input interface{}) (*View, error) {
	v := newEmptyView()
	if err := v.Deserialize(input); err != nil {
		return nil, err
	}
	return v, nil
}

func newEmptyView() *View {
	return &View{
		metadata:    newViewMetadata(),
		annotations: newDataList("annotations", elementFromJSON),
	}
}

func viewFromJSON(m map[string]interface{}) (*View, error) {
	v := newEmptyView()
	if err := decode(v, m); err != nil {
		return nil, err
	}
	if v.id == "" {
		return nil, validationErrorf("view has no id")
	}
	return v, nil
}

func (v *View) kind() string { return "view" }

func (v *View) attrs() []attr {
	return []attr{
		stringAttr("_context", &v.context, false),
		relinking(v, stringAttr("id", &v.id, true)),
		relinking(v, nestedAttr("metadata", &v.metadata, newViewMetadata, true)),
		relinking(v, listAttr("annotations", v.annotations, true)),
	}
}

// relinking wraps the setter of an attribute so that the view's documents
// and contains registry follow any change to it.
func relinking(v *View, a attr) attr {
	set := a.set
	a.set = func(x interface{}) error {
		if err := set(x); err != nil {
			return err
		}
		v.relink()
		return nil
	}
	return a
}

// relink points every element at the view and registers any annotation type
// missing from contains.
func (v *View) relink() {
	for _, e := range v.annotations.Items() {
		if !e.IsFrozen() {
			e.setParentView(v.id)
		}
		if e.AtType() == "" {
			continue
		}
		if v.metadata.contains.add(e.AtType(), newContain()) {
			log.WithField("view", v.id).Debugf("registered missing contains entry for %s", e.AtType())
		}
	}
}

func (v *View) extras() *bag { return nil }

func (v *View) ID() string { return v.id }

func (v *View) SetID(id string) error { return setItem(v, "id", id) }

func (v *View) Context() string { return v.context }

func (v *View) Metadata() *ViewMetadata { return v.metadata }

// Annotations is the live annotation list. Its Get returns ok=false for a
// missing id where View.Get returns an error.
func (v *View) Annotations() *DataList[Element] { return v.annotations }

func (v *View) Attr(key string) (interface{}, bool) { return getItem(v, key) }

func (v *View) SetAttr(key string, x interface{}) error { return setItem(v, key, x) }

// NewContain registers atType in the contains metadata. It returns nil
// without error when an entry with the same short name already exists.
func (v *View) NewContain(atType string, props map[string]interface{}) (*Contain, error) {
	if v.frozen || v.metadata.frozen || v.metadata.contains.frozen {
		return nil, immutable(v.kind())
	}
	if v.metadata.contains.Has(atType) {
		return nil, nil
	}
	c := newContain()
	for k, val := range props {
		if err := c.SetAttr(k, val); err != nil {
			return nil, err
		}
	}
	v.metadata.contains.add(atType, c)
	return c, nil
}

// NewAnnotation creates an annotation, adds it to the view and returns it.
func (v *View) NewAnnotation(id, atType string, overwrite bool) (*Annotation, error) {
	a := NewAnnotation(atType, id)
	if err := v.AddAnnotation(a, overwrite); err != nil {
		return nil, err
	}
	return a, nil
}

// AddAnnotation appends a to the view. A duplicate id is a KeyConflict
// unless overwrite is set.
func (v *View) AddAnnotation(a *Annotation, overwrite bool) error {
	return v.addElement(a, overwrite)
}

// AddDocument appends d to the view and records the view as its parent.
func (v *View) AddDocument(d *Document, overwrite bool) error {
	return v.addElement(d, overwrite)
}

func (v *View) addElement(e Element, overwrite bool) error {
	if v.frozen {
		return immutable(v.kind())
	}
	register := e.AtType() != "" && !v.metadata.contains.Has(e.AtType())
	if register {
		if v.metadata.frozen {
			return immutable(v.metadata.kind())
		}
		if v.metadata.contains.frozen {
			return immutable("contains")
		}
	}
	if err := v.annotations.Append(e, overwrite); err != nil {
		return err
	}
	// a frozen element keeps the view it was first added to
	if !e.IsFrozen() {
		e.setParentView(v.id)
	}
	if register {
		v.metadata.contains.add(e.AtType(), newContain())
	}
	return nil
}

// NewTextDocument creates a TextDocument holding text, adds it to the view
// and returns it.
func (v *View) NewTextDocument(id, text, lang string, overwrite bool) (*Document, error) {
	d := NewDocument(vocabulary.TextDocument, id)
	d.properties.text.value = text
	d.properties.text.language = lang
	if err := v.AddDocument(d, overwrite); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the element with the given id, or a NotFound error.
func (v *View) Get(id string) (Element, error) {
	e, ok := v.annotations.Get(id)
	if !ok {
		return nil, notFoundf("Annotation ID not found: %s", id)
	}
	return e, nil
}

// GetDocuments returns the documents among the view's annotations.
func (v *View) GetDocuments() []*Document {
	var docs []*Document
	for _, e := range v.annotations.Items() {
		if d, ok := e.(*Document); ok {
			docs = append(docs, d)
		}
	}
	return docs
}

// GetAnnotations returns the elements of type atType (any type when empty)
// whose properties hold every given key/value pair.
func (v *View) GetAnnotations(atType string, props map[string]interface{}) []Element {
	var out []Element
	for _, e := range v.annotations.Items() {
		if atType != "" && !e.IsType(atType) {
			continue
		}
		if matchProperties(e, props) {
			out = append(out, e)
		}
	}
	return out
}

func matchProperties(e Element, props map[string]interface{}) bool {
	for k, want := range props {
		got, ok := e.Property(k)
		if !ok || !jsonEqual(plainValue(got, encodeOptions{}), want) {
			return false
		}
	}
	return true
}

func (v *View) DeepFreeze() bool { return deepFreeze(v) }

func (v *View) plain(o encodeOptions) interface{} { return encode(v, o) }

func (v *View) Serialize(pretty bool) (string, error) { return serialize(v, pretty) }

func (v *View) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.plain(encodeOptions{}))
}

func (v *View) Deserialize(input interface{}) error {
	if v.frozen {
		return immutable(v.kind())
	}
	m, err := loadObject(input)
	if err != nil {
		return err
	}
	return decode(v, m)
}

// ViewMetadata holds the provenance of a view.
type ViewMetadata struct {
	frost
	document  string
	timestamp time.Time
	app       string
	contains  *Contains
	extra     *bag
}

func newViewMetadata() *ViewMetadata {
	return &ViewMetadata{contains: newContains(), extra: newBag()}
}

func (m *ViewMetadata) kind() string { return "view metadata" }

func (m *ViewMetadata) attrs() []attr {
	return []attr{
		stringAttr("document", &m.document, false),
		timeAttr("timestamp", &m.timestamp),
		stringAttr("app", &m.app, false),
		containsAttr("contains", &m.contains),
	}
}

func (m *ViewMetadata) extras() *bag { return m.extra }

// Document is the id of the input the view was computed from.
func (m *ViewMetadata) Document() string { return m.document }

func (m *ViewMetadata) Timestamp() time.Time { return m.timestamp }

func (m *ViewMetadata) App() string { return m.app }

func (m *ViewMetadata) Contains() *Contains { return m.contains }

func (m *ViewMetadata) SetDocument(id string) error { return setItem(m, "document", id) }

func (m *ViewMetadata) SetTimestamp(t time.Time) error { return setItem(m, "timestamp", t) }

func (m *ViewMetadata) SetApp(app string) error { return setItem(m, "app", app) }

func (m *ViewMetadata) Get(key string) (interface{}, bool) { return getItem(m, key) }

func (m *ViewMetadata) Set(key string, v interface{}) error { return setItem(m, key, v) }

func (m *ViewMetadata) DeepFreeze() bool { return deepFreeze(m) }

func (m *ViewMetadata) plain(o encodeOptions) interface{} { return encode(m, o) }

func (m *ViewMetadata) Serialize(pretty bool) (string, error) { return serialize(m, pretty) }

// Contains maps annotation types to the Contain record of the view that
// holds them. Keys are kept as first written; lookups also accept any type
// with the same short name.
type Contains struct {
	frost
	keys  []string
	items map[string]*Contain
}

func newContains() *Contains {
	return &Contains{items: map[string]*Contain{}}
}

// Get returns the entry stored under exactly atType.
func (c *Contains) Get(atType string) (*Contain, bool) {
	x, ok := c.items[atType]
	return x, ok
}

// Find returns the key and entry whose type has the same short name as
// atType.
func (c *Contains) Find(atType string) (string, *Contain, bool) {
	if x, ok := c.items[atType]; ok {
		return atType, x, true
	}
	short := vocabulary.ShortName(atType)
	for _, k := range c.keys {
		if vocabulary.ShortName(k) == short {
			return k, c.items[k], true
		}
	}
	return "", nil, false
}

func (c *Contains) Has(atType string) bool {
	_, _, ok := c.Find(atType)
	return ok
}

func (c *Contains) Keys() []string { return append([]string(nil), c.keys...) }

func (c *Contains) Len() int { return len(c.keys) }

// Set stores x under exactly atType, replacing any entry with that key.
func (c *Contains) Set(atType string, x *Contain) error {
	if c.frozen {
		return immutable("contains")
	}
	if _, ok := c.items[atType]; !ok {
		c.keys = append(c.keys, atType)
	}
	c.items[atType] = x
	return nil
}

// add stores x unless an entry with the same short name exists and
// reports whether it did.
func (c *Contains) add(atType string, x *Contain) bool {
	if c.frozen || c.Has(atType) {
		return false
	}
	c.keys = append(c.keys, atType)
	c.items[atType] = x
	return true
}

func (c *Contains) DeepFreeze() bool {
	c.Freeze()
	fully := true
	for _, k := range c.keys {
		fully = c.items[k].DeepFreeze() && fully
	}
	return fully
}

func (c *Contains) plain(o encodeOptions) interface{} {
	out := make(map[string]interface{}, len(c.keys))
	for _, k := range c.keys {
		out[k] = c.items[k].plain(o)
	}
	return out
}

func (c *Contains) Serialize(pretty bool) (string, error) { return serialize(c, pretty) }

func containsAttr(key string, dst **Contains) attr {
	return attr{
		key: key,
		get: func() interface{} { return *dst },
		set: func(v interface{}) error {
			switch x := v.(type) {
			case *Contains:
				*dst = x
				return nil
			case map[string]interface{}:
				c := newContains()
				types := make([]string, 0, len(x))
				for t := range x {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					raw, ok := x[t].(map[string]interface{})
					if !ok {
						return validationErrorf("contains[%s] must be an object, got %s", t, jsonKind(x[t]))
					}
					entry := &Contain{extra: newBag()}
					if err := decode(entry, raw); err != nil {
						return err
					}
					if !c.add(t, entry) {
						log.WithField("type", t).Warn("dropping contains entry with a duplicate short name")
					}
				}
				*dst = c
				return nil
			}
			return validationErrorf("%s must be an object, got %s", key, jsonKind(v))
		},
	}
}

// Contain records which app produced one annotation type in a view, and
// when.
type Contain struct {
	frost
	producer string
	genTime  time.Time
	extra    *bag
}

func newContain() *Contain {
	return &Contain{genTime: time.Now(), extra: newBag()}
}

func (c *Contain) kind() string { return "contain" }

func (c *Contain) attrs() []attr {
	return []attr{
		stringAttr("producer", &c.producer, false),
		timeAttr("gen_time", &c.genTime),
	}
}

func (c *Contain) extras() *bag { return c.extra }

func (c *Contain) Producer() string { return c.producer }

func (c *Contain) GenTime() time.Time { return c.genTime }

func (c *Contain) Attr(key string) (interface{}, bool) { return getItem(c, key) }

func (c *Contain) SetAttr(key string, v interface{}) error { return setItem(c, key, v) }

func (c *Contain) DeepFreeze() bool { return deepFreeze(c) }

func (c *Contain) plain(o encodeOptions) interface{} { return encode(c, o) }

func (c *Contain) Serialize(pretty bool) (string, error) { return serialize(c, pretty) }
