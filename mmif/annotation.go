package mmif

import (
	"encoding/json"

	"github.com/Financial-Times/mmif-rw-neo4j/mmif/vocabulary"
)

// Element is a member of a view's annotation list: either an *Annotation or
// a *Document.
type Element interface {
	listItem
	AtType() string
	IsType(t string) bool
	Property(name string) (interface{}, bool)
	AddProperty(name string, value interface{}) error
	// ParentView is the id of the view the element was added to, or "" for
	// top-level documents and detached annotations.
	ParentView() string
	setParentView(id string)
}

// Annotation is a typed unit of information inside a view.
type Annotation struct {
	frost
	atType     string
	properties *AnnotationProperties
	parentView string
}

// NewAnnotation returns a detached annotation of the given type.
func NewAnnotation(atType, id string) *Annotation {
	a := newEmptyAnnotation()
	a.atType = atType
	a.properties.id = id
	return a
}

// ParseAnnotation builds an annotation from its JSON form.
func ParseAnnotation(input interface{}) (*Annotation, error) {
	a := newEmptyAnnotation()
	if err := a.Deserialize(input); err != nil {
		return nil, err
	}
	return a, nil
}

func newEmptyAnnotation() *Annotation {
	return &Annotation{properties: newAnnotationProperties()}
}

func (a *Annotation) kind() string { return "annotation" }

func (a *Annotation) attrs() []attr {
	return []attr{
		stringAttr("_type", &a.atType, true),
		nestedAttr("properties", &a.properties, newAnnotationProperties, true),
	}
}

func (a *Annotation) extras() *bag { return nil }

func (a *Annotation) ID() string { return a.properties.id }

// SetID changes the id of the annotation. It does not rekey any list the
// annotation already belongs to.
func (a *Annotation) SetID(id string) error {
	if a.frozen {
		return immutable(a.kind())
	}
	return a.properties.Set("id", id)
}

func (a *Annotation) AtType() string { return a.atType }

func (a *Annotation) SetAtType(t string) error {
	return setItem(a, "_type", t)
}

// IsType reports whether the annotation has type t. A bare short name
// matches any IRI ending with it.
func (a *Annotation) IsType(t string) bool {
	return vocabulary.Match(a.atType, t)
}

func (a *Annotation) Properties() *AnnotationProperties { return a.properties }

func (a *Annotation) Property(name string) (interface{}, bool) {
	return a.properties.Get(name)
}

// AddProperty sets one entry of the properties object.
func (a *Annotation) AddProperty(name string, value interface{}) error {
	if a.frozen {
		return immutable(a.kind())
	}
	return a.properties.Set(name, value)
}

// Attr reads an attribute by its JSON key ("@type" or "properties").
func (a *Annotation) Attr(key string) (interface{}, bool) { return getItem(a, key) }

func (a *Annotation) SetAttr(key string, v interface{}) error { return setItem(a, key, v) }

func (a *Annotation) ParentView() string { return a.parentView }

func (a *Annotation) setParentView(id string) { a.parentView = id }

func (a *Annotation) DeepFreeze() bool { return deepFreeze(a) }

func (a *Annotation) plain(o encodeOptions) interface{} { return encode(a, o) }

func (a *Annotation) Serialize(pretty bool) (string, error) { return serialize(a, pretty) }

func (a *Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.plain(encodeOptions{}))
}

// Deserialize replaces the content of the annotation with input.
func (a *Annotation) Deserialize(input interface{}) error {
	if a.frozen {
		return immutable(a.kind())
	}
	m, err := loadObject(input)
	if err != nil {
		return err
	}
	return decode(a, m)
}

// AnnotationProperties is the properties object of an annotation. Only "id"
// is named; anything else is kept as given.
type AnnotationProperties struct {
	frost
	id    string
	extra *bag
}

func newAnnotationProperties() *AnnotationProperties {
	return &AnnotationProperties{extra: newBag()}
}

func (p *AnnotationProperties) kind() string { return "annotation properties" }

func (p *AnnotationProperties) attrs() []attr {
	return []attr{stringAttr("id", &p.id, true)}
}

func (p *AnnotationProperties) extras() *bag { return p.extra }

func (p *AnnotationProperties) ID() string { return p.id }

func (p *AnnotationProperties) Get(key string) (interface{}, bool) { return getItem(p, key) }

func (p *AnnotationProperties) Set(key string, v interface{}) error { return setItem(p, key, v) }

// Keys lists the JSON keys currently set, "id" first.
func (p *AnnotationProperties) Keys() []string {
	return entityKeys(p)
}

func (p *AnnotationProperties) Len() int { return entitySize(p) }

func (p *AnnotationProperties) DeepFreeze() bool { return deepFreeze(p) }

func (p *AnnotationProperties) plain(o encodeOptions) interface{} { return encode(p, o) }

func (p *AnnotationProperties) Serialize(pretty bool) (string, error) { return serialize(p, pretty) }

// entityKeys lists the non-empty named attributes followed by the
// additional ones, all with their JSON names.
func entityKeys(e entity) []string {
	var keys []string
	for _, a := range e.attrs() {
		if !isEmpty(a.get()) {
			keys = append(keys, wireKey(a.key))
		}
	}
	if b := e.extras(); b != nil {
		for _, k := range b.keys {
			keys = append(keys, wireKey(k))
		}
	}
	return keys
}

// elementFromJSON picks the concrete element type from "@type": anything
// ending in "Document" becomes a *Document.
func elementFromJSON(m map[string]interface{}) (Element, error) {
	t, _ := m["_type"].(string)
	var e interface {
		Element
		entity
	}
	if vocabulary.IsDocumentType(t) {
		e = newEmptyDocument()
	} else {
		e = newEmptyAnnotation()
	}
	if err := decode(e, m); err != nil {
		return nil, err
	}
	if e.ID() == "" {
		return nil, validationErrorf("annotation of type %q has no properties.id", t)
	}
	return e, nil
}
