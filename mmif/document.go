package mmif

import (
	"encoding/json"

	"github.com/Financial-Times/mmif-rw-neo4j/mmif/vocabulary"
)

// Document describes a media or text resource. At the top level of a MMIF
// file it points at its source via location; inside a view it usually
// carries its text inline.
//
// Setting both location and text is not rejected here. Parse with
// validation catches it.
type Document struct {
	frost
	atType     string
	properties *DocumentProperties
	parentView string
}

// NewDocument returns a detached document of the given type.
func NewDocument(atType, id string) *Document {
	d := newEmptyDocument()
	d.atType = atType
	d.properties.id = id
	return d
}

// ParseDocument builds a document from its JSON form.
func ParseDocument(input interface{}) (*Document, error) {
	d := newEmptyDocument()
	if err := d.Deserialize(input); err != nil {
		return nil, err
	}
	return d, nil
}

func newEmptyDocument() *Document {
	return &Document{properties: newDocumentProperties()}
}

func (d *Document) kind() string { return "document" }

func (d *Document) attrs() []attr {
	return []attr{
		stringAttr("_type", &d.atType, true),
		nestedAttr("properties", &d.properties, newDocumentProperties, true),
	}
}

func (d *Document) extras() *bag { return nil }

func (d *Document) ID() string { return d.properties.id }

func (d *Document) SetID(id string) error {
	if d.frozen {
		return immutable(d.kind())
	}
	return d.properties.Set("id", id)
}

func (d *Document) AtType() string { return d.atType }

func (d *Document) SetAtType(t string) error { return setItem(d, "_type", t) }

func (d *Document) IsType(t string) bool { return vocabulary.Match(d.atType, t) }

func (d *Document) Properties() *DocumentProperties { return d.properties }

func (d *Document) Property(name string) (interface{}, bool) { return d.properties.Get(name) }

func (d *Document) AddProperty(name string, value interface{}) error {
	if d.frozen {
		return immutable(d.kind())
	}
	return d.properties.Set(name, value)
}

func (d *Document) Attr(key string) (interface{}, bool) { return getItem(d, key) }

func (d *Document) SetAttr(key string, v interface{}) error { return setItem(d, key, v) }

func (d *Document) Location() string { return d.properties.location }

func (d *Document) SetLocation(loc string) error { return d.AddProperty("location", loc) }

func (d *Document) Mime() string { return d.properties.mime }

func (d *Document) SetMime(mime string) error { return d.AddProperty("mime", mime) }

func (d *Document) TextValue() string { return d.properties.text.value }

func (d *Document) SetTextValue(s string) error {
	if d.frozen || d.properties.frozen {
		return immutable(d.kind())
	}
	return d.properties.text.SetAttr("@value", s)
}

func (d *Document) TextLanguage() string { return d.properties.text.language }

func (d *Document) SetTextLanguage(lang string) error {
	if d.frozen || d.properties.frozen {
		return immutable(d.kind())
	}
	return d.properties.text.SetAttr("@language", lang)
}

// ParentView is the id of the view that holds the document. The view does
// not own the document; it can still be reached as "viewId:docId".
func (d *Document) ParentView() string { return d.parentView }

func (d *Document) setParentView(id string) { d.parentView = id }

func (d *Document) DeepFreeze() bool { return deepFreeze(d) }

func (d *Document) plain(o encodeOptions) interface{} { return encode(d, o) }

func (d *Document) Serialize(pretty bool) (string, error) { return serialize(d, pretty) }

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.plain(encodeOptions{}))
}

func (d *Document) Deserialize(input interface{}) error {
	if d.frozen {
		return immutable(d.kind())
	}
	m, err := loadObject(input)
	if err != nil {
		return err
	}
	return decode(d, m)
}

// DocumentProperties is the properties object of a document.
type DocumentProperties struct {
	frost
	id       string
	mime     string
	location string
	text     *Text
	extra    *bag
}

func newDocumentProperties() *DocumentProperties {
	return &DocumentProperties{text: &Text{}, extra: newBag()}
}

func (p *DocumentProperties) kind() string { return "document properties" }

func (p *DocumentProperties) attrs() []attr {
	return []attr{
		stringAttr("id", &p.id, true),
		stringAttr("mime", &p.mime, false),
		stringAttr("location", &p.location, false),
		nestedAttr("text", &p.text, func() *Text { return &Text{} }, false),
	}
}

func (p *DocumentProperties) extras() *bag { return p.extra }

func (p *DocumentProperties) ID() string { return p.id }

func (p *DocumentProperties) Get(key string) (interface{}, bool) { return getItem(p, key) }

func (p *DocumentProperties) Set(key string, v interface{}) error { return setItem(p, key, v) }

func (p *DocumentProperties) Keys() []string { return entityKeys(p) }

func (p *DocumentProperties) Text() *Text { return p.text }

func (p *DocumentProperties) DeepFreeze() bool { return deepFreeze(p) }

func (p *DocumentProperties) plain(o encodeOptions) interface{} { return encode(p, o) }

func (p *DocumentProperties) Serialize(pretty bool) (string, error) { return serialize(p, pretty) }

// Text is inline document content: {"@value": ..., "@language": ...}.
type Text struct {
	frost
	value    string
	language string
}

func (t *Text) kind() string { return "text" }

func (t *Text) attrs() []attr {
	return []attr{
		stringAttr("_value", &t.value, false),
		stringAttr("_language", &t.language, false),
	}
}

func (t *Text) extras() *bag { return nil }

func (t *Text) Value() string { return t.value }

func (t *Text) Language() string { return t.language }

func (t *Text) Attr(key string) (interface{}, bool) { return getItem(t, key) }

func (t *Text) SetAttr(key string, v interface{}) error { return setItem(t, key, v) }

func (t *Text) DeepFreeze() bool { return deepFreeze(t) }

func (t *Text) plain(o encodeOptions) interface{} { return encode(t, o) }

func (t *Text) Serialize(pretty bool) (string, error) { return serialize(t, pretty) }
