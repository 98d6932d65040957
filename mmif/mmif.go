// Package mmif reads, builds and writes MMIF, the JSON interchange format
// for annotated multimedia: a list of source documents and a sequence of
// views, each holding the annotations one processing step produced.
package mmif

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Financial-Times/mmif-rw-neo4j/mmif/vocabulary"
	log "github.com/sirupsen/logrus"
)

// SpecVersion is the format version written into new files.
const SpecVersion = "0.2.1"

const (
	viewPrefix     = "v_"
	documentPrefix = "d"
)

// Node is anything a combined id can resolve to: a *Document, a *View or
// an *Annotation.
type Node interface {
	Serializable
	ID() string
}

// Mmif is a whole MMIF file.
type Mmif struct {
	frost
	metadata  *MmifMetadata
	documents *DataList[*Document]
	views     *DataList[*View]
}

// Option changes how Parse treats its input.
type Option func(*parseConfig)

type parseConfig struct {
	validate bool
	frozen   bool
}

// WithValidation turns schema validation of the raw input on or off.
func WithValidation(on bool) Option {
	return func(c *parseConfig) { c.validate = on }
}

// WithFrozen controls whether the documents and the existing views are
// deep-frozen once parsed.
func WithFrozen(on bool) Option {
	return func(c *parseConfig) { c.frozen = on }
}

// New returns an empty MMIF marked with SpecVersion.
func New() *Mmif {
	return &Mmif{
		metadata:  newMmifMetadata(),
		documents: newDataList("documents", documentFromJSON),
		views:     newDataList("views", viewFromJSON),
	}
}

// Parse reads a MMIF file given as text, bytes or a decoded JSON object.
// By default the input is validated against the MMIF schema before it is
// decoded, and the result is frozen except for its view list.
func Parse(input interface{}, opts ...Option) (*Mmif, error) {
	conf := parseConfig{validate: true, frozen: true}
	for _, o := range opts {
		o(&conf)
	}
	raw, err := rawInput(input)
	if err != nil {
		return nil, err
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		return nil, parseErrorf("expected a JSON object, got %s", jsonKind(raw))
	}
	if conf.validate {
		if err := Validate(raw); err != nil {
			return nil, err
		}
	}
	m := New()
	if err := m.Deserialize(raw); err != nil {
		return nil, err
	}
	if conf.frozen {
		docs := m.FreezeDocuments()
		views := m.FreezeViews()
		if !docs || !views {
			log.Warn("MMIF holds values that could not be frozen")
		}
	}
	return m, nil
}

func documentFromJSON(m map[string]interface{}) (*Document, error) {
	d := newEmptyDocument()
	if err := decode(d, m); err != nil {
		return nil, err
	}
	if d.ID() == "" {
		return nil, validationErrorf("document has no properties.id")
	}
	return d, nil
}

func (m *Mmif) kind() string { return "MMIF object" }

func (m *Mmif) attrs() []attr {
	return []attr{
		nestedAttr("metadata", &m.metadata, newMmifMetadata, true),
		listAttr("documents", m.documents, true),
		listAttr("views", m.views, true),
	}
}

func (m *Mmif) extras() *bag { return nil }

func (m *Mmif) Metadata() *MmifMetadata { return m.metadata }

func (m *Mmif) Documents() *DataList[*Document] { return m.documents }

func (m *Mmif) Views() *DataList[*View] { return m.views }

func (m *Mmif) Attr(key string) (interface{}, bool) { return getItem(m, key) }

func (m *Mmif) SetAttr(key string, v interface{}) error { return setItem(m, key, v) }

// NewViewID returns the first unused id of the form v_<n>, counting from
// the number of views already present.
func (m *Mmif) NewViewID() string {
	return nextID(viewPrefix, m.views.Len(), m.views.Contains)
}

// NewDocumentID is NewViewID for top-level documents.
func (m *Mmif) NewDocumentID() string {
	return nextID(documentPrefix, m.documents.Len(), m.documents.Contains)
}

func nextID(prefix string, n int, taken func(string) bool) string {
	id := prefix + strconv.Itoa(n)
	for taken(id) {
		n++
		id = prefix + strconv.Itoa(n)
	}
	return id
}

// NewView appends an empty, timestamped view with a fresh id and returns it.
func (m *Mmif) NewView() (*View, error) {
	v := NewView(m.NewViewID())
	v.metadata.timestamp = time.Now()
	if err := m.views.Append(v, false); err != nil {
		return nil, err
	}
	return v, nil
}

// AddView appends v to the views.
func (m *Mmif) AddView(v *View, overwrite bool) error {
	return m.views.Append(v, overwrite)
}

// NewDocument appends an empty top-level document of type atType with a
// fresh id and returns it.
func (m *Mmif) NewDocument(atType string) (*Document, error) {
	d := NewDocument(atType, m.NewDocumentID())
	if err := m.AddDocument(d, false); err != nil {
		return nil, err
	}
	return d, nil
}

// AddDocument appends d to the top-level documents. Once the documents are
// frozen this fails with ErrImmutable whatever the id.
func (m *Mmif) AddDocument(d *Document, overwrite bool) error {
	if m.documents.IsFrozen() {
		return immutable(m.kind())
	}
	return m.documents.Append(d, overwrite)
}

// FreezeDocuments deep-freezes the document list and reports whether
// everything in it ended up immutable.
func (m *Mmif) FreezeDocuments() bool {
	return m.documents.DeepFreeze()
}

// FreezeViews deep-freezes every existing view. The view list itself stays
// open so later steps can append.
func (m *Mmif) FreezeViews() bool {
	fully := true
	for _, v := range m.views.Items() {
		fully = v.DeepFreeze() && fully
	}
	return fully
}

// Lookup resolves a document id, a view id or "viewId:annotationId".
func (m *Mmif) Lookup(id string) (Node, error) {
	parts := strings.SplitN(id, ":", 2)
	doc, isDoc := m.documents.Get(parts[0])
	view, isView := m.views.Get(parts[0])

	var scoped Element
	if len(parts) == 2 {
		if !isView {
			return nil, notFoundf("no view %s to look up %s in", parts[0], parts[1])
		}
		e, err := view.Get(parts[1])
		if err != nil {
			return nil, err
		}
		scoped = e
	}
	if isDoc && isView {
		return nil, newError(ErrAmbiguousLookup, "%s names both a document and a view", parts[0])
	}
	switch {
	case scoped != nil:
		return scoped, nil
	case isView:
		return view, nil
	case isDoc:
		return doc, nil
	}
	return nil, notFoundf("ID not found: %s", id)
}

// GetDocumentsByType returns documents of type docType, those inside views
// first.
func (m *Mmif) GetDocumentsByType(docType string) []*Document {
	var docs []*Document
	for _, v := range m.views.Items() {
		for _, d := range v.GetDocuments() {
			if d.IsType(docType) {
				docs = append(docs, d)
			}
		}
	}
	for _, d := range m.documents.Items() {
		if d.IsType(docType) {
			docs = append(docs, d)
		}
	}
	return docs
}

// GetDocumentsByApp returns the documents held by views that app produced.
func (m *Mmif) GetDocumentsByApp(app string) []*Document {
	var docs []*Document
	for _, v := range m.views.Items() {
		if v.metadata.app == app {
			docs = append(docs, v.GetDocuments()...)
		}
	}
	return docs
}

// GetDocumentsByProperty returns documents, in views and at the top level,
// whose property key equals value.
func (m *Mmif) GetDocumentsByProperty(key string, value interface{}) []*Document {
	want := map[string]interface{}{key: value}
	var docs []*Document
	for _, v := range m.views.Items() {
		for _, d := range v.GetDocuments() {
			if matchProperties(d, want) {
				docs = append(docs, d)
			}
		}
	}
	for _, d := range m.documents.Items() {
		if matchProperties(d, want) {
			docs = append(docs, d)
		}
	}
	return docs
}

// GetDocumentsLocations returns the non-empty locations of top-level
// documents of type docType.
func (m *Mmif) GetDocumentsLocations(docType string) []string {
	var locs []string
	for _, d := range m.documents.Items() {
		if d.IsType(docType) && d.Location() != "" {
			locs = append(locs, d.Location())
		}
	}
	return locs
}

// GetDocumentLocation returns the first of GetDocumentsLocations.
func (m *Mmif) GetDocumentLocation(docType string) (string, bool) {
	locs := m.GetDocumentsLocations(docType)
	if len(locs) == 0 {
		return "", false
	}
	return locs[0], true
}

// GetDocumentsInView returns the documents of view id, or nothing when
// there is no such view.
func (m *Mmif) GetDocumentsInView(id string) []*Document {
	v, ok := m.views.Get(id)
	if !ok {
		return nil
	}
	return v.GetDocuments()
}

// GetDocumentByID finds a top-level document, or one inside a view when id
// has the form "viewId:docId".
func (m *Mmif) GetDocumentByID(id string) (*Document, error) {
	if strings.Contains(id, ":") {
		n, err := m.Lookup(id)
		if err != nil {
			return nil, err
		}
		d, ok := n.(*Document)
		if !ok {
			return nil, notFoundf("%s is not a document", id)
		}
		return d, nil
	}
	d, ok := m.documents.Get(id)
	if !ok {
		return nil, notFoundf("%s document not found", id)
	}
	return d, nil
}

func (m *Mmif) GetViewByID(id string) (*View, error) {
	v, ok := m.views.Get(id)
	if !ok {
		return nil, notFoundf("%s view not found", id)
	}
	return v, nil
}

// GetViewsForDocument returns the views holding annotations anchored on
// document id. For a scoped id the view it names is also searched for the
// bare document id.
func (m *Mmif) GetViewsForDocument(id string) []*View {
	var views []*View
	vid, did, scoped := strings.Cut(id, ":")
	for _, v := range m.views.Items() {
		if len(v.GetAnnotations("", map[string]interface{}{"document": id})) > 0 {
			views = append(views, v)
			continue
		}
		if scoped && v.id == vid && len(v.GetAnnotations("", map[string]interface{}{"document": did})) > 0 {
			views = append(views, v)
		}
	}
	return views
}

func (m *Mmif) viewContains(v *View, types []string) bool {
	for _, t := range types {
		if !v.metadata.contains.Has(t) {
			return false
		}
	}
	return true
}

// GetAllViewsContain returns every view whose contains metadata has all of
// the given types.
func (m *Mmif) GetAllViewsContain(types ...string) []*View {
	var views []*View
	for _, v := range m.views.Items() {
		if m.viewContains(v, types) {
			views = append(views, v)
		}
	}
	return views
}

// GetViewsContain is GetAllViewsContain.
func (m *Mmif) GetViewsContain(types ...string) []*View {
	return m.GetAllViewsContain(types...)
}

// GetViewContains returns the most recently added view whose contains
// metadata has all of the given types.
func (m *Mmif) GetViewContains(types ...string) (*View, bool) {
	for _, v := range m.views.Reversed() {
		if m.viewContains(v, types) {
			return v, true
		}
	}
	return nil, false
}

// GetAlignments returns, per view id, the Alignment annotations that link
// an annotation of typeA with one of typeB. Source and target may be local
// ids or "viewId:annotationId".
func (m *Mmif) GetAlignments(typeA, typeB string) (map[string][]*Annotation, error) {
	out := map[string][]*Annotation{}
	for _, v := range m.GetAllViewsContain(vocabulary.Alignment) {
		var found []*Annotation
		for _, e := range v.GetAnnotations(vocabulary.Alignment, nil) {
			a, ok := e.(*Annotation)
			if !ok {
				continue
			}
			var types []string
			for _, key := range []string{"source", "target"} {
				t, err := m.alignedType(v, a, key)
				if err != nil {
					return nil, err
				}
				types = append(types, t)
			}
			if alignedPair(types, typeA, typeB) {
				found = append(found, a)
			}
		}
		if len(found) > 0 {
			out[v.id] = found
		}
	}
	return out, nil
}

func (m *Mmif) alignedType(v *View, a *Annotation, key string) (string, error) {
	raw, _ := a.Property(key)
	ref, ok := raw.(string)
	if !ok {
		return "", validationErrorf("alignment %s:%s has no %s", v.id, a.ID(), key)
	}
	var target Node
	var err error
	if strings.Contains(ref, ":") {
		target, err = m.Lookup(ref)
	} else {
		target, err = v.Get(ref)
	}
	if err != nil {
		return "", err
	}
	e, ok := target.(Element)
	if !ok {
		return "", validationErrorf("alignment %s:%s %s %s is not an annotation", v.id, a.ID(), key, ref)
	}
	return e.AtType(), nil
}

func alignedPair(types []string, a, b string) bool {
	return (vocabulary.Match(types[0], a) && vocabulary.Match(types[1], b)) ||
		(vocabulary.Match(types[0], b) && vocabulary.Match(types[1], a))
}

func (m *Mmif) DeepFreeze() bool { return deepFreeze(m) }

func (m *Mmif) plain(o encodeOptions) interface{} { return encode(m, o) }

func (m *Mmif) Serialize(pretty bool) (string, error) { return serialize(m, pretty) }

func (m *Mmif) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.plain(encodeOptions{}))
}

// Deserialize replaces the content of m with input, without validation.
func (m *Mmif) Deserialize(input interface{}) error {
	if m.frozen {
		return immutable(m.kind())
	}
	obj, err := loadObject(input)
	if err != nil {
		return err
	}
	return decode(m, obj)
}

// Equal reports whether m and other hold the same content, ignoring
// timestamps and the order of documents, views and annotations.
func (m *Mmif) Equal(other *Mmif) bool {
	return Equal(m, other)
}

// MmifMetadata is the top-level metadata object.
type MmifMetadata struct {
	frost
	mmif  string
	extra *bag
}

func newMmifMetadata() *MmifMetadata {
	return &MmifMetadata{mmif: "http://mmif.clams.ai/" + SpecVersion, extra: newBag()}
}

func (md *MmifMetadata) kind() string { return "MMIF metadata" }

func (md *MmifMetadata) attrs() []attr {
	return []attr{stringAttr("mmif", &md.mmif, true)}
}

func (md *MmifMetadata) extras() *bag { return md.extra }

// Version is the format version marker of the file.
func (md *MmifMetadata) Version() string { return md.mmif }

func (md *MmifMetadata) Get(key string) (interface{}, bool) { return getItem(md, key) }

func (md *MmifMetadata) Set(key string, v interface{}) error { return setItem(md, key, v) }

func (md *MmifMetadata) DeepFreeze() bool { return deepFreeze(md) }

func (md *MmifMetadata) plain(o encodeOptions) interface{} { return encode(md, o) }

func (md *MmifMetadata) Serialize(pretty bool) (string, error) { return serialize(md, pretty) }
