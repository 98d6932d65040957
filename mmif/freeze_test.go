package mmif

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Financial-Times/mmif-rw-neo4j/mmif/vocabulary"
)

func assertImmutable(t *testing.T, err error, what string) {
	t.Helper()
	assert.True(t, errors.Is(err, ErrImmutable), "%s: expected an immutability error, got %v", what, err)
}

func TestParsedMmifIsFrozen(t *testing.T) {
	m := parseExample(t)
	v1, _ := m.Views().Get("v1")
	bb1, err := v1.Get("bb1")
	require.NoError(t, err)
	ann := bb1.(*Annotation)
	m1, _ := m.Documents().Get("m1")
	contains := v1.Metadata().Contains()
	bbContain, _ := contains.Get("BoundingBox")

	assertImmutable(t, v1.SetID("v9"), "view id, direct")
	assertImmutable(t, v1.SetAttr("id", "v9"), "view id, by key")
	assertImmutable(t, v1.Metadata().SetApp("someone"), "view app")
	assertImmutable(t, v1.Metadata().Set("app", "someone"), "view app, by key")
	assertImmutable(t, v1.AddAnnotation(NewAnnotation("Span", "s9"), false), "add annotation")
	_, err = v1.NewAnnotation("s9", "Span", false)
	assertImmutable(t, err, "new annotation")
	_, err = v1.NewContain("Span", nil)
	assertImmutable(t, err, "new contain")
	assertImmutable(t, contains.Set("Span", newContain()), "contains entry")
	assertImmutable(t, bbContain.SetAttr("producer", "Phil"), "contain producer")
	assertImmutable(t, ann.AddProperty("label", "x"), "annotation property")
	assertImmutable(t, ann.Properties().Set("label", "x"), "annotation property, by key")
	assertImmutable(t, ann.SetAtType("Span"), "annotation type")
	assertImmutable(t, m1.SetLocation("/elsewhere.mp4"), "document location")
	assertImmutable(t, m1.SetAttr("@type", "AudioDocument"), "document type, by key")

	assert.Equal(t, "v1", v1.ID())
	assert.Equal(t, "/var/archive/video-0012.mp4", m1.Location())
	assert.Equal(t, 2, v1.Annotations().Len())
}

func TestFrozenDocumentsRejectAddsBeforeConflicts(t *testing.T) {
	m := parseExample(t)
	err := m.AddDocument(NewDocument(vocabulary.TextDocument, "m1"), false)
	assertImmutable(t, err, "duplicate id on frozen documents")
	err = m.AddDocument(NewDocument(vocabulary.TextDocument, "m3"), true)
	assertImmutable(t, err, "new id on frozen documents")
	_, err = m.NewDocument(vocabulary.TextDocument)
	assertImmutable(t, err, "new document on frozen documents")
	assert.Equal(t, 2, m.Documents().Len())
}

func TestFrozenMmifStillTakesNewViews(t *testing.T) {
	m := parseExample(t)
	v, err := m.NewView()
	require.NoError(t, err)
	assert.Equal(t, "v_3", v.ID())
	_, err = v.NewAnnotation("a1", "Span", false)
	assert.NoError(t, err)
}

func TestUnfrozenParse(t *testing.T) {
	m := parseExample(t, WithFrozen(false))
	require.NoError(t, m.AddDocument(NewDocument(vocabulary.TextDocument, "m3"), false))
	v1, _ := m.Views().Get("v1")
	require.NoError(t, v1.Metadata().SetApp("someone"))
}

func TestFrozenValuesAreHandedOutAsCopies(t *testing.T) {
	m := parseExample(t)
	n, err := m.Lookup("v1:bb1")
	require.NoError(t, err)

	coords, ok := n.(*Annotation).Property("coordinates")
	require.True(t, ok)
	coords.([]interface{})[0] = "scribbled"

	again, _ := n.(*Annotation).Property("coordinates")
	assert.NotEqual(t, "scribbled", again.([]interface{})[0])
}

func TestFreezeIsShallow(t *testing.T) {
	a := NewAnnotation("Span", "s1")
	a.Freeze()
	assert.True(t, a.IsFrozen())
	assertImmutable(t, a.SetAtType("TimeFrame"), "frozen annotation")
	assertImmutable(t, a.AddProperty("start", 1), "frozen annotation, through the annotation")

	assert.False(t, a.Properties().IsFrozen())
	assert.NoError(t, a.Properties().Set("start", 1), "the properties object was not frozen")
}

func TestDeepFreezeReportsPartialFreezing(t *testing.T) {
	a := NewAnnotation("Span", "s1")
	require.NoError(t, a.AddProperty("offsets", []interface{}{1, 2.5, "x", nil, map[string]interface{}{"ok": true}}))
	require.NoError(t, a.AddProperty("at", time.Now()))
	assert.True(t, a.DeepFreeze())

	b := NewAnnotation("Span", "s2")
	require.NoError(t, b.AddProperty("payload", &struct{ N int }{1}))
	assert.False(t, b.DeepFreeze(), "an arbitrary pointer cannot be frozen")
	assert.True(t, b.IsFrozen())
	assert.True(t, b.Properties().IsFrozen(), "the rest of the graph is frozen regardless")
}

func TestDeepFreezeSurvivesRewrapping(t *testing.T) {
	v := NewView("v1")
	a, err := v.NewAnnotation("s1", "Span", false)
	require.NoError(t, err)
	require.True(t, v.DeepFreeze())

	other := NewView("v2")
	require.NoError(t, other.Annotations().Append(a, false), "a frozen annotation can be listed elsewhere")
	s, err := other.Serialize(false)
	require.NoError(t, err)
	assert.Contains(t, s, `"s1"`)
	assertImmutable(t, a.AddProperty("start", 0), "re-listed annotation")
}

func TestFrozenDocumentListCannotBeRefilled(t *testing.T) {
	m := parseExample(t)

	assertImmutable(t, m.SetAttr("documents", []interface{}{}), "documents, emptied by key")
	assertImmutable(t, m.SetAttr("documents", []interface{}{
		map[string]interface{}{"@type": vocabulary.TextDocument, "properties": map[string]interface{}{"id": "t1"}},
	}), "documents, refilled by key")
	assertImmutable(t, m.SetAttr("documents", New().Documents()), "documents, assigned from another list")
	assertImmutable(t, m.Deserialize(`{"metadata": {"mmif": "http://mmif.clams.ai/0.2.1"}, "documents": [], "views": []}`), "documents, through Deserialize")

	assert.Equal(t, 2, m.Documents().Len())
	assert.True(t, m.Documents().IsFrozen())
	_, ok := m.Documents().Get("m1")
	assert.True(t, ok)
}

func TestListAssignmentCopiesTheIndex(t *testing.T) {
	src := New()
	require.NoError(t, src.AddDocument(NewDocument(vocabulary.TextDocument, "t1"), false))
	src.Documents().Freeze()

	dst := New()
	require.NoError(t, dst.SetAttr("documents", src.Documents()))
	assert.False(t, dst.Documents().IsFrozen(), "the target keeps its own frozen state")
	require.NoError(t, dst.AddDocument(NewDocument(vocabulary.TextDocument, "t2"), false))

	assert.Equal(t, []string{"t1", "t2"}, dst.Documents().Keys())
	assert.Equal(t, []string{"t1"}, src.Documents().Keys())
	assert.False(t, src.Documents().Contains("t2"))
}

func TestFrozenContainsRejectsNewAnnotationTypes(t *testing.T) {
	v := NewView("v1")
	require.NoError(t, v.AddAnnotation(NewAnnotation("TimeFrame", "tf1"), false))
	v.Metadata().Contains().Freeze()

	assertImmutable(t, v.AddAnnotation(NewAnnotation("Span", "s1"), false), "annotation of an unregistered type")
	assert.Equal(t, 1, v.Annotations().Len())
	assert.False(t, v.Annotations().Contains("s1"))

	require.NoError(t, v.AddAnnotation(NewAnnotation("TimeFrame", "tf2"), false), "the type is already registered")
	assert.Equal(t, 2, v.Annotations().Len())

	w := NewView("v2")
	w.Metadata().Freeze()
	assertImmutable(t, w.AddAnnotation(NewAnnotation("Span", "s1"), false), "frozen view metadata")
	assert.Equal(t, 0, w.Annotations().Len())
}

func TestFrozenAnnotationKeepsItsParentView(t *testing.T) {
	v1 := NewView("v1")
	a, err := v1.NewAnnotation("s1", "Span", false)
	require.NoError(t, err)
	require.True(t, a.DeepFreeze())

	v2 := NewView("v2")
	require.NoError(t, v2.AddAnnotation(a, false))
	assert.Equal(t, "v1", a.ParentView())
	assert.True(t, v2.Metadata().Contains().Has("Span"))
}
