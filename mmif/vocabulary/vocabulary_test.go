package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabularyDefinesEveryConstant(t *testing.T) {
	v := Default()
	for _, uri := range []string{
		Thing, Annotation, Region, TimePoint, Interval, Span, TimeFrame, Chapter, Polygon,
		BoundingBox, VideoObject, Relation, Alignment,
		Document, VideoDocument, AudioDocument, ImageDocument, TextDocument,
	} {
		typ, ok := v.Lookup(uri)
		if assert.True(t, ok, "missing %s", uri) {
			assert.Equal(t, uri, typ.URI())
		}
	}
	assert.Len(t, v.Types(), 18)
}

func TestLookup(t *testing.T) {
	v := Default()

	typ, ok := v.Lookup("BoundingBox")
	require.True(t, ok)
	assert.Equal(t, "Polygon", typ.Parent)

	_, ok = v.Lookup("http://example.org/vocabulary/BoundingBox")
	assert.False(t, ok, "IRIs outside the namespace are unknown")

	_, ok = v.Lookup("Banana")
	assert.False(t, ok)
}

func TestAncestorsAndIsA(t *testing.T) {
	v := Default()
	assert.Equal(t, []string{"Polygon", "Region", "Annotation", "Thing"}, v.Ancestors(BoundingBox))
	assert.Empty(t, v.Ancestors(Thing))

	assert.True(t, v.IsA("BoundingBox", Region))
	assert.True(t, v.IsA(TextDocument, "Document"))
	assert.True(t, v.IsA(Span, Span))
	assert.False(t, v.IsA(TextDocument, Annotation))
}

func TestPropertiesAreInherited(t *testing.T) {
	props := Default().Properties("Span")
	assert.Contains(t, props, "id")
	assert.Contains(t, props, "document")
	assert.Contains(t, props, "start")
	assert.Contains(t, props, "end")
}

func TestLoadRejectsBrokenDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not a list", "name: Thing"},
		{"unnamed entry", "- description: nothing"},
		{"duplicate", "- name: Thing\n- name: Thing"},
		{"unknown parent", "- name: Span\n  parent: Interval"},
		{"cycle", "- name: A\n  parent: B\n- name: B\n  parent: A"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load([]byte(test.yaml))
			assert.Error(t, err)
		})
	}
}

func TestShortNameAndMatch(t *testing.T) {
	assert.Equal(t, "BoundingBox", ShortName(BoundingBox))
	assert.Equal(t, "BoundingBox", ShortName("BoundingBox"))

	assert.True(t, Match("BoundingBox", BoundingBox))
	assert.True(t, Match(BoundingBox, "BoundingBox"))
	assert.True(t, Match(BoundingBox, BoundingBox))
	assert.False(t, Match(BoundingBox, "http://example.org/vocabulary/BoundingBox"))
	assert.False(t, Match("Span", "TimeFrame"))
}

func TestIsDocumentType(t *testing.T) {
	assert.True(t, IsDocumentType(TextDocument))
	assert.True(t, IsDocumentType("VideoDocument"))
	assert.True(t, IsDocumentType("http://example.org/types/ScannedDocument"))
	assert.False(t, IsDocumentType(BoundingBox))
	assert.False(t, IsDocumentType("DocumentPart"))
}
