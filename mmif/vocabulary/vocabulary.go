// Package vocabulary holds the controlled vocabulary of MMIF annotation and
// document types.
package vocabulary

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Namespace is the base IRI of every vocabulary type.
const Namespace = "http://mmif.clams.ai/vocabulary/"

// Annotation type IRIs.
const (
	Thing       = Namespace + "Thing"
	Annotation  = Namespace + "Annotation"
	Region      = Namespace + "Region"
	TimePoint   = Namespace + "TimePoint"
	Interval    = Namespace + "Interval"
	Span        = Namespace + "Span"
	TimeFrame   = Namespace + "TimeFrame"
	Chapter     = Namespace + "Chapter"
	Polygon     = Namespace + "Polygon"
	BoundingBox = Namespace + "BoundingBox"
	VideoObject = Namespace + "VideoObject"
	Relation    = Namespace + "Relation"
	Alignment   = Namespace + "Alignment"
)

// Document type IRIs.
const (
	Document      = Namespace + "Document"
	VideoDocument = Namespace + "VideoDocument"
	AudioDocument = Namespace + "AudioDocument"
	ImageDocument = Namespace + "ImageDocument"
	TextDocument  = Namespace + "TextDocument"
)

//go:embed clams.vocabulary.yaml
var definition []byte

// Type is one entry of the vocabulary definition.
type Type struct {
	Name        string            `yaml:"name"`
	Parent      string            `yaml:"parent,omitempty"`
	Description string            `yaml:"description"`
	Properties  map[string]string `yaml:"properties,omitempty"`
}

// URI returns the full IRI of the type.
func (t Type) URI() string {
	return Namespace + t.Name
}

// Vocabulary is a loaded type hierarchy.
type Vocabulary struct {
	types  []Type
	byName map[string]int
}

// Load parses a YAML vocabulary definition. Names must be unique and every
// parent must be defined.
func Load(data []byte) (*Vocabulary, error) {
	var types []Type
	if err := yaml.Unmarshal(data, &types); err != nil {
		return nil, errors.Wrap(err, "parsing vocabulary definition")
	}
	v := &Vocabulary{types: types, byName: make(map[string]int, len(types))}
	for i, t := range types {
		if t.Name == "" {
			return nil, errors.Errorf("vocabulary entry %d has no name", i)
		}
		if _, dup := v.byName[t.Name]; dup {
			return nil, errors.Errorf("vocabulary type %s is defined twice", t.Name)
		}
		v.byName[t.Name] = i
	}
	for _, t := range types {
		if t.Parent == "" {
			continue
		}
		if _, ok := v.byName[t.Parent]; !ok {
			return nil, errors.Errorf("vocabulary type %s has unknown parent %s", t.Name, t.Parent)
		}
		if len(v.Ancestors(t.Name)) >= len(types) {
			return nil, errors.Errorf("vocabulary type %s is part of an inheritance cycle", t.Name)
		}
	}
	return v, nil
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Default returns the vocabulary shipped with the package.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Load(definition)
		if err != nil {
			panic(err)
		}
		defaultVocab = v
	})
	return defaultVocab
}

// Types returns every type in definition order.
func (v *Vocabulary) Types() []Type {
	return append([]Type(nil), v.types...)
}

// Lookup finds a type by short name or by IRI within the namespace.
func (v *Vocabulary) Lookup(t string) (Type, bool) {
	name := t
	if strings.Contains(t, "/") {
		if !strings.HasPrefix(t, Namespace) {
			return Type{}, false
		}
		name = strings.TrimPrefix(t, Namespace)
	}
	i, ok := v.byName[name]
	if !ok {
		return Type{}, false
	}
	return v.types[i], true
}

// Ancestors lists the parents of a type, nearest first. The walk stops after
// as many steps as there are types, so a cycle cannot loop forever.
func (v *Vocabulary) Ancestors(t string) []string {
	var out []string
	cur, ok := v.Lookup(t)
	for ok && cur.Parent != "" && len(out) < len(v.types) {
		out = append(out, cur.Parent)
		cur, ok = v.Lookup(cur.Parent)
	}
	return out
}

// IsA reports whether t is ancestor or one of its descendants.
func (v *Vocabulary) IsA(t, ancestor string) bool {
	if Match(t, ancestor) {
		return true
	}
	want := ShortName(ancestor)
	for _, a := range v.Ancestors(t) {
		if a == want {
			return true
		}
	}
	return false
}

// Properties returns the properties a type defines or inherits.
func (v *Vocabulary) Properties(t string) map[string]string {
	out := map[string]string{}
	chain := append([]string{ShortName(t)}, v.Ancestors(t)...)
	for i := len(chain) - 1; i >= 0; i-- {
		typ, ok := v.Lookup(chain[i])
		if !ok {
			continue
		}
		for k, d := range typ.Properties {
			out[k] = d
		}
	}
	return out
}

// ShortName returns the last path segment of a type IRI, or the argument
// itself when it is already a short name.
func ShortName(t string) string {
	if i := strings.LastIndex(t, "/"); i >= 0 {
		return t[i+1:]
	}
	return t
}

// Match reports whether two type identifiers name the same type: they are
// equal, or one is a bare short name equal to the other's short name.
func Match(a, b string) bool {
	if a == b {
		return true
	}
	if strings.Contains(a, "/") && strings.Contains(b, "/") {
		return false
	}
	return ShortName(a) == ShortName(b)
}

// IsDocumentType reports whether a type identifier denotes a document. Any
// type ending in "Document" qualifies, whatever its namespace.
func IsDocumentType(t string) bool {
	return strings.HasSuffix(t, "Document")
}
