package mmif

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// JSON-LD keywords ("@type", "@value") are held internally with a leading
// underscore and written back with "@".
const (
	jsonLDPrefix   = "@"
	internalPrefix = "_"
)

func internalKey(k string) string {
	if strings.HasPrefix(k, jsonLDPrefix) {
		return internalPrefix + k[len(jsonLDPrefix):]
	}
	return k
}

func wireKey(k string) string {
	if strings.HasPrefix(k, internalPrefix) {
		return jsonLDPrefix + k[len(internalPrefix):]
	}
	return k
}

// fromAtSign renames "@" keys at every depth of a decoded JSON value. The
// input is not modified.
func fromAtSign(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[internalKey(k)] = fromAtSign(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = fromAtSign(e)
		}
		return out
	}
	return v
}

func toAtSign(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[wireKey(k)] = toAtSign(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = toAtSign(e)
		}
		return out
	}
	return v
}

// cloneJSON copies the containers of a decoded JSON value.
func cloneJSON(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = cloneJSON(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = cloneJSON(e)
		}
		return out
	}
	return v
}

// decodeJSON parses a single JSON value. Numbers are kept as json.Number so
// integers survive a round trip untouched.
func decodeJSON(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &Error{Kind: ErrParse, Msg: err.Error()}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, parseErrorf("unexpected data after the top-level JSON value")
	}
	return v, nil
}

// rawInput turns the accepted input forms into a decoded JSON value, with
// "@" keys left untouched.
func rawInput(input interface{}) (interface{}, error) {
	switch x := input.(type) {
	case string:
		return decodeJSON([]byte(x))
	case []byte:
		return decodeJSON(x)
	case json.RawMessage:
		return decodeJSON(x)
	case map[string]interface{}:
		return x, nil
	case []interface{}:
		return x, nil
	case nil:
		return nil, parseErrorf("no input")
	}
	return nil, parseErrorf("unsupported input type %T", input)
}

// loadObject decodes input into an object with internal key names.
func loadObject(input interface{}) (map[string]interface{}, error) {
	v, err := rawInput(input)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, parseErrorf("expected a JSON object, got %s", jsonKind(v))
	}
	return fromAtSign(m).(map[string]interface{}), nil
}

func loadArray(input interface{}) ([]interface{}, error) {
	v, err := rawInput(input)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]interface{})
	if !ok {
		return nil, parseErrorf("expected a JSON array, got %s", jsonKind(v))
	}
	return fromAtSign(a).([]interface{}), nil
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32:
		return "number"
	}
	return "value"
}

func marshal(v interface{}, pretty bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "serializing MMIF object")
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// timeLayout is the layout timestamps are written with.
const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}
	// Timestamps without a zone are taken as UTC.
	return dateparse.ParseIn(s, time.UTC)
}

// canonical reduces a plain value to what encoding/json would read back, so
// json.Number, float64 and int compare by value.
func canonical(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func jsonEqual(a, b interface{}) bool {
	ca, err := canonical(a)
	if err != nil {
		return false
	}
	cb, err := canonical(b)
	if err != nil {
		return false
	}
	return cmp.Equal(ca, cb)
}
