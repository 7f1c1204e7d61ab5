package codec

import (
	"bytes"
	"encoding/json"
)

// JSON implements the RFC 8259 codec used for platform messages that
// don't need the binary codec's compactness. Encoding is encoding/json
// with HTML escaping turned off: `<`, `>` and `&` are written as is,
// `"`, `\`, \n, \r and \t get their short escapes, and every other
// control character, as well as U+2028 and U+2029, is written as a
// \uXXXX escape (Go 1.22 and later use the short \b and \f forms).
type JSON struct{}

// Encode marshals v with encoding/json, HTML escaping disabled, and
// drops the encoder's trailing newline.
func (JSON) Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; the wire format
	// doesn't want it.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a JSON message into the same Value shapes Binary.Decode
// produces where they overlap (nil, bool, float64, string, []Value,
// map[string]Value); JSON has no distinct int/array-of-primitives
// types, so numbers always decode as float64 and objects' keys are
// always strings.
func (JSON) Decode(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v any) Value {
	switch x := v.(type) {
	case []any:
		out := make([]Value, len(x))
		for i, item := range x {
			out[i] = normalizeJSON(item)
		}
		return out
	case map[string]any:
		out := make(map[Value]Value, len(x))
		for k, val := range x {
			out[k] = normalizeJSON(val)
		}
		return out
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}
