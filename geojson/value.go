package geojson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/buger/jsonparser"
)

// TypeError is returned by typed accessors when JSON value holds a different
// kind of data than requested.
type TypeError struct {
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("json value is %s, not %s", e.Got, e.Want)
}

// Value is a single JSON property value. Kind tells which accessor is going
// to succeed, raw keeps value bytes as they were in the source (strings
// without quotes, still escaped).
type Value struct {
	Kind jsonparser.ValueType
	raw  []byte
}

// NewValue wraps raw JSON bytes as returned by jsonparser.
func NewValue(kind jsonparser.ValueType, raw []byte) Value {
	return Value{Kind: kind, raw: raw}
}

func (v Value) IsNull() bool {
	return v.Kind == jsonparser.Null
}

func (v Value) AsString() (string, error) {
	if v.Kind != jsonparser.String {
		return "", &TypeError{Want: "string", Got: v.Kind.String()}
	}
	return jsonparser.ParseString(v.raw)
}

// AsInt succeeds only for numbers written as integer literals.
func (v Value) AsInt() (int64, error) {
	if v.Kind != jsonparser.Number {
		return 0, &TypeError{Want: "integer", Got: v.Kind.String()}
	}
	if !isIntegerLiteral(v.raw) {
		return 0, &TypeError{Want: "integer", Got: "fractional number"}
	}
	return jsonparser.ParseInt(v.raw)
}

func (v Value) AsFloat() (float64, error) {
	if v.Kind != jsonparser.Number {
		return 0, &TypeError{Want: "number", Got: v.Kind.String()}
	}
	return jsonparser.ParseFloat(v.raw)
}

func (v Value) AsBool() (bool, error) {
	if v.Kind != jsonparser.Boolean {
		return false, &TypeError{Want: "boolean", Got: v.Kind.String()}
	}
	return jsonparser.ParseBoolean(v.raw)
}

// Text returns human readable representation of the value: strings are
// unescaped, integers are kept as written, other numbers use shortest
// round-trip form, arrays and objects are compact JSON.
func (v Value) Text() string {
	switch v.Kind {
	case jsonparser.String:
		if s, err := jsonparser.ParseString(v.raw); err == nil {
			return s
		}
		return string(v.raw)
	case jsonparser.Number:
		if isIntegerLiteral(v.raw) {
			return string(v.raw)
		}
		if f, err := jsonparser.ParseFloat(v.raw); err == nil {
			return FormatFloat(f)
		}
		return string(v.raw)
	case jsonparser.Array, jsonparser.Object:
		buf := new(bytes.Buffer)
		if err := json.Compact(buf, v.raw); err == nil {
			return buf.String()
		}
		return string(v.raw)
	case jsonparser.Null:
		return "null"
	default:
		return string(v.raw)
	}
}

// FormatFloat produces shortest decimal representation which parses back to
// the same float64. Exponent form is only used for very small and very large
// magnitudes.
func FormatFloat(f float64) string {
	if a := math.Abs(f); a != 0 && (a < 1e-6 || a >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isIntegerLiteral(raw []byte) bool {
	return len(raw) > 0 && bytes.IndexAny(raw, ".eE") < 0
}
