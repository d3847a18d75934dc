package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces RFC 8785 canonical JSON. This is the only serialization
// used for definition equality and hashing.
//
// Accepts Value trees and the plain Go shapes produced by encoding/json
// (string, bool, int, int64, float64, json.Number, []any, []string,
// map[string]any, map[string]string, nil).
func Marshal(v any) ([]byte, error) {
	cv, err := toValue(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, cv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toValue(v any) (Value, error) {
	switch val := v.(type) {
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = String(s)
		}
		return arr, nil
	case map[string]string:
		obj := make(Object, len(val))
		for k, s := range val {
			obj[k] = String(s)
		}
		return obj, nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			cv, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			cv, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return FromAny(v)
	}
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		b, err := marshalString(string(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		b, err := formatFloat(float64(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalString(k)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalString emits a JSON string without HTML escaping. The text is kept
// exactly as given: strings differing only in Unicode composition produce
// different bytes. U+2028 and U+2029 are written literally.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return unescapeLineSeparators(out), nil
}

// NonNFCPaths lists the strings and object keys in v that are not in
// Unicode normalization form C, as dotted paths with [i] for array
// elements. Paths are sorted.
func NonNFCPaths(v any) ([]string, error) {
	cv, err := toValue(v)
	if err != nil {
		return nil, err
	}
	var paths []string
	collectNonNFC(cv, "", &paths)
	slices.Sort(paths)
	return paths, nil
}

func collectNonNFC(v Value, path string, out *[]string) {
	switch val := v.(type) {
	case String:
		if !norm.NFC.IsNormalString(string(val)) {
			*out = append(*out, path)
		}
	case Array:
		for i, elem := range val {
			collectNonNFC(elem, fmt.Sprintf("%s[%d]", path, i), out)
		}
	case Object:
		for k, elem := range val {
			child := k
			if path != "" {
				child = path + "." + k
			}
			if !norm.NFC.IsNormalString(k) {
				*out = append(*out, child)
			}
			collectNonNFC(elem, child, out)
		}
	}
}

// unescapeLineSeparators rewrites \u2028 and \u2029 escapes emitted by
// encoding/json into the literal characters, leaving \\u2028 (an escaped
// backslash followed by text) untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// formatFloat renders a number the way ECMAScript Number.prototype.toString
// does, which is what RFC 8785 requires.
func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number is not valid JSON: %v", f)
	}
	if f == 0 {
		return []byte("0"), nil
	}

	exp := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(exp, "e")
	e, err := strconv.Atoi(expPart)
	if err != nil {
		return nil, fmt.Errorf("format number %v: %w", f, err)
	}
	if e >= -6 && e < 21 {
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}

	sign := "+"
	if e < 0 {
		sign = "-"
		e = -e
	}
	return []byte(mantissa + "e" + sign + strconv.Itoa(e)), nil
}
