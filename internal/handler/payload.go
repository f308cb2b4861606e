package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// maxBodyBytes caps request bodies on the alert endpoints.
const maxBodyBytes = 1 << 20

// payload is a leniently decoded JSON object body.
type payload map[string]any

// decodePayload reads the body as a JSON object. A missing, malformed or
// non-object body yields an empty payload so the field checks report what is missing.
func decodePayload(r *http.Request) payload {
	if r.Body == nil {
		return payload{}
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return payload{}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p map[string]any
	if err := dec.Decode(&p); err != nil || p == nil {
		return payload{}
	}
	return payload(p)
}

// str returns the first key holding a non-empty string or number, as a string.
func (p payload) str(keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// float parses a number or a numeric string. Missing, unparsable and
// non-finite values are reported as nil.
func (p payload) float(key string) *float64 {
	var (
		f   float64
		err error
	)
	switch v := p[key].(type) {
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return nil
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// firstFloat returns the first key holding a non-zero number.
func (p payload) firstFloat(keys ...string) *float64 {
	var last *float64
	for _, k := range keys {
		if v := p.float(k); v != nil {
			if *v != 0 {
				return v
			}
			last = v
		}
	}
	return last
}

func (p payload) bool(key string) bool {
	return parseBool(p[key])
}

// parseBool accepts booleans, non-zero numbers and the strings
// 1/true/yes/y in any case.
func parseBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "y":
			return true
		}
		return false
	case json.Number:
		f, err := b.Float64()
		return err == nil && f != 0
	case float64:
		return b != 0
	}
	return false
}

// data coerces the "data" object into string values. Anything that is not an
// object yields an empty map.
func (p payload) data() map[string]string {
	obj, ok := p["data"].(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// tokens reads "tokens" as a single string or an array. A nil result means
// the field was absent or of another type.
func (p payload) tokens() []string {
	switch v := p["tokens"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
