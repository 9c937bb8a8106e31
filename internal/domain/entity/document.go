package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a free-form JSON object such as a recipient profile, a
// preferences document or event data.
//
// Upstream producers sometimes send these sub-documents as JSON-encoded
// strings and sometimes as objects. Document normalises both shapes when it is
// decoded, so call sites never need to check.
type Document map[string]any

// UnmarshalJSON implements json.Unmarshaler using ParseIfString.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := ParseIfString(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// ParseIfString decodes raw JSON into a Document.
//
// Accepted inputs:
//   - a JSON object
//   - a JSON string whose content is a JSON object (or empty)
//   - null or empty input, which yields a nil Document
//
// Anything else returns ErrInvalidDocument.
func ParseIfString(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		if len(bytes.TrimSpace([]byte(s))) == 0 {
			return nil, nil
		}
		return ParseIfString([]byte(s))
	}

	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidDocument)
	}

	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Document(m), nil
}

// Get returns the value stored under key and whether it was present.
func (d Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d[key]
	return v, ok
}

// String returns the value under key when it is a non-empty string.
func (d Document) String(key string) string {
	v, _ := d.Get(key)
	s, _ := v.(string)
	return s
}

// Object returns the nested object under key, or nil.
func (d Document) Object(key string) Document {
	v, _ := d.Get(key)
	switch obj := v.(type) {
	case map[string]any:
		return Document(obj)
	case Document:
		return obj
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Document:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
