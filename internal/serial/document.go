// Package serial converts between the domain collaborator's opaque
// serialized objects and the JSON documents the entity tables store.
//
// The document's raw bytes are authoritative: they are stored verbatim so
// field ordering and keys stay byte-for-byte identical to the
// collaborator's serialize() output, which may be read back positionally.
// The parsed view exists only for field access (derived-path extraction,
// reference recomputation, coercion checks) and never feeds storage.
package serial

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is one canonical JSON record.
type Document struct {
	raw    []byte
	fields map[string]any
}

// Normalize accepts the document in either already-structured form or as
// encoded text and produces the same internal representation for both.
// The underlying driver does not guarantee which form arrives.
//
// Accepted inputs: Document, []byte, json.RawMessage, string, and
// map[string]any. A structured input is encoded once to obtain raw bytes;
// an encoded input is decoded once to obtain the field view.
func Normalize(v any) (Document, error) {
	switch val := v.(type) {
	case Document:
		return val, nil
	case []byte:
		return fromRaw(val)
	case json.RawMessage:
		return fromRaw(val)
	case string:
		return fromRaw([]byte(val))
	case map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			return Document{}, fmt.Errorf("encode document: %w", err)
		}
		return Document{raw: raw, fields: val}, nil
	default:
		return Document{}, fmt.Errorf("unsupported document representation: %T", v)
	}
}

func fromRaw(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}

	// Keep the caller's bytes, not a re-encoding: ordering must survive.
	return Document{raw: raw, fields: fields}, nil
}

// Raw returns the canonical bytes exactly as the collaborator produced
// them.
func (d Document) Raw() []byte {
	return d.raw
}

// Handle returns the record's opaque identifier from $.handle.
func (d Document) Handle() (string, bool) {
	v, ok := d.fields["handle"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Field returns the top-level field value and whether it is present.
func (d Document) Field(name string) (any, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// IsZero reports whether the document is empty.
func (d Document) IsZero() bool {
	return d.raw == nil && d.fields == nil
}
