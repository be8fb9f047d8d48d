package serial

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// coerceKind is the target type of one documented coercion.
type coerceKind int

const (
	coerceBool coerceKind = iota
	coerceInt
)

// coercion documents one field known to arrive in a looser representation
// than its derived column's type requires.
type coercion struct {
	field string
	kind  coerceKind
}

// coercionTable is the complete, closed list of documented coercions.
// Values outside this table are never converted: a mismatch between a
// value and its declared type is an error, not a best-effort cast.
//
//   - private: the collaborator historically serialized the privacy flag
//     as 0/1; the column is BOOLEAN.
//   - gender:  enumeration stored as a small integer.
//   - change:  last-change timestamp as integer seconds.
var coercionTable = []coercion{
	{field: "private", kind: coerceBool},
	{field: "gender", kind: coerceInt},
	{field: "change", kind: coerceInt},
}

// ToStorage converts a collaborator object representation into the handle
// and document to persist. The document's raw bytes are stored verbatim.
//
// Every field in the coercion table is checked: a value that cannot be
// coerced to its target type fails with *TypeMismatchError before any row
// is written.
func ToStorage(v any) (string, Document, error) {
	doc, err := Normalize(v)
	if err != nil {
		return "", Document{}, err
	}

	handle, ok := doc.Handle()
	if !ok || handle == "" {
		return "", Document{}, fmt.Errorf("document has no handle")
	}

	for _, c := range coercionTable {
		raw, present := doc.fields[c.field]
		if !present || raw == nil {
			continue
		}
		if _, err := coerceValue(raw, c); err != nil {
			return "", Document{}, err
		}
	}

	return handle, doc, nil
}

// FromStorage normalizes driver output (encoded text or structured form)
// into a Document whose field view carries the documented coercions, so a
// privacy flag stored as 0/1 reads back as a native boolean.
func FromStorage(v any) (Document, error) {
	doc, err := Normalize(v)
	if err != nil {
		return Document{}, err
	}

	for _, c := range coercionTable {
		raw, present := doc.fields[c.field]
		if !present || raw == nil {
			continue
		}
		coerced, err := coerceValue(raw, c)
		if err != nil {
			return Document{}, err
		}
		doc.fields[c.field] = coerced
	}

	return doc, nil
}

// coerceValue applies one documented coercion.
func coerceValue(v any, c coercion) (any, error) {
	switch c.kind {
	case coerceBool:
		switch val := v.(type) {
		case bool:
			return val, nil
		case json.Number:
			switch val.String() {
			case "0":
				return false, nil
			case "1":
				return true, nil
			}
		case float64:
			if val == 0 {
				return false, nil
			}
			if val == 1 {
				return true, nil
			}
		case int:
			if val == 0 {
				return false, nil
			}
			if val == 1 {
				return true, nil
			}
		}
		return nil, &TypeMismatchError{Field: c.field, Value: v, Want: "bool"}

	case coerceInt:
		switch val := v.(type) {
		case int:
			return int64(val), nil
		case int64:
			return val, nil
		case json.Number:
			if n, err := val.Int64(); err == nil {
				return n, nil
			}
		case float64:
			if val == float64(int64(val)) {
				return int64(val), nil
			}
		}
		return nil, &TypeMismatchError{Field: c.field, Value: v, Want: "int"}
	}
	return nil, fmt.Errorf("unknown coercion kind %d", c.kind)
}

// NormalizeName NFC-normalizes a name used as a shared-table key.
// Shared rows (surname, name-group) are keyed across tenants; two Unicode
// representations of the same surname must land on the same row.
func NormalizeName(s string) string {
	return norm.NFC.String(s)
}

// TypeMismatchError reports a value that does not match its declared type
// and is not covered by the documented coercion table. The write that
// carried it was rejected whole; no partial row exists.
type TypeMismatchError struct {
	// Field is the document field that failed.
	Field string

	// Value is the offending value.
	Value any

	// Want names the target type.
	Want string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %s: value %v (%T) cannot be coerced to %s", e.Field, e.Value, e.Value, e.Want)
}

// IsTypeMismatch returns true if the error is a coercion failure.
// Uses errors.As to handle wrapped errors.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}
