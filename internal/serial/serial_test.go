package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RawBytesKeptVerbatim(t *testing.T) {
	// Field order deliberately not alphabetical: a re-encoding would
	// reorder the keys and break positional readers.
	raw := `{"handle": "P1", "gramps_id": "I0001", "change": 5}`

	doc, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, string(doc.Raw()))

	handle, ok := doc.Handle()
	require.True(t, ok)
	assert.Equal(t, "P1", handle)
}

func TestNormalize_AcceptedForms(t *testing.T) {
	forms := []any{
		`{"handle": "P1"}`,
		[]byte(`{"handle": "P1"}`),
		map[string]any{"handle": "P1"},
	}
	for _, form := range forms {
		doc, err := Normalize(form)
		require.NoError(t, err)
		handle, ok := doc.Handle()
		require.True(t, ok)
		assert.Equal(t, "P1", handle)
	}
}

func TestNormalize_RejectsUnknownForms(t *testing.T) {
	_, err := Normalize(42)
	assert.Error(t, err)

	_, err = Normalize("not json")
	assert.Error(t, err)
}

func TestToStorage_RequiresHandle(t *testing.T) {
	_, _, err := ToStorage(`{"gramps_id": "I0001"}`)
	assert.Error(t, err)
}

func TestToStorage_AcceptsDocumentedCoercions(t *testing.T) {
	handle, doc, err := ToStorage(`{"handle": "P1", "private": 1, "gender": 0, "change": 174}`)
	require.NoError(t, err)
	assert.Equal(t, "P1", handle)
	// Raw bytes stay untouched; coercion only validates here.
	assert.Contains(t, string(doc.Raw()), `"private": 1`)
}

func TestToStorage_RejectsUncoercibleValue(t *testing.T) {
	_, _, err := ToStorage(`{"handle": "P1", "private": "maybe"}`)
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err), "want TypeMismatchError, got %v", err)

	var te *TypeMismatchError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "private", te.Field)
}

func TestToStorage_RejectsFractionalInt(t *testing.T) {
	_, _, err := ToStorage(`{"handle": "P1", "gender": 1.5}`)
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err))
}

func TestFromStorage_CoercesFieldView(t *testing.T) {
	doc, err := FromStorage(`{"handle": "P1", "private": 1, "gender": 2}`)
	require.NoError(t, err)

	private, ok := doc.Field("private")
	require.True(t, ok)
	assert.Equal(t, true, private)

	gender, ok := doc.Field("gender")
	require.True(t, ok)
	assert.Equal(t, int64(2), gender)

	// Raw bytes still carry the original representation.
	assert.Contains(t, string(doc.Raw()), `"private": 1`)
}

func TestFromStorage_NativeBoolPassesThrough(t *testing.T) {
	doc, err := FromStorage(`{"handle": "P1", "private": true}`)
	require.NoError(t, err)

	private, _ := doc.Field("private")
	assert.Equal(t, true, private)
}

func TestLookup_Paths(t *testing.T) {
	doc, err := Normalize(`{
		"handle": "P1",
		"primary_name": {"surname_list": [{"surname": "Doe"}, {"surname": "Roe"}]},
		"family_list": ["F1", "F2"],
		"event_ref_list": [{"ref": "E1"}, {"ref": "E2"}]
	}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"F1", "F2"}, doc.Strings("$.family_list[*]"))
	assert.Equal(t, []string{"E1", "E2"}, doc.Strings("$.event_ref_list[*].ref"))
	assert.Equal(t, []string{"Doe"}, doc.Strings("$.primary_name.surname_list[0].surname"))
	assert.Empty(t, doc.Strings("$.note_list[*]"))
	assert.Empty(t, doc.Strings("not a path"))
}

func TestNormalizeName_NFC(t *testing.T) {
	decomposed := "Mu\u0308ller" // u + combining diaeresis
	composed := "M\u00fcller"

	assert.Equal(t, composed, NormalizeName(decomposed))
	assert.Equal(t, composed, NormalizeName(composed))
}
