package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarToken(t *testing.T) {
	tok := NewScalarToken("TYPE_FP32")
	assert.False(t, tok.IsSequence())
	assert.Equal(t, "TYPE_FP32", tok.String())
	assert.Equal(t, []string{"TYPE_FP32"}, tok.Symbols())
}

func TestSequenceToken(t *testing.T) {
	tok := NewSequenceToken([]string{"a", "b"})
	assert.True(t, tok.IsSequence())
	assert.Equal(t, "[a, b]", tok.String())
}

func TestDimsTokenNoSubstitution(t *testing.T) {
	tok := NewDimsToken([]int64{0, 3, 224}, false)
	assert.Equal(t, "[0, 3, 224]", tok.String())
}

func TestDimsTokenSubstitutesZero(t *testing.T) {
	// 0 means "unknown extent" and renders as -1; the substitution is
	// applied at construction, not at render time.
	tok := NewDimsToken([]int64{0, 3, 224, 224}, true)
	assert.Equal(t, "[-1, 3, 224, 224]", tok.String())
	assert.Equal(t, []string{"-1", "3", "224", "224"}, tok.Symbols())
}

func TestDimsTokenEmpty(t *testing.T) {
	tok := NewDimsToken(nil, true)
	assert.Equal(t, "[]", tok.String())
}

func TestDataTypeTokenTable(t *testing.T) {
	cases := map[string]string{
		"float32": "TYPE_FP32",
		"float64": "TYPE_FP64",
		"int8":    "TYPE_INT8",
		"int16":   "TYPE_INT16",
		"int32":   "TYPE_INT32",
		"int64":   "TYPE_INT64",
		"uint8":   "TYPE_UINT8",
		"uint16":  "TYPE_UINT16",
		"uint32":  "TYPE_UINT32",
		"uint64":  "TYPE_UINT64",
		"bool":    "TYPE_BOOL",
		"string":  "TYPE_STRING",
	}
	for dtype, want := range cases {
		tok, ok := DataTypeToken(dtype)
		assert.True(t, ok, dtype)
		assert.Equal(t, want, tok.String(), dtype)
	}
}

func TestDataTypeTokenUnknown(t *testing.T) {
	_, ok := DataTypeToken("complex128")
	assert.False(t, ok)
}
