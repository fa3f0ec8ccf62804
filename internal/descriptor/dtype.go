package descriptor

// dataTypeTokens maps a semantic tensor dtype from the pipeline file to
// the serving runtime's type symbol.
var dataTypeTokens = map[string]string{
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

// DefaultDtype is assumed when a graph model declares no dtype.
const DefaultDtype = "float32"

// DataTypeToken resolves a semantic dtype to its type token.
// The second return is false when the dtype has no mapping.
func DataTypeToken(dtype string) (Token, bool) {
	symbol, ok := dataTypeTokens[dtype]
	if !ok {
		return Token{}, false
	}
	return NewScalarToken(symbol), true
}
