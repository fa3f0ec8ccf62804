package descriptor

import "strconv"

// Token is an enum-like pbtxt value that renders without quotes.
// It is either a single symbol ("TYPE_FP32", "KIND_GPU") or a bracketed
// sequence of symbols ("[-1, 3, 224, 224]").
//
// Any value remapping (such as the 0 -> -1 substitution for unknown
// tensor extents) is applied at construction, so rendering is a pure
// string join.
type Token struct {
	scalar string
	seq    []string
	isSeq  bool
}

// NewScalarToken creates a single-symbol token.
func NewScalarToken(symbol string) Token {
	return Token{scalar: symbol}
}

// NewSequenceToken creates a bracketed sequence token from symbols.
func NewSequenceToken(symbols []string) Token {
	return Token{seq: symbols, isSeq: true}
}

// NewDimsToken creates a sequence token from tensor dimensions.
// When substituteZero is set, a 0 extent is rendered as -1 to signal an
// unknown extent to the serving runtime. The substitution affects only
// the rendered token, never the underlying payload.
func NewDimsToken(dims []int64, substituteZero bool) Token {
	symbols := make([]string, len(dims))
	for i, d := range dims {
		if substituteZero && d == 0 {
			d = -1
		}
		symbols[i] = strconv.FormatInt(d, 10)
	}
	return Token{seq: symbols, isSeq: true}
}

// IsSequence reports whether the token renders as a bracketed list.
func (t Token) IsSequence() bool {
	return t.isSeq
}

// Symbols returns the rendered symbols of a sequence token.
// For a scalar token it returns a single-element slice.
func (t Token) Symbols() []string {
	if t.isSeq {
		return t.seq
	}
	return []string{t.scalar}
}

// String renders the token in pbtxt form.
func (t Token) String() string {
	if !t.isSeq {
		return t.scalar
	}
	out := "["
	for i, s := range t.seq {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out + "]"
}
