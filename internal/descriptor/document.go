package descriptor

// FieldRole classifies positional descriptor fields for pbtxt emission.
// The in-memory document carries per-position unique field names
// ("input_1", "input_2", ...) so tensor identity survives construction,
// while the emitted format uses the repeated-field convention (every
// block named "input"). The role is assigned at construction; the
// renderer never inspects the literal field name, so a user field that
// happens to contain "input" in its name is emitted verbatim.
type FieldRole int

const (
	RoleNone FieldRole = iota
	RoleInput
	RoleOutput
	RoleInputMap
	RoleOutputMap
)

// alias returns the canonical emitted name for a positional role, or
// the field's own name for RoleNone.
func (r FieldRole) alias(name string) string {
	switch r {
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleInputMap:
		return "input_map"
	case RoleOutputMap:
		return "output_map"
	default:
		return name
	}
}

// EmittedName resolves the pbtxt key for a field.
func (f Field) EmittedName() string {
	return f.Role.alias(f.Name)
}

// Value is a sealed interface over the kinds of values a descriptor
// document can hold. Only String, Int, Token, List, and Block implement
// it.
type Value interface {
	value()
}

// String renders as a quoted literal.
type String string

func (String) value() {}

// Int renders as a bare integer literal.
type Int int64

func (Int) value() {}

func (Token) value() {}

// List renders as a bracketed block; scalar elements sit on their own
// lines and Block elements become brace-delimited entries separated by
// commas.
type List []Value

func (List) value() {}

// Block is an ordered mapping rendered as a brace-delimited nested
// block. Field order is insertion order and is load-bearing: the
// serving runtime's descriptor format is order-sensitive.
type Block struct {
	Fields []Field
}

func (*Block) value() {}

// Field is one keyed entry of a Block.
type Field struct {
	Name  string
	Role  FieldRole
	Value Value
}

// NewBlock creates an empty document block.
func NewBlock() *Block {
	return &Block{}
}

// Append adds a roleless field and returns the block for chaining.
func (b *Block) Append(name string, v Value) *Block {
	return b.AppendRole(name, RoleNone, v)
}

// AppendRole adds a field with an explicit positional role.
func (b *Block) AppendRole(name string, role FieldRole, v Value) *Block {
	b.Fields = append(b.Fields, Field{Name: name, Role: role, Value: v})
	return b
}
