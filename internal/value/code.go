package value

import (
	"encoding/binary"
	"fmt"
	"sort"

	"isle/internal/token"
)

// Operation is an opcode of the isle bytecode.
type Operation byte

const (
	OpReturn Operation = iota // finish the activation with the top of stack

	OpPush // ValueIndex; push values[i]
	OpPop
	OpSwap

	OpJump   // ByteIndex
	OpJumpIf // ByteIndex; pop boolean, jump iff true

	OpForce // pop, push the weak head normal form

	// Scopes
	OpScopeStart // push a fresh empty scope
	OpScopeEnd   // pop the tip scope
	OpScopePush  // pop attributes, push them as a scope
	OpScopeSwap  // pop attributes, push the tip's, merge the popped into the tip

	OpInterpolate // pop right, pop left, push left ++ right as text
	OpResolve     // pop reference, push the bound value

	OpAssertBoolean // top must be a boolean, not popped

	// Unary
	OpSwwallation // +x
	OpNegation    // -x
	OpNot         // !x

	// Structural
	OpConcat    // ++
	OpConstruct // pop tail, pop head, push head : tail
	OpUpdate    // pop right, pop left, push left // right

	// Relational
	OpLessOrEqual
	OpLess
	OpMoreOrEqual
	OpMore
	OpEqual

	// Logical, right operand is forced only when needed
	OpAll
	OpAny

	// Arithmetic
	OpAddition
	OpSubtraction
	OpMultiplication
	OpPower
	OpDivision

	OpCall // pop argument, pop function, push the application

	opCount
)

var operationNames = [...]string{
	OpReturn:         "Return",
	OpPush:           "Push",
	OpPop:            "Pop",
	OpSwap:           "Swap",
	OpJump:           "Jump",
	OpJumpIf:         "JumpIf",
	OpForce:          "Force",
	OpScopeStart:     "ScopeStart",
	OpScopeEnd:       "ScopeEnd",
	OpScopePush:      "ScopePush",
	OpScopeSwap:      "ScopeSwap",
	OpInterpolate:    "Interpolate",
	OpResolve:        "Resolve",
	OpAssertBoolean:  "AssertBoolean",
	OpSwwallation:    "Swwallation",
	OpNegation:       "Negation",
	OpNot:            "Not",
	OpConcat:         "Concat",
	OpConstruct:      "Construct",
	OpUpdate:         "Update",
	OpLessOrEqual:    "LessOrEqual",
	OpLess:           "Less",
	OpMoreOrEqual:    "MoreOrEqual",
	OpMore:           "More",
	OpEqual:          "Equal",
	OpAll:            "All",
	OpAny:            "Any",
	OpAddition:       "Addition",
	OpSubtraction:    "Subtraction",
	OpMultiplication: "Multiplication",
	OpPower:          "Power",
	OpDivision:       "Division",
	OpCall:           "Call",
}

func (op Operation) String() string {
	if op < opCount {
		return operationNames[op]
	}
	return fmt.Sprintf("Operation(%d)", byte(op))
}

func (op Operation) Valid() bool { return op < opCount }

// Argument describes the inline operand an operation carries.
type Argument int

const (
	ArgNone Argument = iota
	ArgValueIndex
	ArgByteIndex
)

func (op Operation) Argument() Argument {
	switch op {
	case OpPush:
		return ArgValueIndex
	case OpJump, OpJumpIf:
		return ArgByteIndex
	default:
		return ArgNone
	}
}

// ByteIndex points into a code's byte stream. Encoded as 4 little-endian
// bytes.
type ByteIndex uint32

// ValueIndex points into a code's value table. Encoded as a uvarint.
type ValueIndex uint64

const byteIndexSize = 4

type codeLocation struct {
	at   ByteIndex
	span token.Span
}

// Code is an immutable compiled body: the instruction bytes, the value
// table, and a sorted table mapping byte offsets to source spans.
type Code struct {
	path      *Path
	parameter string
	hasParam  bool
	bytes     []byte
	values    []Value
	locations []codeLocation
}

func (c *Code) Path() *Path { return c.path }

// Parameter returns the bound parameter name of a lambda body.
func (c *Code) Parameter() (string, bool) { return c.parameter, c.hasParam }

func (c *Code) Bytes() []byte { return c.bytes }

func (c *Code) Values() []Value { return c.values }

func (c *Code) Len() int { return len(c.bytes) }

func (c *Code) Value(i ValueIndex) (Value, error) {
	if uint64(i) >= uint64(len(c.values)) {
		return Value{}, fmt.Errorf("value index %d out of range (%d values)", i, len(c.values))
	}
	return c.values[i], nil
}

// Instruction is one decoded operation.
type Instruction struct {
	Op     Operation
	Value  ValueIndex
	Target ByteIndex
	// Next is the offset of the following instruction.
	Next ByteIndex
}

// Read decodes the instruction at ip.
func (c *Code) Read(ip ByteIndex) (Instruction, error) {
	if int(ip) >= len(c.bytes) {
		return Instruction{}, fmt.Errorf("instruction pointer %d past end of code (%d bytes)", ip, len(c.bytes))
	}
	op := Operation(c.bytes[ip])
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("invalid operation %d at %d", c.bytes[ip], ip)
	}
	in := Instruction{Op: op}
	pos := int(ip) + 1
	switch op.Argument() {
	case ArgValueIndex:
		v, n := binary.Uvarint(c.bytes[pos:])
		if n <= 0 {
			return Instruction{}, fmt.Errorf("malformed value index at %d", pos)
		}
		in.Value = ValueIndex(v)
		pos += n
	case ArgByteIndex:
		if pos+byteIndexSize > len(c.bytes) {
			return Instruction{}, fmt.Errorf("truncated jump target at %d", pos)
		}
		in.Target = ByteIndex(binary.LittleEndian.Uint32(c.bytes[pos:]))
		pos += byteIndexSize
	}
	in.Next = ByteIndex(pos)
	return in, nil
}

// Span returns the source span recorded for the instruction at ip.
func (c *Code) Span(ip ByteIndex) token.Span {
	i := sort.Search(len(c.locations), func(i int) bool {
		return c.locations[i].at > ip
	})
	if i == 0 {
		return token.Span{}
	}
	return c.locations[i-1].span
}

// Location returns the source location of the instruction at ip.
func (c *Code) Location(ip ByteIndex) Location {
	return Location{Path: c.path, Span: c.Span(ip)}
}

// LocationEntry is an exported view of the location table.
type LocationEntry struct {
	At   ByteIndex
	Span token.Span
}

func (c *Code) Locations() []LocationEntry {
	out := make([]LocationEntry, len(c.locations))
	for i, l := range c.locations {
		out[i] = LocationEntry{At: l.at, Span: l.span}
	}
	return out
}

// Builder assembles a Code. It is not safe for concurrent use.
type Builder struct {
	code Code
}

func NewBuilder(path *Path) *Builder {
	return &Builder{code: Code{path: path}}
}

// SetParameter marks the code as a lambda body binding name.
func (b *Builder) SetParameter(name string) {
	b.code.parameter = Intern(name)
	b.code.hasParam = true
}

// Here is the offset the next operation will be written at.
func (b *Builder) Here() ByteIndex { return ByteIndex(len(b.code.bytes)) }

// PushOperation appends op, recording span for it. For operations with an
// inline argument, the caller appends it next.
func (b *Builder) PushOperation(span token.Span, op Operation) ByteIndex {
	at := b.Here()
	if n := len(b.code.locations); n == 0 || b.code.locations[n-1].span != span {
		b.code.locations = append(b.code.locations, codeLocation{at: at, span: span})
	}
	b.code.bytes = append(b.code.bytes, byte(op))
	return at
}

// PushValueIndex appends i as a uvarint operand.
func (b *Builder) PushValueIndex(i ValueIndex) {
	b.code.bytes = binary.AppendUvarint(b.code.bytes, uint64(i))
}

// PushByteIndex appends a jump target placeholder and returns its offset for
// PointHere.
func (b *Builder) PushByteIndex(target ByteIndex) ByteIndex {
	at := b.Here()
	b.code.bytes = binary.LittleEndian.AppendUint32(b.code.bytes, uint32(target))
	return at
}

// PointHere patches the operand at operand to the current end of code.
func (b *Builder) PointHere(operand ByteIndex) {
	binary.LittleEndian.PutUint32(b.code.bytes[operand:], uint32(b.Here()))
}

// AddValue appends v to the value table without deduplication.
func (b *Builder) AddValue(v Value) ValueIndex {
	b.code.values = append(b.code.values, v)
	return ValueIndex(len(b.code.values) - 1)
}

// Finish returns the code. The builder must not be used afterwards.
func (b *Builder) Finish() *Code {
	c := b.code
	return &c
}

// RawCode reassembles a code from its parts, as read back from storage.
func RawCode(path *Path, parameter *string, bytes []byte, values []Value, locations []LocationEntry) *Code {
	c := &Code{path: path, bytes: bytes, values: values}
	if parameter != nil {
		c.parameter = Intern(*parameter)
		c.hasParam = true
	}
	for _, l := range locations {
		c.locations = append(c.locations, codeLocation{at: l.At, span: l.Span})
	}
	return c
}
