// Package ast contains the tagged abstract-syntax-tree type our parser
// builds and our code generator walks, along with the small amount of
// type and symbol-table machinery (Type, LVal, Frame) the parser needs
// to track declared locals.
//
// This generalizes the flat Instruction{Type, Value} intermediate form
// a simple RPN-stack compiler would use into a tree, since the source
// language here has structured control flow and named variables rather
// than a flat operator stream.
package ast

import "fmt"

// Type is a (possibly recursive) type annotation: either a plain
// integer, or a pointer to another Type.
type Type struct {
	// Pointee is non-nil when this Type is a pointer; nil means a
	// plain Int.
	Pointee *Type
}

// Int is the plain integer type.
var Int = Type{}

// Pointer returns the type "pointer to t".
func Pointer(t Type) Type {
	return Type{Pointee: &t}
}

// IsPointer reports whether t is a pointer type.
func (t Type) IsPointer() bool {
	return t.Pointee != nil
}

// String renders the type for diagnostics, e.g. "int", "int*", "int**".
func (t Type) String() string {
	if !t.IsPointer() {
		return "int"
	}
	return fmt.Sprintf("%s*", t.Pointee.String())
}

// LVal is a single declared local: its source name, its declared
// type, and its byte offset from the frame base pointer. All locals
// occupy 8 bytes on the stack regardless of declared type.
type LVal struct {
	Name   string
	Type   Type
	Offset int
}

// Kind tags the variety of an AST Node.
type Kind int

// Node kinds.
const (
	KindNum Kind = iota
	KindLVal
	KindNop
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindEq
	KindNotEq
	KindLt
	KindLeq
	KindAddr
	KindDeref
	KindAssign
	KindDeclar
	KindReturn
	KindIf
	KindWhile
	KindFor
	KindBlock
	KindFunc
	KindDef
)

// Node is the single tagged-variant AST node type. Most kinds only
// use Lhs/Rhs; the handful of kinds with extra structure (If's
// condition, For's three expressions, Block's statement list, Func's
// call info, Def's definition info) carry it in the kind-specific
// payload fields below - exactly one of which is populated, matching
// Kind.
type Node struct {
	Kind Kind
	Lhs  *Node
	Rhs  *Node

	// Num is populated for KindNum.
	Num int64

	// Offset is populated for KindLVal.
	Offset int

	// If is populated for KindIf: Lhs is the then-branch, Rhs the
	// optional else-branch (nil when absent).
	If *IfPayload

	// For is populated for KindFor.
	For *ForPayload

	// Block is populated for KindBlock.
	Block *BlockPayload

	// Func is populated for KindFunc (a call site).
	Func *FuncPayload

	// Def is populated for KindDef (a function definition).
	Def *DefPayload
}

// IfPayload holds the condition of an If node.
type IfPayload struct {
	Cond *Node
}

// ForPayload holds the three expression slots of a For node. A
// missing slot is represented as a KindNop leaf, never nil.
type ForPayload struct {
	Init *Node
	End  *Node
	Inc  *Node
}

// BlockPayload holds an ordered list of statement nodes.
type BlockPayload struct {
	Stmts []*Node
}

// FuncPayload describes a call site.
type FuncPayload struct {
	Name string
	Argv []*Node
}

// DefPayload describes a function definition.
type DefPayload struct {
	Name string
	Args int
	Body *Node
	// LocalID indexes into the FrameTable the parser produced,
	// identifying this function's locals.
	LocalID int
}

// NewLeaf builds a childless node of the given kind.
func NewLeaf(kind Kind) *Node {
	return &Node{Kind: kind}
}

// NewBinary builds a node with both children populated.
func NewBinary(kind Kind, lhs, rhs *Node) *Node {
	return &Node{Kind: kind, Lhs: lhs, Rhs: rhs}
}

// NewUnary builds a node shaped like the unary +/- lowering: "-x"
// becomes Sub(Num(0), x) and "+x" becomes Add(Num(0), x).
func NewUnary(kind Kind, rhs *Node) *Node {
	return &Node{Kind: kind, Lhs: &Node{Kind: KindNum, Num: 0}, Rhs: rhs}
}

// WithDef, WithBlock, WithFor and WithFunc attach the kind-specific
// payload to a freshly built leaf node and return it, letting callers
// build a node in one expression.

func (n *Node) WithDef(d *DefPayload) *Node {
	n.Def = d
	return n
}

func (n *Node) WithBlock(b *BlockPayload) *Node {
	n.Block = b
	return n
}

func (n *Node) WithFunc(f *FuncPayload) *Node {
	n.Func = f
	return n
}

func (n *Node) WithFor(f *ForPayload, body *Node) *Node {
	n.For = f
	n.Lhs = body
	return n
}
