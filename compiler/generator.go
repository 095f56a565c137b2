// generator.go contains the code for emitting instructions.

package compiler

import (
	"fmt"
	"strings"

	"github.com/skx/tinyc/ast"
	"github.com/skx/tinyc/config"
)

// argRegs holds the System V AMD64 integer argument registers, in order.
var argRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// Generator walks an AST and emits x86-64 assembly, one small method
// per node kind - except there is exactly one AST to walk here, not a
// flat instruction list, and unique labels come from an instance
// counter rather than the caller threading an instruction index in.
type Generator struct {
	frames *ast.FrameTable
	cfg    *config.Config

	labels int
}

// newGenerator builds a Generator over the frame table the parser
// produced.
func newGenerator(frames *ast.FrameTable, cfg *config.Config) *Generator {
	return &Generator{frames: frames, cfg: cfg}
}

// label returns a fresh, unique ".Lk" symbol.
func (g *Generator) label() string {
	g.labels++
	return fmt.Sprintf(".L%d", g.labels)
}

// Generate walks every top-level function definition and returns the
// complete assembly-language program.
func (g *Generator) Generate(defs []*ast.Node) (string, error) {
	var out strings.Builder

	out.WriteString("\n.intel_syntax noprefix\n")
	out.WriteString(fmt.Sprintf(".globl %s\n", g.cfg.Mangle("main")))

	for _, def := range defs {
		code, err := g.genDef(def)
		if err != nil {
			return "", err
		}
		out.WriteString(code)
	}
	return out.String(), nil
}

// gen dispatches on n.Kind, generating every expression and statement
// kind from one switch, walking a tree instead of a flat list.
func (g *Generator) gen(n *ast.Node) (string, error) {
	switch n.Kind {
	case ast.KindNum:
		return g.genNum(n), nil
	case ast.KindLVal:
		return g.genLVal(n), nil
	case ast.KindAddr:
		return g.genAddr(n)
	case ast.KindDeref:
		return g.genDeref(n)
	case ast.KindAssign:
		return g.genAssign(n)
	case ast.KindAdd, ast.KindSub, ast.KindMul, ast.KindDiv,
		ast.KindEq, ast.KindNotEq, ast.KindLt, ast.KindLeq:
		return g.genBinary(n)
	case ast.KindNop:
		return g.genNop(), nil
	case ast.KindDeclar:
		return g.genDeclar(n)
	case ast.KindBlock:
		return g.genBlock(n)
	case ast.KindIf:
		return g.genIf(n)
	case ast.KindWhile:
		return g.genWhile(n)
	case ast.KindFor:
		return g.genFor(n)
	case ast.KindReturn:
		return g.genReturn(n)
	case ast.KindFunc:
		return g.genFunc(n)
	default:
		return "", fmt.Errorf("codegen: unhandled node kind %d", n.Kind)
	}
}

// genNum pushes a literal.
func (g *Generator) genNum(n *ast.Node) string {
	return fmt.Sprintf(`
        # [NUM]
        push %d
`, n.Num)
}

// genLVal loads the value held in the local at n.Offset.
func (g *Generator) genLVal(n *ast.Node) string {
	return fmt.Sprintf(`
        # [LVAL rbp-%d]
        mov rax, [rbp-%d]
        push rax
`, n.Offset, n.Offset)
}

// genAddr pushes the address of a local, rather than its value.
func (g *Generator) genAddr(n *ast.Node) (string, error) {
	if n.Rhs.Kind != ast.KindLVal {
		return "", fmt.Errorf("codegen: '&' operand is not an lvalue")
	}
	return fmt.Sprintf(`
        # [ADDR rbp-%d]
        mov rax, rbp
        sub rax, %d
        push rax
`, n.Rhs.Offset, n.Rhs.Offset), nil
}

// genDeref loads the value pointed to by a local holding a pointer -
// two loads: one to fetch the pointer, one to follow it.
func (g *Generator) genDeref(n *ast.Node) (string, error) {
	if n.Rhs.Kind != ast.KindLVal {
		return "", fmt.Errorf("codegen: '*' operand is not an lvalue")
	}
	return fmt.Sprintf(`
        # [DEREF rbp-%d]
        mov rax, [rbp-%d]
        mov rax, [rax]
        push rax
`, n.Rhs.Offset, n.Rhs.Offset), nil
}

// genAssign stores rhs's value into lhs's slot, and leaves that value
// pushed so the assignment is itself usable as an expression.
func (g *Generator) genAssign(n *ast.Node) (string, error) {
	if n.Lhs.Kind != ast.KindLVal {
		return "", fmt.Errorf("codegen: assignment target is not an lvalue")
	}
	rhsCode, err := g.gen(n.Rhs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
        # [ASSIGN rbp-%d]
        mov rax, rbp
        sub rax, %d
        push rax
`, n.Lhs.Offset, n.Lhs.Offset) + rhsCode + `
        pop rax
        pop r10
        mov [r10], rax
        push rax
`, nil
}

// binaryOp maps a binary node kind to the instructions that combine
// rax (lhs) and r10 (rhs), leaving the result in rax.
func binaryOp(kind ast.Kind) (string, error) {
	switch kind {
	case ast.KindAdd:
		return "        add rax, r10\n", nil
	case ast.KindSub:
		return "        sub rax, r10\n", nil
	case ast.KindMul:
		return "        imul rax, r10\n", nil
	case ast.KindDiv:
		return "        cqo\n        idiv r10\n", nil
	case ast.KindEq:
		return "        cmp rax, r10\n        sete al\n        movzx rax, al\n", nil
	case ast.KindNotEq:
		return "        cmp rax, r10\n        setne al\n        movzx rax, al\n", nil
	case ast.KindLt:
		return "        cmp rax, r10\n        setl al\n        movzx rax, al\n", nil
	case ast.KindLeq:
		return "        cmp rax, r10\n        setle al\n        movzx rax, al\n", nil
	default:
		return "", fmt.Errorf("codegen: %d is not a binary operator", kind)
	}
}

// genBinary generates lhs then rhs (so r10 <- rhs, rax <- lhs once
// both are popped), then the operator, then pushes the result.
func (g *Generator) genBinary(n *ast.Node) (string, error) {
	lhsCode, err := g.gen(n.Lhs)
	if err != nil {
		return "", err
	}
	rhsCode, err := g.gen(n.Rhs)
	if err != nil {
		return "", err
	}
	op, err := binaryOp(n.Kind)
	if err != nil {
		return "", err
	}
	return lhsCode + rhsCode + `
        # [BINARY]
        pop r10
        pop rax
` + op + `        push rax
`, nil
}

// genNop emits a no-op that still pushes a value, so an absent
// for-loop slot behaves like any other statement: something for the
// caller to pop.
func (g *Generator) genNop() string {
	return "\n        # [NOP]\n        nop\n        push 0\n"
}

// genDeclar zero-initializes a newly declared local and pushes the
// value, so a declaration is itself a (throwaway) statement result.
func (g *Generator) genDeclar(n *ast.Node) (string, error) {
	if n.Lhs == nil || n.Lhs.Kind != ast.KindLVal {
		return "", fmt.Errorf("codegen: malformed Declar node")
	}
	return fmt.Sprintf(`
        # [DECLAR rbp-%d]
        mov rax, rbp
        sub rax, %d
        mov qword ptr [rax], 0
        push 0
`, n.Lhs.Offset, n.Lhs.Offset), nil
}

// genBlock generates each statement in turn, discarding the one value
// each leaves behind, then pushes a dummy value of its own - a block
// is itself a statement, and must honour the same one-value contract
// as every other statement kind.
func (g *Generator) genBlock(n *ast.Node) (string, error) {
	if n.Block == nil {
		return "", fmt.Errorf("codegen: malformed Block node")
	}
	var out strings.Builder
	for _, stmt := range n.Block.Stmts {
		code, err := g.gen(stmt)
		if err != nil {
			return "", err
		}
		out.WriteString(code)
		out.WriteString("        pop rax\n")
	}
	out.WriteString("        push 0\n")
	return out.String(), nil
}

// genIf lowers both the bare-if and the if/else shapes.
func (g *Generator) genIf(n *ast.Node) (string, error) {
	if n.If == nil {
		return "", fmt.Errorf("codegen: malformed If node")
	}
	condCode, err := g.gen(n.If.Cond)
	if err != nil {
		return "", err
	}
	thenCode, err := g.gen(n.Lhs)
	if err != nil {
		return "", err
	}

	if n.Rhs == nil {
		// No else-branch: the skipped path must still leave a value
		// behind, so the taken and not-taken paths agree with the
		// one-value-per-statement contract.
		elseLabel := g.label()
		end := g.label()
		text := condCode + `
        pop rax
        cmp rax, 0
        je #ELSE
` + thenCode + `
        jmp #END
#ELSE:
        push 0
#END:
`
		text = strings.Replace(text, "#ELSE", elseLabel, -1)
		text = strings.Replace(text, "#END", end, -1)
		return text, nil
	}

	elseCode, err := g.gen(n.Rhs)
	if err != nil {
		return "", err
	}
	elseLabel := g.label()
	end := g.label()
	text := condCode + `
        pop rax
        cmp rax, 0
        je #ELSE
` + thenCode + `
        jmp #END
#ELSE:
` + elseCode + `#END:
`
	text = strings.Replace(text, "#ELSE", elseLabel, -1)
	text = strings.Replace(text, "#END", end, -1)
	return text, nil
}

// genWhile lowers a condition-then-body loop.
func (g *Generator) genWhile(n *ast.Node) (string, error) {
	condCode, err := g.gen(n.Lhs)
	if err != nil {
		return "", err
	}
	bodyCode, err := g.gen(n.Rhs)
	if err != nil {
		return "", err
	}
	cond := g.label()
	end := g.label()
	text := `
#COND:
` + condCode + `
        pop rax
        cmp rax, 0
        je #END
` + bodyCode + `
        pop rax
        jmp #COND
#END:
        push 0
`
	text = strings.Replace(text, "#COND", cond, -1)
	text = strings.Replace(text, "#END", end, -1)
	return text, nil
}

// genFor lowers init;cond;inc around the loop body, generating each
// slot regardless of whether it is a real expression or a
// parser-inserted Nop.
func (g *Generator) genFor(n *ast.Node) (string, error) {
	if n.For == nil {
		return "", fmt.Errorf("codegen: malformed For node")
	}
	initCode, err := g.gen(n.For.Init)
	if err != nil {
		return "", err
	}
	endCode, err := g.gen(n.For.End)
	if err != nil {
		return "", err
	}
	incCode, err := g.gen(n.For.Inc)
	if err != nil {
		return "", err
	}
	bodyCode, err := g.gen(n.Lhs)
	if err != nil {
		return "", err
	}
	cond := g.label()
	end := g.label()

	// A missing end-slot is an unconditional continuation: still pop
	// the placeholder value genNop pushes, but never branch out on it.
	var test string
	if n.For.End.Kind == ast.KindNop {
		test = endCode + `
        pop rax
`
	} else {
		test = endCode + `
        pop rax
        cmp rax, 0
        je #END
`
	}

	text := initCode + `
        pop rax
#COND:
` + test + bodyCode + `
        pop rax
` + incCode + `
        pop rax
        jmp #COND
#END:
        push 0
`
	text = strings.Replace(text, "#COND", cond, -1)
	text = strings.Replace(text, "#END", end, -1)
	return text, nil
}

// genReturn evaluates the return value, restores the caller's frame
// and returns.
func (g *Generator) genReturn(n *ast.Node) (string, error) {
	rhsCode, err := g.gen(n.Rhs)
	if err != nil {
		return "", err
	}
	return rhsCode + `
        # [RETURN]
        pop rax
        leave
        ret
`, nil
}

// genFunc lowers a call site: each argument is generated in order
// (pushing its value), then popped - in reverse, since the stack is
// LIFO - into the matching argument register.
func (g *Generator) genFunc(n *ast.Node) (string, error) {
	if n.Func == nil {
		return "", fmt.Errorf("codegen: malformed Func node")
	}
	if len(n.Func.Argv) > len(argRegs) {
		return "", fmt.Errorf("codegen: call to %s has %d arguments, more than the %d supported",
			n.Func.Name, len(n.Func.Argv), len(argRegs))
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("\n        # [CALL %s]\n", n.Func.Name))
	for _, arg := range n.Func.Argv {
		code, err := g.gen(arg)
		if err != nil {
			return "", err
		}
		out.WriteString(code)
	}
	for i := len(n.Func.Argv) - 1; i >= 0; i-- {
		out.WriteString(fmt.Sprintf("        pop %s\n", argRegs[i]))
	}
	out.WriteString(fmt.Sprintf(`        sub rsp, 8
        call %s
        add rsp, 8
        push rax
`, g.cfg.Mangle(n.Func.Name)))
	return out.String(), nil
}

// genDef emits a function's label, prologue, body and epilogue.
func (g *Generator) genDef(n *ast.Node) (string, error) {
	if n.Def == nil {
		return "", fmt.Errorf("codegen: malformed Def node")
	}
	if n.Def.Body == nil || n.Def.Body.Kind != ast.KindBlock {
		return "", fmt.Errorf("codegen: function %s has a non-block body", n.Def.Name)
	}

	size := g.frames.Size(n.Def.LocalID) * 8

	var out strings.Builder
	out.WriteString(fmt.Sprintf(`
%s:
        push rbp
        mov rbp, rsp
        sub rsp, %d
`, g.cfg.Mangle(n.Def.Name), size))

	if g.cfg.Codegen.DebugTrap {
		out.WriteString("        int3\n")
	}

	for i := 0; i < n.Def.Args && i < len(argRegs); i++ {
		out.WriteString(fmt.Sprintf("        mov [rbp-%d], %s\n", (i+1)*8, argRegs[i]))
	}

	bodyCode, err := g.genBlock(n.Def.Body)
	if err != nil {
		return "", err
	}
	out.WriteString(bodyCode)

	out.WriteString(`
        leave
        ret
`)
	return out.String(), nil
}
