package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/tinyc/ast"
	"github.com/skx/tinyc/config"
)

func newTestGenerator() *Generator {
	frames := &ast.FrameTable{}
	frames.NewFrame()
	frames.Push(0, "a", ast.Int)
	return newGenerator(frames, config.Default())
}

func TestLabelsAreMonotonicAndUnique(t *testing.T) {
	g := newTestGenerator()
	first := g.label()
	second := g.label()
	third := g.label()

	assert.Equal(t, ".L1", first)
	assert.Equal(t, ".L2", second)
	assert.Equal(t, ".L3", third)
}

func TestGenNumPushesLiteral(t *testing.T) {
	g := newTestGenerator()
	out := g.genNum(&ast.Node{Kind: ast.KindNum, Num: 42})
	assert.Contains(t, out, "push 42")
}

func TestGenLValLoadsFromOffset(t *testing.T) {
	g := newTestGenerator()
	out := g.genLVal(&ast.Node{Kind: ast.KindLVal, Offset: 8})
	assert.Contains(t, out, "[rbp-8]")
}

func TestGenAddrRejectsNonLvalue(t *testing.T) {
	g := newTestGenerator()
	n := &ast.Node{Kind: ast.KindAddr, Rhs: &ast.Node{Kind: ast.KindNum, Num: 1}}
	_, err := g.genAddr(n)
	assert.Error(t, err)
}

func TestGenBinaryMapsLtToSetl(t *testing.T) {
	g := newTestGenerator()
	n := ast.NewBinary(ast.KindLt,
		&ast.Node{Kind: ast.KindNum, Num: 1},
		&ast.Node{Kind: ast.KindNum, Num: 2})

	out, err := g.genBinary(n)
	require.NoError(t, err)
	assert.Contains(t, out, "setl al")
}

func TestGenBinaryMapsLeqToSetle(t *testing.T) {
	g := newTestGenerator()
	n := ast.NewBinary(ast.KindLeq,
		&ast.Node{Kind: ast.KindNum, Num: 1},
		&ast.Node{Kind: ast.KindNum, Num: 2})

	out, err := g.genBinary(n)
	require.NoError(t, err)
	assert.Contains(t, out, "setle al")
}

func TestGenDivUsesCqoAndIdiv(t *testing.T) {
	g := newTestGenerator()
	n := ast.NewBinary(ast.KindDiv,
		&ast.Node{Kind: ast.KindNum, Num: 9},
		&ast.Node{Kind: ast.KindNum, Num: 3})

	out, err := g.genBinary(n)
	require.NoError(t, err)
	assert.Contains(t, out, "cqo")
	assert.Contains(t, out, "idiv r10")
}

func TestGenDeclarZeroesAndPushes(t *testing.T) {
	g := newTestGenerator()
	n := &ast.Node{Kind: ast.KindDeclar, Lhs: &ast.Node{Kind: ast.KindLVal, Offset: 8}}

	out, err := g.genDeclar(n)
	require.NoError(t, err)
	assert.Contains(t, out, "qword ptr [rax], 0")
	assert.Contains(t, out, "push 0")
}

func TestGenBlockPopsEachStatement(t *testing.T) {
	g := newTestGenerator()
	n := ast.NewLeaf(ast.KindBlock)
	n.Block = &ast.BlockPayload{Stmts: []*ast.Node{
		{Kind: ast.KindNum, Num: 1},
		{Kind: ast.KindNum, Num: 2},
	}}

	out, err := g.genBlock(n)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "pop rax"))
}

func TestGenForWithMissingConditionIsUnconditional(t *testing.T) {
	g := newTestGenerator()
	n := ast.NewLeaf(ast.KindFor).WithFor(&ast.ForPayload{
		Init: &ast.Node{Kind: ast.KindNop},
		End:  &ast.Node{Kind: ast.KindNop},
		Inc:  &ast.Node{Kind: ast.KindNop},
	}, &ast.Node{Kind: ast.KindNop})

	out, err := g.genFor(n)
	require.NoError(t, err)
	assert.NotContains(t, out, "cmp rax, 0")
	assert.NotContains(t, out, "je .L")
	assert.Contains(t, out, "jmp .L")
}

func TestGenFuncRejectsTooManyArguments(t *testing.T) {
	g := newTestGenerator()
	argv := make([]*ast.Node, 7)
	for i := range argv {
		argv[i] = &ast.Node{Kind: ast.KindNum, Num: int64(i)}
	}
	n := ast.NewLeaf(ast.KindFunc).WithFunc(&ast.FuncPayload{Name: "f", Argv: argv})

	_, err := g.genFunc(n)
	assert.Error(t, err)
}

func TestGenFuncOrdersArgumentsIntoRegisters(t *testing.T) {
	g := newTestGenerator()
	n := ast.NewLeaf(ast.KindFunc).WithFunc(&ast.FuncPayload{
		Name: "sum",
		Argv: []*ast.Node{
			{Kind: ast.KindNum, Num: 40},
			{Kind: ast.KindNum, Num: 2},
		},
	})

	out, err := g.genFunc(n)
	require.NoError(t, err)
	assert.Contains(t, out, "pop rsi")
	assert.Contains(t, out, "pop rdi")
	assert.Contains(t, out, "call _sum")
}
