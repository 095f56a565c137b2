// Package parser implements a recursive-descent parser with one-token
// lookahead over the token stream the lexer package produces. It
// builds the tagged ast.Node tree and the per-function ast.FrameTable
// the code generator later walks.
//
// The grammar and its semantic actions follow a C-like imperative
// language with function definitions, pointers and structured control
// flow - see DESIGN.md for the grounding notes.
package parser

import (
	"fmt"

	"github.com/skx/tinyc/ast"
	"github.com/skx/tinyc/lexer"
	"github.com/skx/tinyc/token"
)

// Parser holds our object-state: the lexer, a one-token lookahead
// buffer, and the outer table of per-function local frames.
type Parser struct {
	lexer *lexer.Lexer

	// curr holds the current lookahead token. atEnd is true once
	// the lexer has reported EOF; curr is then meaningless.
	curr  token.Token
	atEnd bool

	frames ast.FrameTable
}

// New constructs a Parser over the given source string.
func New(src string) *Parser {
	return &Parser{lexer: lexer.New(src)}
}

// Parse primes the lookahead token and parses a whole program,
// returning the function-definition roots and the frame table they
// reference by index.
func (p *Parser) Parse() ([]*ast.Node, *ast.FrameTable, error) {
	if err := p.consume(); err != nil {
		return nil, nil, err
	}
	program, err := p.parseProgram()
	if err != nil {
		return nil, nil, err
	}
	return program, &p.frames, nil
}

// consume advances the lookahead by one token.
func (p *Parser) consume() error {
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	if tok.Type == token.EOF {
		p.atEnd = true
		p.curr = token.Token{}
		return nil
	}
	p.curr = tok
	return nil
}

// is reports whether the lookahead token has the given type.
func (p *Parser) is(t token.Type) bool {
	return !p.atEnd && p.curr.Type == t
}

// accept consumes the lookahead token if it has the given type,
// reporting whether it did.
func (p *Parser) accept(t token.Type) (bool, error) {
	if !p.is(t) {
		return false, nil
	}
	return true, p.consume()
}

// expect requires the lookahead token to have the given type,
// consuming it or returning a fatal parse error.
func (p *Parser) expect(t token.Type, what string) error {
	ok, err := p.accept(t)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("expected %s", what)
	}
	return nil
}

// program := { function_def }
func (p *Parser) parseProgram() ([]*ast.Node, error) {
	var defs []*ast.Node
	for !p.atEnd {
		ok, err := p.accept(token.INT)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("expected function")
		}
		def, err := p.parseDef()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// function_def := 'int' ident '(' params ')' block
//
// The leading 'int' has already been consumed by parseProgram.
func (p *Parser) parseDef() (*ast.Node, error) {
	if p.atEnd || p.curr.Type != token.IDENT {
		return nil, fmt.Errorf("expected function name")
	}
	name := p.curr.Literal
	if err := p.consume(); err != nil {
		return nil, err
	}
	return p.parseFunc(name)
}

func (p *Parser) parseFunc(name string) (*ast.Node, error) {
	localID := p.frames.NewFrame()

	args, err := p.parseArgs(localID)
	if err != nil {
		return nil, err
	}
	if !p.is(token.LBRACE) {
		return nil, fmt.Errorf("expected function body")
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return ast.NewLeaf(ast.KindDef).WithDef(&ast.DefPayload{
		Name: name, Args: args, Body: body, LocalID: localID,
	}), nil
}

// params := ε | param { ',' param }
// param  := 'int' stars ident
func (p *Parser) parseArgs(localID int) (int, error) {
	if err := p.expect(token.LPAREN, "'('"); err != nil {
		return 0, err
	}
	if ok, err := p.accept(token.RPAREN); err != nil {
		return 0, err
	} else if ok {
		return 0, nil
	}

	args := 0
	for {
		ok, err := p.accept(token.INT)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("unexpected token in parameter list")
		}
		valType, err := p.parseStars(ast.Int)
		if err != nil {
			return 0, err
		}
		args++
		if err := p.parseArg(localID, valType); err != nil {
			return 0, err
		}
		if ok, err := p.accept(token.RPAREN); err != nil {
			return 0, err
		} else if ok {
			return args, nil
		}
		if err := p.expect(token.COMMA, "','"); err != nil {
			return 0, err
		}
	}
}

func (p *Parser) parseArg(localID int, valType ast.Type) error {
	if p.atEnd || p.curr.Type != token.IDENT {
		return fmt.Errorf("expected argument")
	}
	name := p.curr.Literal
	if err := p.consume(); err != nil {
		return err
	}
	p.frames.Push(localID, name, valType)
	return nil
}

// stars := ε | '*' stars
func (p *Parser) parseStars(base ast.Type) (ast.Type, error) {
	valType := base
	for {
		ok, err := p.accept(token.ASTERISK)
		if err != nil {
			return valType, err
		}
		if !ok {
			return valType, nil
		}
		valType = ast.Pointer(valType)
	}
}

// stmt := ';'
//       | 'int' stars ident ';'
//       | '{' { stmt } '}'
//       | 'if' '(' expr ')' stmt [ 'else' stmt ]
//       | 'while' '(' expr ')' stmt
//       | 'for' '(' [expr] ';' [expr] ';' [expr] ')' stmt
//       | 'return' expr ';'
//       | expr ';'
func (p *Parser) parseStmt() (*ast.Node, error) {
	localID := p.currentFrame()

	if ok, err := p.accept(token.INT); err != nil {
		return nil, err
	} else if ok {
		valType, err := p.parseStars(ast.Int)
		if err != nil {
			return nil, err
		}
		return p.parseDeclar(localID, valType)
	}

	if ok, err := p.accept(token.SEMI); err != nil {
		return nil, err
	} else if ok {
		return ast.NewLeaf(ast.KindNop), nil
	}

	if ok, err := p.accept(token.LBRACE); err != nil {
		return nil, err
	} else if ok {
		return p.parseBlock()
	}

	if ok, err := p.accept(token.IF); err != nil {
		return nil, err
	} else if ok {
		return p.parseIf()
	}

	if ok, err := p.accept(token.WHILE); err != nil {
		return nil, err
	} else if ok {
		return p.parseWhile()
	}

	if ok, err := p.accept(token.FOR); err != nil {
		return nil, err
	} else if ok {
		return p.parseFor()
	}

	if ok, err := p.accept(token.RETURN); err != nil {
		return nil, err
	} else if ok {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.SEMI, "';'"); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.KindReturn, Rhs: expr}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.SEMI, "';'"); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseDeclar handles the remainder of a declaration after 'int
// stars' has been consumed: an identifier and a ';'. It appends a new
// LVal to the current frame and returns a Declar node.
func (p *Parser) parseDeclar(localID int, valType ast.Type) (*ast.Node, error) {
	if p.atEnd || p.curr.Type != token.IDENT {
		return nil, fmt.Errorf("expected variable name")
	}
	name := p.curr.Literal
	if err := p.consume(); err != nil {
		return nil, err
	}
	offset := p.frames.Push(localID, name, valType)
	if err := p.expect(token.SEMI, "';'"); err != nil {
		return nil, err
	}
	return &ast.Node{
		Kind: ast.KindDeclar,
		Lhs:  &ast.Node{Kind: ast.KindLVal, Offset: offset},
	}, nil
}

func (p *Parser) parseBlock() (*ast.Node, error) {
	var stmts []*ast.Node
	for {
		if ok, err := p.accept(token.RBRACE); err != nil {
			return nil, err
		} else if ok {
			return ast.NewLeaf(ast.KindBlock).WithBlock(&ast.BlockPayload{Stmts: stmts}), nil
		}
		if p.atEnd {
			return nil, fmt.Errorf("unexpected end of input in block")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *Parser) parseIf() (*ast.Node, error) {
	if err := p.expect(token.LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	node := &ast.Node{Kind: ast.KindIf, If: &ast.IfPayload{Cond: cond}, Lhs: then}
	if ok, err := p.accept(token.ELSE); err != nil {
		return nil, err
	} else if ok {
		els, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		node.Rhs = els
	}
	return node, nil
}

func (p *Parser) parseWhile() (*ast.Node, error) {
	if err := p.expect(token.LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.KindWhile, Lhs: cond, Rhs: body}, nil
}

func (p *Parser) parseFor() (*ast.Node, error) {
	if err := p.expect(token.LPAREN, "'('"); err != nil {
		return nil, err
	}

	init, err := p.parseOptionalExpr(token.SEMI)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.SEMI, "';'"); err != nil {
		return nil, err
	}

	end, err := p.parseOptionalExpr(token.SEMI)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.SEMI, "';'"); err != nil {
		return nil, err
	}

	inc, err := p.parseOptionalExpr(token.RPAREN)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN, "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return ast.NewLeaf(ast.KindFor).WithFor(&ast.ForPayload{Init: init, End: end, Inc: inc}, body), nil
}

// parseOptionalExpr parses an expression unless the lookahead is
// already the given terminator, in which case the slot is a Nop -
// matching "a missing init/end/inc becomes Nop".
func (p *Parser) parseOptionalExpr(terminator token.Type) (*ast.Node, error) {
	if p.is(terminator) {
		return ast.NewLeaf(ast.KindNop), nil
	}
	return p.parseExpr()
}

func (p *Parser) parseExpr() (*ast.Node, error) {
	return p.parseAssign()
}

// assign := equality { '=' assign }, right-associative.
func (p *Parser) parseAssign() (*ast.Node, error) {
	node, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	if ok, err := p.accept(token.ASSIGN); err != nil {
		return nil, err
	} else if ok {
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(ast.KindAssign, node, rhs), nil
	}
	return node, nil
}

// equality := relation { ('==' | '!=') relation }
func (p *Parser) parseEquality() (*ast.Node, error) {
	node, err := p.parseRelation()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.is(token.EQEQ):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseRelation()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindEq, node, rhs)
		case p.is(token.NOTEQ):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseRelation()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindNotEq, node, rhs)
		default:
			return node, nil
		}
	}
}

// relation := add { ('<' | '<=' | '>' | '>=') add }
//
// '>' and '>=' are canonicalized to Lt/Leq with swapped operands, so
// the code generator only ever handles two shapes.
func (p *Parser) parseRelation() (*ast.Node, error) {
	node, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.is(token.LT):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindLt, node, rhs)
		case p.is(token.LEQ):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindLeq, node, rhs)
		case p.is(token.GT):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindLt, rhs, node)
		case p.is(token.GEQ):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindLeq, rhs, node)
		default:
			return node, nil
		}
	}
}

// add := mul { ('+' | '-') mul }
func (p *Parser) parseAdd() (*ast.Node, error) {
	node, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.is(token.PLUS):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindAdd, node, rhs)
		case p.is(token.MINUS):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindSub, node, rhs)
		default:
			return node, nil
		}
	}
}

// mul := unary { ('*' | '/') unary }
func (p *Parser) parseMul() (*ast.Node, error) {
	node, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.is(token.ASTERISK):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindMul, node, rhs)
		case p.is(token.SLASH):
			if err := p.consume(); err != nil {
				return nil, err
			}
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			node = ast.NewBinary(ast.KindDiv, node, rhs)
		default:
			return node, nil
		}
	}
}

// unary := '+' unary | '-' unary | '*' primary | '&' primary | primary
func (p *Parser) parseUnary() (*ast.Node, error) {
	switch {
	case p.is(token.PLUS):
		if err := p.consume(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.KindAdd, rhs), nil
	case p.is(token.MINUS):
		if err := p.consume(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.KindSub, rhs), nil
	case p.is(token.ASTERISK):
		if err := p.consume(); err != nil {
			return nil, err
		}
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if operand.Kind != ast.KindLVal {
			return nil, fmt.Errorf("expected lvalue operand for '*'")
		}
		return ast.NewUnary(ast.KindDeref, operand), nil
	case p.is(token.AMP):
		if err := p.consume(); err != nil {
			return nil, err
		}
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if operand.Kind != ast.KindLVal {
			return nil, fmt.Errorf("expected lvalue operand for '&'")
		}
		return ast.NewUnary(ast.KindAddr, operand), nil
	default:
		return p.parsePrimary()
	}
}

// primary := '(' expr ')' | NUM | IDENT | IDENT '(' [args] ')'
func (p *Parser) parsePrimary() (*ast.Node, error) {
	if p.atEnd {
		return nil, fmt.Errorf("unexpected end of input")
	}

	switch p.curr.Type {
	case token.LPAREN:
		if err := p.consume(); err != nil {
			return nil, err
		}
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return node, nil

	case token.NUMBER:
		lit := p.curr.Literal
		if err := p.consume(); err != nil {
			return nil, err
		}
		n, err := parseInt(lit)
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.KindNum, Num: n}, nil

	case token.IDENT:
		name := p.curr.Literal
		if err := p.consume(); err != nil {
			return nil, err
		}
		if ok, err := p.accept(token.LPAREN); err != nil {
			return nil, err
		} else if ok {
			return p.parseCallArgs(name)
		}

		localID := p.currentFrame()
		lval, found := p.frames.Find(localID, name)
		if !found {
			return nil, fmt.Errorf("variable not defined: %s", name)
		}
		return &ast.Node{Kind: ast.KindLVal, Offset: lval.Offset}, nil

	default:
		return nil, fmt.Errorf("unexpected token")
	}
}

func (p *Parser) parseCallArgs(name string) (*ast.Node, error) {
	var argv []*ast.Node
	if ok, err := p.accept(token.RPAREN); err != nil {
		return nil, err
	} else if ok {
		return ast.NewLeaf(ast.KindFunc).WithFunc(&ast.FuncPayload{Name: name, Argv: argv}), nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		argv = append(argv, arg)
		if ok, err := p.accept(token.RPAREN); err != nil {
			return nil, err
		} else if ok {
			return ast.NewLeaf(ast.KindFunc).WithFunc(&ast.FuncPayload{Name: name, Argv: argv}), nil
		}
		if err := p.expect(token.COMMA, "','"); err != nil {
			return nil, err
		}
	}
}

// currentFrame returns the index of the frame being populated: the
// most recently created one, the currently-active frame.
func (p *Parser) currentFrame() int {
	return p.frames.Count() - 1
}
