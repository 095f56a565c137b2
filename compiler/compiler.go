// The compiler-package contains the core of our compiler.
//
// In brief we go through a three-step process:
//
//  1.  Parse the source into an AST and a table of per-function
//      local frames.
//
//  2.  Walk that AST, generating a snippet of assembly for each node.
//
//  3.  Join the snippets into a single textual assembly program.
//
// There is one minor complication: the target machine's function-label
// convention (a leading underscore or not) is a configuration choice,
// not a constant - see the config package.
package compiler

import (
	"github.com/skx/tinyc/config"
	"github.com/skx/tinyc/parser"
)

// Compiler holds our object-state.
type Compiler struct {
	// source holds the program text we're compiling.
	source string

	// debug holds a flag to decide if debugging "stuff" is generated
	// in the output assembly.
	debug bool

	// cfg holds the target/toolchain configuration; a nil cfg means
	// Compile will use config.Default().
	cfg *config.Config
}

// Our public API consists of:
//
//	New
//	SetDebug
//	SetConfig
//	Compile
//
// The rest of the code is an implementation detail.

// New creates a new compiler, given the program source in the constructor.
func New(input string) *Compiler {
	return &Compiler{source: input}
}

// SetDebug changes the debug-flag for our output.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
}

// SetConfig overrides the target/toolchain configuration used by
// Compile. Passing nil reverts to config.Default().
func (c *Compiler) SetConfig(cfg *config.Config) {
	c.cfg = cfg
}

// Compile converts the input program into x86-64 assembly.
func (c *Compiler) Compile() (string, error) {
	var cfg config.Config
	if c.cfg != nil {
		cfg = *c.cfg
	} else {
		cfg = *config.Default()
	}
	if c.debug {
		cfg.Codegen.DebugTrap = true
	}

	//
	// Parse the program into an AST and its frame table. At this
	// point there might be errors. If so report them, and terminate.
	//
	p := parser.New(c.source)
	defs, frames, err := p.Parse()
	if err != nil {
		return "", err
	}

	//
	// Now generate the output assembly.
	//
	gen := newGenerator(frames, &cfg)
	return gen.Generate(defs)
}
