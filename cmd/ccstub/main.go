// This is the main-driver for our compiler.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"

	"github.com/skx/tinyc/compiler"
	"github.com/skx/tinyc/config"
)

// Colors for driver diagnostics, one *color.Color per severity,
// applied only at this boundary - the library packages stay
// color-free and return plain error values.
var (
	redColor  = color.New(color.FgRed)
	cyanColor = color.New(color.FgCyan)
)

func main() {
	//
	// Look for flags.
	//
	debug := flag.Bool("debug", false, "Insert debug \"stuff\" in our generated output.")
	doCompile := flag.Bool("compile", false, "Compile the program, via invoking the configured assembler.")
	program := flag.String("filename", "a.out", "The program to write to.")
	run := flag.Bool("run", false, "Run the binary, post-compile.")
	configPath := flag.String("config", "", "Path to a TOML configuration file.")
	flag.Parse()

	//
	// If we're running we're also compiling.
	//
	if *run {
		*doCompile = true
	}

	//
	// Ensure we have a source program as our single argument.
	//
	if len(flag.Args()) != 1 {
		redColor.Fprintf(os.Stderr, "Usage: ccstub 'int main(){ ... }'\n")
		os.Exit(1)
	}

	//
	// Load configuration, falling back to defaults on a missing file.
	//
	cfg, err := config.Load(*configPath)
	if err != nil {
		redColor.Fprintf(os.Stderr, "Error loading config: %s\n", err.Error())
		os.Exit(1)
	}

	//
	// Create a compiler-object, with the program as input.
	//
	comp := compiler.New(flag.Args()[0])
	comp.SetConfig(cfg)
	if *debug {
		comp.SetDebug(true)
	}

	//
	// Compile.
	//
	out, err := comp.Compile()
	if err != nil {
		redColor.Fprintf(os.Stderr, "Error compiling: %s\n", err.Error())
		os.Exit(1)
	}

	//
	// If we're not compiling the assembly language text which was
	// produced then we just write the program to STDOUT, and terminate.
	//
	if !*doCompile {
		fmt.Printf("%s", out)
		return
	}

	//
	// OK we're compiling the program, via the configured assembler.
	//
	args := []string{}
	if cfg.Target.Static {
		args = append(args, "-static")
	}
	args = append(args, "-o", *program, "-x", "assembler", "-")

	asm := exec.Command(cfg.Target.Assembler, args...)
	asm.Stdout = os.Stdout
	asm.Stderr = os.Stderr

	//
	// We'll pipe our generated-program to STDIN of the assembler, via a
	// temporary buffer-object.
	//
	var b bytes.Buffer
	b.Write([]byte(out))
	asm.Stdin = &b

	//
	// Run the assembler.
	//
	cyanColor.Printf("assembling %s\n", *program)
	if err := asm.Run(); err != nil {
		redColor.Fprintf(os.Stderr, "Error running %s: %s\n", cfg.Target.Assembler, err)
		os.Exit(1)
	}

	//
	// Running the binary too?
	//
	if *run {
		cyanColor.Printf("running %s\n", *program)
		exe := exec.Command("./" + *program)
		exe.Stdout = os.Stdout
		exe.Stderr = os.Stderr
		if err := exe.Run(); err != nil {
			redColor.Fprintf(os.Stderr, "Error launching %s: %s\n", *program, err)
			os.Exit(1)
		}
	}
}
