// Package config holds the target and toolchain settings the driver
// and code generator read from an optional TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level settings struct, loaded from TOML.
type Config struct {
	Target  Target  `toml:"target"`
	Codegen Codegen `toml:"codegen"`
}

// Target describes the assembly output shape and the external
// toolchain used to turn it into a binary.
type Target struct {
	// OS selects the function-label mangling convention: "darwin"
	// prefixes labels with an underscore, "linux" leaves them bare.
	OS string `toml:"os"`

	// Assembler is the argv[0] used to assemble and link the
	// generated assembly, defaulting to `gcc`.
	Assembler string `toml:"assembler"`

	// Static, when true, passes -static to the assembler/linker.
	Static bool `toml:"static"`
}

// Codegen holds code-generator behavior toggles.
type Codegen struct {
	// DebugTrap emits a breakpoint instruction in each function's
	// prologue, via a `-debug` int3 insertion.
	DebugTrap bool `toml:"debug_trap"`
}

// Default returns the configuration an unconfigured run uses: Darwin
// label mangling and a static gcc link.
func Default() *Config {
	return &Config{
		Target: Target{
			OS:        "darwin",
			Assembler: "gcc",
			Static:    true,
		},
	}
}

// Mangle applies this target's label convention to a function name.
func (c *Config) Mangle(name string) string {
	if c.Target.OS == "darwin" {
		return "_" + name
	}
	return name
}

// Load reads configuration from path. A missing file is not an error:
// it yields Default() unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return cfg, nil
}
