// Package config reads an optional forte.toml carrying defaults for the
// flags spec.md §6 defines, so a deployment host isn't limited to CLI
// flags alone. CLI flags always win when both are set; see internal/cli.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// File mirrors the subset of spec.md §6's CLI flags that make sense as
// persistent defaults, plus the resources root, which has no flag.
type File struct {
	Address   string `toml:"address"`
	Port      int    `toml:"port"`
	OPCUAPort int    `toml:"opcua_port"`
	LogLevel  string `toml:"log_level"`
	Resources string `toml:"resources"`
}

// Load reads and parses path. A missing file is not an error: it returns a
// zero-value File so callers fall back to flag defaults.
func Load(path string) (File, error) {
	var f File
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return f, nil
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return f, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return f, nil
}
