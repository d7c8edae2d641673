// Package cppconfig loads an optional project-level configuration file
// supplying default preprocessor options (macro definitions, undefines,
// and search paths) that command-line flags then override.
package cppconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ralph/ralphcpp/pkg/cpp"
)

// Config is the on-disk shape of a ralph-cpp project config file.
type Config struct {
	Defines      []string `yaml:"defines"`
	Undefines    []string `yaml:"undefines"`
	IncludePaths []string `yaml:"include_paths"`
	SystemPaths  []string `yaml:"system_paths"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge layers cli on top of the config's defaults. CLI -D/-U entries are
// appended after the config's, so a later -D on the command line wins a
// conflict (MacroTable.ApplyCmdlineDefines applies entries in order, later
// ones taking precedence). CLI -I/--isystem entries are placed before the
// config's, since IncludeResolver.Resolve searches earlier directories
// first — config paths are a lower-priority fallback search tier.
func (c *Config) Merge(cliOpts cpp.PreprocessorOptions) cpp.PreprocessorOptions {
	merged := cpp.PreprocessorOptions{
		Defines:      append(append([]string{}, c.Defines...), cliOpts.Defines...),
		Undefines:    append(append([]string{}, c.Undefines...), cliOpts.Undefines...),
		IncludePaths: append(append([]string{}, cliOpts.IncludePaths...), c.IncludePaths...),
		SystemPaths:  append(append([]string{}, cliOpts.SystemPaths...), c.SystemPaths...),
	}
	return merged
}
