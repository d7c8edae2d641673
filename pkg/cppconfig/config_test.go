package cppconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ralph/ralphcpp/pkg/cpp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ralph-cpp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defines:
  - FOO=1
  - BAR
undefines:
  - BAZ
include_paths:
  - /opt/include
system_paths:
  - /opt/sysinclude
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FOO=1", "BAR"}, cfg.Defines)
	assert.Equal(t, []string{"BAZ"}, cfg.Undefines)
	assert.Equal(t, []string{"/opt/include"}, cfg.IncludePaths)
	assert.Equal(t, []string{"/opt/sysinclude"}, cfg.SystemPaths)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load("/nonexistent/ralph-cpp.yaml")
	require.Error(t, err)
}

func TestLoad_InvalidYAMLIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defines: [this is not valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestMerge_CLIDefinesWinOnConflict(t *testing.T) {
	cfg := &Config{Defines: []string{"FOO=1"}}
	merged := cfg.Merge(cpp.PreprocessorOptions{Defines: []string{"FOO=2"}})
	assert.Equal(t, []string{"FOO=1", "FOO=2"}, merged.Defines)
}

func TestMerge_CLISearchPathsSearchedFirst(t *testing.T) {
	cfg := &Config{IncludePaths: []string{"/config/include"}}
	merged := cfg.Merge(cpp.PreprocessorOptions{IncludePaths: []string{"/cli/include"}})
	assert.Equal(t, []string{"/cli/include", "/config/include"}, merged.IncludePaths)
}
