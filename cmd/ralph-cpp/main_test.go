package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	includePaths = nil
	systemPaths = nil
	defineFlags = nil
	undefineFlags = nil
	preprocessOnly = true
	outputPath = ""
	configPath = ""
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, version)
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, name := range []string{"include", "isystem", "define", "undefine", "preprocess", "output", "config"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected flag --%s to exist", name)
	}
	assert.NotNil(t, cmd.Flags().ShorthandLookup("I"))
	assert.NotNil(t, cmd.Flags().ShorthandLookup("D"))
	assert.NotNil(t, cmd.Flags().ShorthandLookup("U"))
	assert.NotNil(t, cmd.Flags().ShorthandLookup("E"))
	assert.NotNil(t, cmd.Flags().ShorthandLookup("o"))
}

func TestPreprocessFileToStdout(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.c")
	require.NoError(t, os.WriteFile(src, []byte("#define A 1\nint x = A;\n"), 0o644))

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{src})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "int x = 1;")
}

func TestPreprocessStdin(t *testing.T) {
	resetFlags()
	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("#define B 2\nint y = B;\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	os.Stdin = r

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "int y = 2;")
}

func TestPreprocessWritesOutputFile(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.c")
	dst := filepath.Join(dir, "out.c")
	require.NoError(t, os.WriteFile(src, []byte("#define C 3\nint z = C;\n"), 0o644))

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-o", dst, src})
	require.NoError(t, cmd.Execute())

	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(written), "int z = 3;")
	assert.Empty(t, out.String())
}

func TestPreprocessErrorReportedOnErrOut(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-"})

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("#error bad input\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	os.Stdin = r

	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "bad input")
}

func TestCommandLineDefine(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("#ifdef FOO\nhas_foo\n#endif\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	os.Stdin = r

	cmd.SetArgs([]string{"-D", "FOO=1", "-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "has_foo")
}
