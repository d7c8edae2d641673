// Include path handling for the C preprocessor.
package cpp

import (
	"path/filepath"
	"strings"

	"os"
)

// IncludeKind distinguishes between <file> and "file" includes.
type IncludeKind int

const (
	IncludeQuoted IncludeKind = iota // "file" form
	IncludeAngled                    // <file> form
)

// IncludeResolver handles include path resolution and the include stack
// (cycle detection, #pragma once, nesting depth).
type IncludeResolver struct {
	UserPaths    []string        // -I directories, in order
	SystemPaths  []string        // CPATH entries then --isystem directories, in order
	CurrentDir   string          // directory of the file currently being processed
	includeStack []string        // stack of included files, for cycle detection
	includedOnce map[string]bool // files with #pragma once
}

// NewIncludeResolver creates a new include resolver.
func NewIncludeResolver() *IncludeResolver {
	return &IncludeResolver{
		includedOnce: make(map[string]bool),
	}
}

// AddUserPath adds a -I include directory.
func (r *IncludeResolver) AddUserPath(path string) {
	r.UserPaths = append(r.UserPaths, path)
}

// AddSystemPath adds a --isystem include directory (or a CPATH entry).
func (r *IncludeResolver) AddSystemPath(path string) {
	r.SystemPaths = append(r.SystemPaths, path)
}

// SetCurrentFile sets the current file being processed (for relative includes).
func (r *IncludeResolver) SetCurrentFile(filename string) {
	r.CurrentDir = filepath.Dir(filename)
}

// Resolve attempts to find the include file, searching quoted includes in
// the including file's directory first, then -I paths, then system paths;
// angled includes skip the including file's directory.
func (r *IncludeResolver) Resolve(filename string, kind IncludeKind, loc SourceLoc) (string, error) {
	var searchPaths []string

	if kind == IncludeQuoted && r.CurrentDir != "" {
		searchPaths = append(searchPaths, r.CurrentDir)
	}
	searchPaths = append(searchPaths, r.UserPaths...)
	searchPaths = append(searchPaths, r.SystemPaths...)

	for _, dir := range searchPaths {
		fullPath := filepath.Join(dir, filename)
		if _, err := os.Stat(fullPath); err == nil {
			absPath, err := filepath.Abs(fullPath)
			if err != nil {
				absPath = fullPath
			}
			return absPath, nil
		}
	}

	return "", newErr(IncludeNotFound, loc, "%s: no such file or directory", filename)
}

// PushFile marks a file as being included and pushes it onto the include
// stack. Returns an error if the file is already on the stack (circular
// include) or the stack exceeds MaxIncludeDepth.
func (r *IncludeResolver) PushFile(path string, loc SourceLoc) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	for _, f := range r.includeStack {
		if f == absPath {
			return newErr(IncludeNotFound, loc, "circular include detected: %s\n%s", absPath, r.formatStack())
		}
	}
	if len(r.includeStack) >= MaxIncludeDepth {
		return newErr(IncludeNotFound, loc, "include nesting exceeds maximum depth of %d", MaxIncludeDepth)
	}

	r.includeStack = append(r.includeStack, absPath)
	return nil
}

// PopFile removes the current file from the include stack.
func (r *IncludeResolver) PopFile() {
	if len(r.includeStack) > 0 {
		r.includeStack = r.includeStack[:len(r.includeStack)-1]
	}
}

// IncludeStack returns the current include stack for error messages.
func (r *IncludeResolver) IncludeStack() []string {
	return r.includeStack
}

func (r *IncludeResolver) formatStack() string {
	var sb strings.Builder
	sb.WriteString("include stack:\n")
	for i, f := range r.includeStack {
		for j := 0; j < i; j++ {
			sb.WriteString("  ")
		}
		sb.WriteString("  ")
		sb.WriteString(filepath.Base(f))
		sb.WriteString("\n")
	}
	return sb.String()
}

// MarkPragmaOnce marks the current file as having #pragma once.
func (r *IncludeResolver) MarkPragmaOnce(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	r.includedOnce[absPath] = true
}

// IsAlreadyIncluded returns true if the file has #pragma once and was
// already included.
func (r *IncludeResolver) IsAlreadyIncluded(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return r.includedOnce[absPath]
}

// IncludeDepth returns the current include nesting depth.
func (r *IncludeResolver) IncludeDepth() int {
	return len(r.includeStack)
}

// MaxIncludeDepth is the maximum allowed include nesting.
const MaxIncludeDepth = 200
