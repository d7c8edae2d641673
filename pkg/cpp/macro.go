package cpp

import (
	"strconv"
	"strings"
)

// MacroKind distinguishes object-like from function-like macros.
type MacroKind int

const (
	MacroObject MacroKind = iota
	MacroFunction
)

// Macro is one named rewrite rule held by a MacroTable.
type Macro struct {
	Name        string
	Kind        MacroKind
	Params      []string // only meaningful when Kind == MacroFunction
	Replacement []Token
	Loc         SourceLoc
}

// MacroTable is an insertion-ordered mapping from name to Macro, plus a set
// of banned names that can never be (re)defined.
type MacroTable struct {
	macros map[string]*Macro
	order  []string
	banned map[string]bool
}

// NewMacroTable creates an empty macro table.
func NewMacroTable() *MacroTable {
	return &MacroTable{
		macros: make(map[string]*Macro),
		banned: make(map[string]bool),
	}
}

func validateMacroName(name string, loc SourceLoc) error {
	if !IsIdentifier(name) {
		return newErr(BadMacroSyntax, loc, "invalid macro name: %s", name)
	}
	return nil
}

// DefineObject installs an object-like macro. A no-op, successful, if name is banned.
func (mt *MacroTable) DefineObject(name string, body []Token, loc SourceLoc) error {
	if err := validateMacroName(name, loc); err != nil {
		return err
	}
	if mt.banned[name] {
		return nil
	}
	mt.insert(&Macro{Name: name, Kind: MacroObject, Replacement: body, Loc: loc})
	return nil
}

// DefineFunction installs a function-like macro. Variadic parameter lists
// are not supported. A no-op, successful, if name is banned.
func (mt *MacroTable) DefineFunction(name string, params []string, body []Token, loc SourceLoc) error {
	if err := validateMacroName(name, loc); err != nil {
		return err
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if !IsIdentifier(p) {
			return newErr(BadMacroSyntax, loc, "invalid parameter name: %s", p)
		}
		if seen[p] {
			return newErr(BadMacroSyntax, loc, "duplicate parameter name: %s", p)
		}
		seen[p] = true
	}
	if mt.banned[name] {
		return nil
	}
	mt.insert(&Macro{Name: name, Kind: MacroFunction, Params: params, Replacement: body, Loc: loc})
	return nil
}

// DefineSimple tokenizes value and installs it as an object-like macro,
// the shape used by -D NAME=VALUE and by tests.
func (mt *MacroTable) DefineSimple(name, value string, loc SourceLoc) error {
	body := tokenizeLine(value, loc.File, loc.Line)
	return mt.DefineObject(name, body, loc)
}

func (mt *MacroTable) insert(m *Macro) {
	if _, exists := mt.macros[m.Name]; !exists {
		// drop a stale slot left by an earlier Undefine/Ban of the same name
		for i, n := range mt.order {
			if n == m.Name {
				mt.order = append(mt.order[:i], mt.order[i+1:]...)
				break
			}
		}
		mt.order = append(mt.order, m.Name)
	}
	mt.macros[m.Name] = m
}

// DefineFromDirective installs the macro described by a parsed #define directive.
func (mt *MacroTable) DefineFromDirective(d *Directive) error {
	if d.MacroParams != nil {
		return mt.DefineFunction(d.MacroName, d.MacroParams, d.MacroBody, d.Loc)
	}
	return mt.DefineObject(d.MacroName, d.MacroBody, d.Loc)
}

// Undefine removes name if present; idempotent otherwise.
func (mt *MacroTable) Undefine(name string) {
	delete(mt.macros, name)
}

// Ban removes any current definition of name and marks it undefinable.
func (mt *MacroTable) Ban(name string) {
	delete(mt.macros, name)
	mt.banned[name] = true
}

// Lookup returns the macro named name, or nil.
func (mt *MacroTable) Lookup(name string) *Macro {
	return mt.macros[name]
}

// IsDefined reports whether name currently has a definition.
func (mt *MacroTable) IsDefined(name string) bool {
	return mt.macros[name] != nil
}

// Names returns macro names in definition order, for diagnostics.
func (mt *MacroTable) Names() []string {
	out := make([]string, 0, len(mt.order))
	for _, n := range mt.order {
		if mt.macros[n] != nil {
			out = append(out, n)
		}
	}
	return out
}

// ApplyCmdlineDefines applies -D specs (NAME, NAME=VALUE, NAME=) and -U bans,
// using the canonical normalized form rather than the raw #define parser
// (spec Design Notes: "Use the canonical path").
func (mt *MacroTable) ApplyCmdlineDefines(defines, undefines []string) error {
	for _, spec := range defines {
		name, value := spec, "1"
		if idx := strings.IndexByte(spec, '='); idx >= 0 {
			name, value = spec[:idx], spec[idx+1:]
		}
		if err := mt.DefineSimple(name, value, SourceLoc{File: "<command-line>", Line: 1}); err != nil {
			return err
		}
	}
	for _, name := range undefines {
		mt.Ban(name)
	}
	return nil
}

// GetFileToken renders __FILE__ at loc: the source name, quoted.
func GetFileToken(loc SourceLoc) []Token {
	return []Token{{Type: PP_STRING, Text: `"` + loc.File + `"`, Loc: loc}}
}

// GetLineToken renders __LINE__ at loc: the current line, decimal.
// This implementation reports the actual invocation line rather than
// line-1 (see DESIGN.md / SPEC_FULL.md §4.1 for the authorized deviation).
func GetLineToken(loc SourceLoc) []Token {
	return []Token{{Type: PP_NUMBER, Text: strconv.Itoa(loc.Line), Loc: loc}}
}

// tokenizeLine lexes a single logical line of replacement text, discarding
// the trailing EOF/NEWLINE markers.
func tokenizeLine(text, filename string, line int) []Token {
	lx := NewLexer(text, filename)
	lx.line = line
	lx.atBOL = false // a leading '#' in replacement text is the # operator, not a directive marker
	var out []Token
	for {
		tok := lx.NextToken()
		if tok.Type == PP_EOF || tok.Type == PP_NEWLINE {
			break
		}
		out = append(out, tok)
	}
	return out
}
