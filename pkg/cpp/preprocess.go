// preprocess.go implements the main preprocessor driver: logical-line
// assembly, directive dispatch, macro expansion, and #include recursion.
package cpp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Preprocessor is the main driver for C preprocessing.
type Preprocessor struct {
	macros        *MacroTable
	conditional   *ConditionalProcessor
	expander      *Expander
	resolver      *IncludeResolver
	opts          PreprocessorOptions
	includeGuards map[string]string // file path -> guard macro name
}

// PreprocessorOptions configures the preprocessor.
type PreprocessorOptions struct {
	Defines      []string // -D definitions
	Undefines    []string // -U undefinitions
	IncludePaths []string // -I directories
	SystemPaths  []string // CPATH entries followed by --isystem directories
}

// NewPreprocessor creates a new preprocessor instance.
func NewPreprocessor(opts PreprocessorOptions) (*Preprocessor, error) {
	macros := NewMacroTable()
	if err := macros.ApplyCmdlineDefines(opts.Defines, opts.Undefines); err != nil {
		return nil, err
	}

	resolver := NewIncludeResolver()
	for _, p := range opts.IncludePaths {
		resolver.AddUserPath(p)
	}
	for _, p := range opts.SystemPaths {
		resolver.AddSystemPath(p)
	}

	return &Preprocessor{
		macros:        macros,
		conditional:   NewConditionalProcessor(macros),
		expander:      NewExpander(macros),
		resolver:      resolver,
		opts:          opts,
		includeGuards: make(map[string]string),
	}, nil
}

// PreprocessFile preprocesses a file and returns the result.
func (p *Preprocessor) PreprocessFile(filename string) (string, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		absPath = filename
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", newErr(IoError, SourceLoc{File: filename}, "reading %s: %v", filename, err)
	}

	p.resolver.SetCurrentFile(absPath)
	if err := p.resolver.PushFile(absPath, SourceLoc{File: filename, Line: 1}); err != nil {
		return "", err
	}
	defer p.resolver.PopFile()

	return p.preprocessContent(string(content), absPath)
}

// PreprocessString preprocesses a string with a given filename for error messages.
func (p *Preprocessor) PreprocessString(source, filename string) (string, error) {
	return p.preprocessContent(source, filename)
}

// preprocessContent is the main preprocessing loop: the lexer's output is
// grouped into logical lines (terminated by PP_NEWLINE), each of which is
// either a directive or a run of tokens to expand and emit.
func (p *Preprocessor) preprocessContent(source, filename string) (string, error) {
	lex := NewLexer(source, filename)
	var output strings.Builder
	var lineTokens []Token

	for {
		tok := lex.NextToken()

		if tok.Type == PP_EOF {
			if len(lineTokens) > 0 {
				result, err := p.processLine(lineTokens, filename)
				if err != nil {
					return "", err
				}
				output.WriteString(result)
			}
			break
		}

		if tok.Type == PP_NEWLINE {
			lineTokens = append(lineTokens, tok)
			result, err := p.processLine(lineTokens, filename)
			if err != nil {
				return "", err
			}
			output.WriteString(result)
			lineTokens = nil
			continue
		}

		lineTokens = append(lineTokens, tok)
	}

	if err := p.conditional.CheckBalanced(SourceLoc{File: filename}); err != nil {
		return "", err
	}

	return output.String(), nil
}

// processLine processes a single logical line of tokens.
func (p *Preprocessor) processLine(tokens []Token, filename string) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}

	firstNonWS := 0
	for firstNonWS < len(tokens) && tokens[firstNonWS].Type == PP_WHITESPACE {
		firstNonWS++
	}

	if firstNonWS < len(tokens) && tokens[firstNonWS].Type == PP_HASH {
		return p.processDirective(tokens[firstNonWS:], filename)
	}

	if !p.conditional.IsActive() {
		return "", nil
	}

	loc := SourceLoc{File: filename, Line: tokens[0].Loc.Line}
	expanded, err := p.expander.ExpandWithLoc(tokens, loc, false)
	if err != nil {
		return "", err
	}

	return TokensToString(expanded), nil
}

// processDirective handles a preprocessing directive. The # token is at
// tokens[0].
func (p *Preprocessor) processDirective(tokens []Token, filename string) (string, error) {
	loc := tokens[0].Loc
	var directiveTokens []Token
	if len(tokens) > 1 {
		directiveTokens = tokens[1:]
	}

	dir, err := ParseDirectiveFromTokens(directiveTokens, loc)
	if err != nil {
		if !p.conditional.IsActive() {
			return "", nil
		}
		return "", err
	}

	// Conditional directives must be processed even inside inactive blocks,
	// since they govern whether the block stays inactive.
	switch dir.Type {
	case DIR_IF:
		return "", p.conditional.ProcessIf(dir.Expression)
	case DIR_IFDEF:
		return "", p.conditional.ProcessIfdef(dir.Identifier)
	case DIR_IFNDEF:
		return "", p.conditional.ProcessIfndef(dir.Identifier)
	case DIR_ELIF:
		return "", p.conditional.ProcessElif(dir.Expression, loc)
	case DIR_ELSE:
		return "", p.conditional.ProcessElse(loc)
	case DIR_ENDIF:
		return "", p.conditional.ProcessEndif(loc)
	}

	if !p.conditional.IsActive() {
		return "", nil
	}

	switch dir.Type {
	case DIR_INCLUDE:
		return p.processInclude(dir, filename)
	case DIR_DEFINE:
		return "", p.macros.DefineFromDirective(dir)
	case DIR_UNDEF:
		p.macros.Undefine(dir.Identifier)
		return "", nil
	case DIR_LINE:
		return "", nil // accepted and applied to no externally visible state; no output line tracking
	case DIR_ERROR:
		return "", newErr(BadMacroSyntax, loc, "#error %s", dir.Message)
	case DIR_PRAGMA:
		return p.processPragma(dir, filename)
	case DIR_EMPTY, DIR_UNKNOWN:
		return "", nil
	default:
		return "", newErr(BadMacroSyntax, loc, "unhandled directive type: %v", dir.Type)
	}
}

// processInclude handles #include directives.
func (p *Preprocessor) processInclude(dir *Directive, currentFile string) (string, error) {
	headerName := dir.HeaderName

	if headerName == "" && len(dir.Expression) > 0 {
		expanded, err := p.expander.Expand(dir.Expression, false)
		if err != nil {
			return "", err
		}
		headerName = strings.TrimSpace(TokensToString(expanded))
	}

	if headerName == "" {
		return "", newErr(BadMacroSyntax, dir.Loc, "empty #include file name")
	}

	var fileName string
	var kind IncludeKind

	switch {
	case strings.HasPrefix(headerName, "<") && strings.HasSuffix(headerName, ">"):
		fileName = headerName[1 : len(headerName)-1]
		kind = IncludeAngled
	case strings.HasPrefix(headerName, `"`) && strings.HasSuffix(headerName, `"`):
		fileName = headerName[1 : len(headerName)-1]
		kind = IncludeQuoted
	default:
		return "", newErr(BadMacroSyntax, dir.Loc, "#include expects <...> or \"...\", got %s", headerName)
	}

	p.resolver.SetCurrentFile(currentFile)
	includePath, err := p.resolver.Resolve(fileName, kind, dir.Loc)
	if err != nil {
		return "", err
	}

	if p.resolver.IsAlreadyIncluded(includePath) {
		return "", nil
	}
	if guardMacro, ok := p.includeGuards[includePath]; ok && p.macros.IsDefined(guardMacro) {
		return "", nil
	}

	if err := p.resolver.PushFile(includePath, dir.Loc); err != nil {
		return "", err
	}
	defer p.resolver.PopFile()

	content, err := os.ReadFile(includePath)
	if err != nil {
		return "", newErr(IoError, dir.Loc, "reading %s: %v", includePath, err)
	}

	if guardMacro := detectIncludeGuard(string(content), includePath); guardMacro != "" {
		p.includeGuards[includePath] = guardMacro
	}

	oldCurrentDir := p.resolver.CurrentDir
	p.resolver.SetCurrentFile(includePath)
	result, err := p.preprocessContent(string(content), includePath)
	p.resolver.CurrentDir = oldCurrentDir
	if err != nil {
		return "", err
	}

	return result, nil
}

// detectIncludeGuard checks for the `#ifndef GUARD` / `#define GUARD`
// idiom at the start of a file, used to skip re-preprocessing a file whose
// guard macro is already defined (a well-known optimization, not required
// for correctness: PushFile's cycle check alone prevents infinite recursion).
func detectIncludeGuard(content, filename string) string {
	lex := NewLexer(content, filename)

	var tokens []Token
	for {
		tok := lex.NextToken()
		if tok.Type == PP_EOF {
			break
		}
		if tok.Type != PP_WHITESPACE && tok.Type != PP_NEWLINE {
			tokens = append(tokens, tok)
		}
		if len(tokens) > 10 {
			break
		}
	}

	if len(tokens) < 6 {
		return ""
	}

	isHash := func(t Token) bool { return t.Type == PP_HASH }
	if isHash(tokens[0]) && tokens[1].Type == PP_IDENTIFIER && tokens[1].Text == "ifndef" &&
		tokens[2].Type == PP_IDENTIFIER &&
		isHash(tokens[3]) && tokens[4].Type == PP_IDENTIFIER && tokens[4].Text == "define" &&
		tokens[5].Type == PP_IDENTIFIER && tokens[5].Text == tokens[2].Text {
		return tokens[2].Text
	}

	return ""
}

// processPragma handles #pragma directives: only `#pragma once` has
// defined behavior; all others are diagnosed and discarded, since there is
// no downstream compiler stage left to forward them to.
func (p *Preprocessor) processPragma(dir *Directive, filename string) (string, error) {
	if len(dir.PragmaTokens) == 0 {
		return "", nil
	}

	if dir.PragmaTokens[0].Type == PP_IDENTIFIER && dir.PragmaTokens[0].Text == "once" {
		p.resolver.MarkPragmaOnce(filename)
		return "", nil
	}

	fmt.Fprintf(os.Stderr, "%s:%d: note: ignoring unrecognized #pragma %s\n",
		dir.Loc.File, dir.Loc.Line, TokensToString(dir.PragmaTokens))
	return "", nil
}

// GetMacros returns the macro table for inspection.
func (p *Preprocessor) GetMacros() *MacroTable {
	return p.macros
}
