// expand.go implements macro expansion including argument substitution,
// stringification, and token pasting.
package cpp

import "strings"

// MaxExpansionTokens bounds the size of a single expansion result. This is
// the token-stream analogue of the byte-buffer capacity check in a
// fixed-buffer design: Go slices grow on their own, so nothing can overflow
// in the literal sense, but a pathological macro chain (e.g. exponential
// self-referential expansion through many object-like macros with no
// hideset collision) should still fail loudly rather than exhaust memory.
const MaxExpansionTokens = 1 << 16

// Expander rewrites a token sequence by applying macro substitution,
// argument parsing, stringification, token pasting, and fixed-point re-scan.
type Expander struct {
	macros       *MacroTable
	hideset      map[string]bool // macro names on the active expansion path ("blue paint")
	loc          SourceLoc       // current expansion location, for __FILE__/__LINE__
	ifClauseMode bool            // true only during #if/#elif evaluation
}

// NewExpander creates a new macro expander bound to a macro table.
func NewExpander(macros *MacroTable) *Expander {
	return &Expander{macros: macros, hideset: make(map[string]bool)}
}

// Expand rewrites tokens to a fixed point, in normal mode or, when
// ifClauseMode is set, in #if mode (undefined identifiers become 0).
func (e *Expander) Expand(tokens []Token, ifClauseMode bool) ([]Token, error) {
	e.ifClauseMode = ifClauseMode
	return e.expandTokens(tokens)
}

// ExpandWithLoc rewrites tokens using loc for __FILE__/__LINE__ substitution.
func (e *Expander) ExpandWithLoc(tokens []Token, loc SourceLoc, ifClauseMode bool) ([]Token, error) {
	e.loc = loc
	e.ifClauseMode = ifClauseMode
	return e.expandTokens(tokens)
}

func (e *Expander) currentLoc(fallback SourceLoc) SourceLoc {
	if e.loc.File != "" {
		return e.loc
	}
	return fallback
}

// expandTokens is the fixed-point re-scan sweep: each identifier that names
// a macro is substituted and the substitution result is itself rescanned,
// using a hideset rather than a restart counter to guarantee termination
// (spec Design Notes: either policy is acceptable).
func (e *Expander) expandTokens(tokens []Token) ([]Token, error) {
	var result []Token
	i := 0

	for i < len(tokens) {
		if len(result) > MaxExpansionTokens {
			return nil, newErr(BufferOverflow, tokens[i].Loc, "expansion exceeds %d tokens", MaxExpansionTokens)
		}

		tok := tokens[i]
		if tok.Type != PP_IDENTIFIER {
			result = append(result, tok)
			i++
			continue
		}

		macro := e.macros.Lookup(tok.Text)
		if macro == nil {
			expanded, consumed, err := e.expandUnknown(tok, tokens, i)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
			i = consumed
			continue
		}

		if e.hideset[tok.Text] {
			result = append(result, tok)
			i++
			continue
		}

		if macro.Kind == MacroFunction {
			if i+1 >= len(tokens) || tokens[i+1].Type != PP_PUNCTUATOR || tokens[i+1].Text != "(" {
				// No immediately-adjacent '(': not an invocation.
				result = append(result, tok)
				i++
				continue
			}
			args, endIdx, err := e.parseArguments(tokens, i+1, macro)
			if err != nil {
				return nil, err
			}
			expanded, err := e.expandFunctionMacro(macro, args, tok.Loc)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
			i = endIdx + 1
			continue
		}

		expanded, err := e.expandObjectMacro(macro, tok.Loc)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
		i++
	}

	return result, nil
}

// expandUnknown handles an identifier that is not a macro: built-ins,
// undefined-identifier-followed-by-call-syntax skipping, and the
// if_clause_mode zero-substitution rule (spec §4.3 step 2).
func (e *Expander) expandUnknown(tok Token, tokens []Token, i int) ([]Token, int, error) {
	switch tok.Text {
	case "__FILE__":
		return GetFileToken(e.currentLoc(tok.Loc)), i + 1, nil
	case "__LINE__":
		return GetLineToken(e.currentLoc(tok.Loc)), i + 1, nil
	}

	consumed := i + 1
	if i+1 < len(tokens) && tokens[i+1].Type == PP_PUNCTUATOR && tokens[i+1].Text == "(" {
		depth := 1
		k := i + 2
		for k < len(tokens) && depth > 0 {
			if tokens[k].Type == PP_PUNCTUATOR {
				if tokens[k].Text == "(" {
					depth++
				} else if tokens[k].Text == ")" {
					depth--
				}
			}
			k++
		}
		if depth == 0 {
			consumed = k
		}
	}

	if e.ifClauseMode {
		return []Token{{Type: PP_NUMBER, Text: "0", Loc: tok.Loc}}, consumed, nil
	}
	return []Token{tok}, i + 1, nil
}

// expandObjectMacro expands an object-like macro.
func (e *Expander) expandObjectMacro(macro *Macro, loc SourceLoc) ([]Token, error) {
	e.hideset[macro.Name] = true
	defer delete(e.hideset, macro.Name)

	if e.ifClauseMode && len(macro.Replacement) == 0 {
		return []Token{{Type: PP_NUMBER, Text: "0", Loc: loc}}, nil
	}

	replacement := make([]Token, len(macro.Replacement))
	for i, tok := range macro.Replacement {
		replacement[i] = tok
		replacement[i].Loc = loc
	}

	replacement, err := e.handleTokenPasting(replacement)
	if err != nil {
		return nil, err
	}
	return e.expandTokens(replacement)
}

// expandFunctionMacro expands a function-like macro with the given arguments.
func (e *Expander) expandFunctionMacro(macro *Macro, args [][]Token, loc SourceLoc) ([]Token, error) {
	e.hideset[macro.Name] = true
	defer delete(e.hideset, macro.Name)

	paramMap := make(map[string][]Token, len(macro.Params))
	for i, param := range macro.Params {
		if i < len(args) {
			paramMap[param] = args[i]
		}
	}

	var result []Token
	replacement := macro.Replacement
	i := 0

	for i < len(replacement) {
		tok := replacement[i]

		if tok.Type == PP_PUNCTUATOR && tok.Text == "#" {
			nextIdx := i + 1
			for nextIdx < len(replacement) && replacement[nextIdx].Type == PP_WHITESPACE {
				nextIdx++
			}
			if nextIdx < len(replacement) && replacement[nextIdx].Type == PP_IDENTIFIER {
				if paramTokens, ok := paramMap[replacement[nextIdx].Text]; ok {
					stringified, err := e.stringify(paramTokens, loc)
					if err != nil {
						return nil, err
					}
					result = append(result, stringified)
					i = nextIdx + 1
					continue
				}
			}
		}

		if tok.Type == PP_IDENTIFIER {
			if paramTokens, ok := paramMap[tok.Text]; ok {
				// Raw substitution only; the outer fixed-point re-scan
				// (at the end of this function) handles further expansion
				// of the substituted text (spec §4.3 step 4).
				for _, pt := range paramTokens {
					pt.Loc = loc
					result = append(result, pt)
				}
				i++
				continue
			}
		}

		newTok := tok
		newTok.Loc = loc
		result = append(result, newTok)
		i++
	}

	result, err := e.handleTokenPasting(result)
	if err != nil {
		return nil, err
	}
	return e.expandTokens(result)
}

// parseArguments parses the arguments to a function-like macro invocation.
// tokens[parenIdx] is the opening '('. Returns the argument list and the
// index of the matching ')'.
func (e *Expander) parseArguments(tokens []Token, parenIdx int, macro *Macro) ([][]Token, int, error) {
	i := parenIdx + 1
	var args [][]Token
	var current []Token
	depth := 1

	for i < len(tokens) {
		tok := tokens[i]

		if tok.Type == PP_PUNCTUATOR {
			switch tok.Text {
			case "(":
				depth++
				current = append(current, tok)
			case ")":
				depth--
				if depth == 0 {
					args = append(args, trimWhitespace(current))
					if len(macro.Params) == 0 && len(args) == 1 && len(args[0]) == 0 {
						args = nil
					}
					if err := validateArgCount(macro, args, tokens[parenIdx].Loc); err != nil {
						return nil, 0, err
					}
					return args, i, nil
				}
				current = append(current, tok)
			case ",":
				if depth == 1 {
					args = append(args, trimWhitespace(current))
					current = nil
				} else {
					current = append(current, tok)
				}
			default:
				current = append(current, tok)
			}
		} else {
			current = append(current, tok)
		}
		i++
	}

	return nil, 0, newErr(BadArgCount, tokens[parenIdx].Loc, "unterminated macro argument list for %s", macro.Name)
}

func validateArgCount(macro *Macro, args [][]Token, loc SourceLoc) error {
	if len(args) != len(macro.Params) {
		return newErr(BadArgCount, loc, "macro %s requires %d arguments, got %d", macro.Name, len(macro.Params), len(args))
	}
	return nil
}

// stringify converts tokens to a string literal (the # operator), having
// first recursively expanded them once in normal mode (spec §4.3 step 4).
func (e *Expander) stringify(tokens []Token, loc SourceLoc) (Token, error) {
	savedMode := e.ifClauseMode
	e.ifClauseMode = false
	expanded, err := e.expandTokens(tokens)
	e.ifClauseMode = savedMode
	if err != nil {
		return Token{}, err
	}

	var sb strings.Builder
	sb.WriteByte('"')
	lastWasSpace := true // skip leading space
	for _, tok := range expanded {
		if tok.Type == PP_WHITESPACE || tok.Type == PP_NEWLINE {
			if !lastWasSpace {
				sb.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		lastWasSpace = false
		if tok.Type == PP_STRING || tok.Type == PP_CHAR_CONST {
			for _, c := range tok.Text {
				if c == '"' || c == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteRune(c)
			}
		} else {
			sb.WriteString(tok.Text)
		}
	}

	str := strings.TrimSuffix(sb.String(), " ")
	str += "\""
	return Token{Type: PP_STRING, Text: str, Loc: loc}, nil
}

// handleTokenPasting handles the ## operator, including the string-literal
// special cases: pasting a string-literal left operand with a non-string
// right operand splices the right bytes inside the left's closing quote;
// pasting two string literals concatenates their contents.
func (e *Expander) handleTokenPasting(tokens []Token) ([]Token, error) {
	var result []Token
	i := 0

	for i < len(tokens) {
		tok := tokens[i]

		if tok.Type == PP_HASHHASH {
			// ## glues the adjacent non-whitespace tokens; any whitespace
			// immediately surrounding it is not preserved.
			for len(result) > 0 && result[len(result)-1].Type == PP_WHITESPACE {
				result = result[:len(result)-1]
			}
			if len(result) == 0 {
				return nil, newErr(BadMacroSyntax, tok.Loc, "## cannot appear at start of replacement list")
			}
			nextIdx := i + 1
			for nextIdx < len(tokens) && tokens[nextIdx].Type == PP_WHITESPACE {
				nextIdx++
			}
			if nextIdx >= len(tokens) {
				return nil, newErr(BadMacroSyntax, tok.Loc, "## cannot appear at end of replacement list")
			}

			leftTok := result[len(result)-1]
			rightTok := tokens[nextIdx]
			result = result[:len(result)-1]

			if leftTok.Type == PP_PLACEHOLDER {
				result = append(result, rightTok)
				i = nextIdx + 1
				continue
			}
			if rightTok.Type == PP_PLACEHOLDER {
				result = append(result, leftTok)
				i = nextIdx + 1
				continue
			}

			pasted := pasteTokens(leftTok, rightTok)
			i = nextIdx + 1
			result = append(result, pasted...)
			continue
		}

		result = append(result, tok)
		i++
	}

	filtered := result[:0]
	for _, tok := range result {
		if tok.Type != PP_PLACEHOLDER {
			filtered = append(filtered, tok)
		}
	}
	return filtered, nil
}

// pasteTokens glues a left and right token together per the ## special cases.
func pasteTokens(left, right Token) []Token {
	switch {
	case left.Type == PP_STRING && right.Type == PP_STRING:
		leftBody := strings.TrimSuffix(strings.TrimPrefix(left.Text, `"`), `"`)
		rightBody := strings.TrimSuffix(strings.TrimPrefix(right.Text, `"`), `"`)
		return []Token{{Type: PP_STRING, Text: `"` + leftBody + rightBody + `"`, Loc: left.Loc}}
	case left.Type == PP_STRING && right.Type != PP_STRING:
		body := strings.TrimSuffix(left.Text, `"`)
		return []Token{{Type: PP_STRING, Text: body + right.Text + `"`, Loc: left.Loc}}
	default:
		pastedText := left.Text + right.Text
		pastedTokens := retokenize(pastedText, left.Loc)
		if len(pastedTokens) == 0 {
			return []Token{{Type: PP_PLACEHOLDER, Loc: left.Loc}}
		}
		return pastedTokens
	}
}

// retokenize lexes a pasted token's text back into tokens.
func retokenize(text string, loc SourceLoc) []Token {
	if text == "" {
		return nil
	}
	lex := NewLexer(text, loc.File)
	var tokens []Token
	for {
		tok := lex.NextToken()
		if tok.Type == PP_EOF || tok.Type == PP_NEWLINE {
			break
		}
		if tok.Type != PP_WHITESPACE {
			tok.Loc = loc
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// trimWhitespace removes leading and trailing whitespace tokens.
func trimWhitespace(tokens []Token) []Token {
	start := 0
	for start < len(tokens) && tokens[start].Type == PP_WHITESPACE {
		start++
	}
	end := len(tokens)
	for end > start && tokens[end-1].Type == PP_WHITESPACE {
		end--
	}
	if start >= end {
		return nil
	}
	return tokens[start:end]
}
