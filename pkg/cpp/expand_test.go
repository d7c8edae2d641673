package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expandLine(t *testing.T, mt *MacroTable, src string, ifClauseMode bool) string {
	t.Helper()
	tokens := tokenizeLine(src, "test.c", 1)
	e := NewExpander(mt)
	result, err := e.ExpandWithLoc(tokens, SourceLoc{File: "test.c", Line: 1}, ifClauseMode)
	require.NoError(t, err)
	return TokensToString(result)
}

func TestExpand_ObjectMacro(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineSimple("FOO", "1 + 2", SourceLoc{}))
	assert.Equal(t, "1 + 2", expandLine(t, mt, "FOO", false))
}

func TestExpand_FunctionMacroSubstitutesArguments(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("ADD", []string{"a", "b"}, tokenizeLine("(a) + (b)", "test.c", 1), SourceLoc{}))
	assert.Equal(t, "(1) + (2)", expandLine(t, mt, "ADD(1,2)", false))
}

func TestExpand_FunctionMacroRequiresAdjacentParen(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("F", []string{"a"}, tokenizeLine("a", "test.c", 1), SourceLoc{}))
	// Whitespace before '(' means this is not recognized as an invocation.
	assert.Equal(t, "F (1)", expandLine(t, mt, "F (1)", false))
}

func TestExpand_EmptyParamListTakesNoArguments(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("NOW", nil, tokenizeLine("42", "test.c", 1), SourceLoc{}))
	assert.Equal(t, "42", expandLine(t, mt, "NOW()", false))
}

func TestExpand_Stringification(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("STR", []string{"x"}, tokenizeLine("#x", "test.c", 1), SourceLoc{}))
	assert.Equal(t, `"hello"`, expandLine(t, mt, "STR(hello)", false))
}

func TestExpand_StringificationExpandsArgumentFirst(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineSimple("VAL", "42", SourceLoc{}))
	require.NoError(t, mt.DefineFunction("STR", []string{"x"}, tokenizeLine("#x", "test.c", 1), SourceLoc{}))
	assert.Equal(t, `"42"`, expandLine(t, mt, "STR(VAL)", false))
}

func TestExpand_TokenPasting(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("CAT", []string{"a", "b"}, tokenizeLine("a ## b", "test.c", 1), SourceLoc{}))
	assert.Equal(t, "foobar", expandLine(t, mt, "CAT(foo,bar)", false))
}

func TestExpand_TokenPastingStringLiteralSpliceCase(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("WIDEN", []string{"s"}, tokenizeLine(`"prefix " ## s`, "test.c", 1), SourceLoc{}))
	assert.Equal(t, `"prefix text"`, expandLine(t, mt, `WIDEN(text)`, false))
}

func TestExpand_ParameterSubstitutionIsRawNotPreExpanded(t *testing.T) {
	// Param substitution itself shouldn't pre-expand; the outer fixed-point
	// re-scan handles it, so the end result is still fully expanded.
	mt := NewMacroTable()
	require.NoError(t, mt.DefineSimple("VAL", "99", SourceLoc{}))
	require.NoError(t, mt.DefineFunction("WRAP", []string{"x"}, tokenizeLine("x", "test.c", 1), SourceLoc{}))
	assert.Equal(t, "99", expandLine(t, mt, "WRAP(VAL)", false))
}

func TestExpand_SelfReferentialMacroDoesNotRecurseInfinitely(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineSimple("X", "X + 1", SourceLoc{}))
	assert.Equal(t, "X + 1", expandLine(t, mt, "X", false))
}

func TestExpand_BuiltinLineAndFile(t *testing.T) {
	mt := NewMacroTable()
	e := NewExpander(mt)
	tokens := tokenizeLine("__LINE__ __FILE__", "test.c", 7)
	result, err := e.ExpandWithLoc(tokens, SourceLoc{File: "test.c", Line: 7}, false)
	require.NoError(t, err)
	assert.Equal(t, `7 "test.c"`, TokensToString(result))
}

func TestExpand_IfClauseModeZeroesUndefinedIdentifiers(t *testing.T) {
	mt := NewMacroTable()
	assert.Equal(t, "0", expandLine(t, mt, "UNDEFINED_THING", true))
}

func TestExpand_IfClauseModeZeroesUndefinedFunctionLikeInvocation(t *testing.T) {
	mt := NewMacroTable()
	assert.Equal(t, "0", expandLine(t, mt, "UNDEFINED_FUNC(1, 2)", true))
}

func TestExpand_ArgCountMismatchIsError(t *testing.T) {
	mt := NewMacroTable()
	require.NoError(t, mt.DefineFunction("F", []string{"a", "b"}, tokenizeLine("a+b", "test.c", 1), SourceLoc{}))
	e := NewExpander(mt)
	tokens := tokenizeLine("F(1)", "test.c", 1)
	_, err := e.Expand(tokens, false)
	require.Error(t, err)
	var ppErr *PPError
	require.ErrorAs(t, err, &ppErr)
	assert.Equal(t, BadArgCount, ppErr.Kind)
}
