package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine/internal/token"
)

func scanAll(t *testing.T, src string, goals ...Goal) []token.Token {
	t.Helper()
	in := token.NewInterner()
	l := New(src, in)
	var toks []token.Token
	for {
		goal := GoalDiv
		if len(goals) > len(toks) {
			goal = goals[len(toks)]
		}
		tok, err := l.Next(goal)
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestLexPunctuators(t *testing.T) {
	toks := scanAll(t, "=> === !== >>>= ?? ?. ...")
	kinds := []token.Kind{token.Arrow, token.EqEqEq, token.NotEqEq, token.GtGtGtEq, token.QuestionQuestion, token.QuestionDot, token.Ellipsis, token.EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind, "token %d", i)
	}
}

func TestLexKeywordsAndIdents(t *testing.T) {
	in := token.NewInterner()
	l := New("let x = await foo", in)
	tok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	assert.Equal(t, token.KwLet, tok.Kind)

	tok, err = l.Next(GoalDiv)
	require.NoError(t, err)
	assert.Equal(t, token.Ident, tok.Kind)
	name, ok := in.Lookup(tok.Atom)
	require.True(t, ok)
	assert.Equal(t, "x", name)
}

func TestLexStringEscapes(t *testing.T) {
	in := token.NewInterner()
	l := New(`"a\nbc"`, in)
	tok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	require.Equal(t, token.StringLiteral, tok.Kind)
	text, ok := in.Lookup(tok.Atom)
	require.True(t, ok)
	assert.Equal(t, "a\nbc", text)
}

func TestLexNumericLiterals(t *testing.T) {
	cases := map[string]float64{
		"0":     0,
		"42":    42,
		"3.14":  3.14,
		"0x1F":  31,
		"0b101": 5,
		"0o17":  15,
		"1_000": 1000,
		"1e3":   1000,
	}
	for src, want := range cases {
		in := token.NewInterner()
		l := New(src, in)
		tok, err := l.Next(GoalDiv)
		require.NoError(t, err, src)
		require.Equal(t, token.NumericLiteral, tok.Kind, src)
		assert.Equal(t, want, tok.Number, src)
	}
}

func TestLexBigIntLiteral(t *testing.T) {
	in := token.NewInterner()
	l := New("123n", in)
	tok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	require.Equal(t, token.BigIntLiteral, tok.Kind)
	assert.Equal(t, "123", tok.BigInt)
}

func TestLexDivVsRegExpGoal(t *testing.T) {
	in := token.NewInterner()
	l := New("/abc/gi", in)
	tok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	assert.Equal(t, token.Slash, tok.Kind)

	l2 := New("/abc/gi", in)
	tok2, err := l2.Next(GoalRegExp)
	require.NoError(t, err)
	require.Equal(t, token.RegExpLiteral, tok2.Kind)
	assert.Equal(t, "abc", tok2.RegExpBody)
	assert.Equal(t, "gi", tok2.RegExpFlags)
}

func TestLexRegExpWithCharClassSlash(t *testing.T) {
	in := token.NewInterner()
	l := New("/[a/b]/", in)
	tok, err := l.Next(GoalRegExp)
	require.NoError(t, err)
	require.Equal(t, token.RegExpLiteral, tok.Kind)
	assert.Equal(t, "[a/b]", tok.RegExpBody)
}

func TestLexTemplateWithSubstitution(t *testing.T) {
	in := token.NewInterner()
	l := New("`hello ${1}`", in)
	tok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	require.Equal(t, token.TemplateHead, tok.Kind)
	require.NotNil(t, tok.Tmpl.Cooked)
	assert.Equal(t, "hello ", *tok.Tmpl.Cooked)

	numTok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	assert.Equal(t, token.NumericLiteral, numTok.Kind)

	tailTok, err := l.Next(GoalTemplateTail)
	require.NoError(t, err)
	assert.Equal(t, token.TemplateTail, tailTok.Kind)
}

func TestLexASILineTerminatorFlag(t *testing.T) {
	in := token.NewInterner()
	l := New("a\nb", in)
	tok1, err := l.Next(GoalDiv)
	require.NoError(t, err)
	assert.False(t, tok1.LineTerminatorBefore)

	tok2, err := l.Next(GoalDiv)
	require.NoError(t, err)
	assert.True(t, tok2.LineTerminatorBefore)
}

func TestLexHTMLLikeComments(t *testing.T) {
	toks := scanAll(t, "1 <!-- comment\n2")
	require.Len(t, toks, 3)
	assert.Equal(t, token.NumericLiteral, toks[0].Kind)
	assert.Equal(t, token.NumericLiteral, toks[1].Kind)
	assert.True(t, toks[1].LineTerminatorBefore)
}

func TestLexPrivateIdentifier(t *testing.T) {
	in := token.NewInterner()
	l := New("#field", in)
	tok, err := l.Next(GoalDiv)
	require.NoError(t, err)
	require.Equal(t, token.PrivateIdent, tok.Kind)
	name, ok := in.Lookup(tok.Atom)
	require.True(t, ok)
	assert.Equal(t, "field", name)
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	in := token.NewInterner()
	l := New("\"abc", in)
	_, err := l.Next(GoalDiv)
	require.Error(t, err)
}
