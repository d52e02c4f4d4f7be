// Package token defines the lexical tokens produced by internal/lexer and
// the atom interner shared by the lexer, parser, and compiler.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	Illegal Kind = iota
	EOF
	LineTerminator // synthetic: a line terminator was consumed as whitespace

	Ident
	PrivateIdent // #name

	NumericLiteral
	BigIntLiteral
	StringLiteral
	TemplateHead   // `...${
	TemplateMiddle // }...${
	TemplateTail   // }...`
	NoSubTemplate  // `...` with no substitutions
	RegExpLiteral

	// Punctuators
	LBrace    // {
	RBrace    // }
	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	Dot       // .
	Ellipsis  // ...
	Semicolon // ;
	Comma     // ,
	Lt        // <
	Gt        // >
	LtEq      // <=
	GtEq      // >=
	EqEq      // ==
	NotEq     // !=
	EqEqEq    // ===
	NotEqEq   // !==
	Plus      // +
	Minus     // -
	Star      // *
	Percent   // %
	StarStar  // **
	PlusPlus  // ++
	MinusMinus
	LtLt             // <<
	GtGt             // >>
	GtGtGt           // >>>
	Amp              // &
	Pipe             // |
	Caret            // ^
	Bang             // !
	Tilde            // ~
	AmpAmp           // &&
	PipePipe         // ||
	QuestionQuestion // ??
	Question         // ?
	QuestionDot      // ?.
	Colon            // :
	Eq               // =
	PlusEq
	MinusEq
	StarEq
	PercentEq
	StarStarEq
	LtLtEq
	GtGtEq
	GtGtGtEq
	AmpEq
	PipeEq
	CaretEq
	AmpAmpEq
	PipePipeEq
	QuestionQuestionEq
	Arrow // =>
	Slash
	SlashEq
	Hashbang

	// Keywords (a representative, ECMAScript-complete set)
	KwBreak
	KwCase
	KwCatch
	KwClass
	KwConst
	KwContinue
	KwDebugger
	KwDefault
	KwDelete
	KwDo
	KwElse
	KwExport
	KwExtends
	KwFinally
	KwFor
	KwFunction
	KwIf
	KwImport
	KwIn
	KwInstanceof
	KwNew
	KwReturn
	KwSuper
	KwSwitch
	KwThis
	KwThrow
	KwTry
	KwTypeof
	KwVar
	KwVoid
	KwWhile
	KwWith
	KwYield
	KwLet
	KwStatic
	KwAsync
	KwAwait
	KwOf
	KwGet
	KwSet
	KwNull
	KwTrue
	KwFalse
	KwUndefinedLiteral // not a real keyword, never lexed; reserved for internal use
)

var names = map[Kind]string{
	Illegal: "Illegal", EOF: "EOF", LineTerminator: "LineTerminator",
	Ident: "Ident", PrivateIdent: "PrivateIdent",
	NumericLiteral: "NumericLiteral", BigIntLiteral: "BigIntLiteral",
	StringLiteral: "StringLiteral", TemplateHead: "TemplateHead",
	TemplateMiddle: "TemplateMiddle", TemplateTail: "TemplateTail",
	NoSubTemplate: "NoSubTemplate", RegExpLiteral: "RegExpLiteral",
	LBrace: "{", RBrace: "}", LParen: "(", RParen: ")", LBracket: "[", RBracket: "]",
	Dot: ".", Ellipsis: "...", Semicolon: ";", Comma: ",",
	Lt: "<", Gt: ">", LtEq: "<=", GtEq: ">=",
	EqEq: "==", NotEq: "!=", EqEqEq: "===", NotEqEq: "!==",
	Plus: "+", Minus: "-", Star: "*", Percent: "%", StarStar: "**",
	PlusPlus: "++", MinusMinus: "--",
	LtLt: "<<", GtGt: ">>", GtGtGt: ">>>",
	Amp: "&", Pipe: "|", Caret: "^", Bang: "!", Tilde: "~",
	AmpAmp: "&&", PipePipe: "||", QuestionQuestion: "??",
	Question: "?", QuestionDot: "?.", Colon: ":", Eq: "=",
	PlusEq: "+=", MinusEq: "-=", StarEq: "*=", PercentEq: "%=", StarStarEq: "**=",
	LtLtEq: "<<=", GtGtEq: ">>=", GtGtGtEq: ">>>=",
	AmpEq: "&=", PipeEq: "|=", CaretEq: "^=",
	AmpAmpEq: "&&=", PipePipeEq: "||=", QuestionQuestionEq: "??=",
	Arrow: "=>", Slash: "/", SlashEq: "/=", Hashbang: "#!",
	KwBreak: "break", KwCase: "case", KwCatch: "catch", KwClass: "class",
	KwConst: "const", KwContinue: "continue", KwDebugger: "debugger",
	KwDefault: "default", KwDelete: "delete", KwDo: "do", KwElse: "else",
	KwExport: "export", KwExtends: "extends", KwFinally: "finally", KwFor: "for",
	KwFunction: "function", KwIf: "if", KwImport: "import", KwIn: "in",
	KwInstanceof: "instanceof", KwNew: "new", KwReturn: "return", KwSuper: "super",
	KwSwitch: "switch", KwThis: "this", KwThrow: "throw", KwTry: "try",
	KwTypeof: "typeof", KwVar: "var", KwVoid: "void", KwWhile: "while",
	KwWith: "with", KwYield: "yield", KwLet: "let", KwStatic: "static",
	KwAsync: "async", KwAwait: "await", KwOf: "of", KwGet: "get", KwSet: "set",
	KwNull: "null", KwTrue: "true", KwFalse: "false",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps reserved words to their Kind. Context-sensitive words
// (let, static, async, await, of, get, set, yield) are included here too;
// the parser decides whether they act as keywords or identifiers based on
// the active grammar parameters.
var Keywords = map[string]Kind{
	"break": KwBreak, "case": KwCase, "catch": KwCatch, "class": KwClass,
	"const": KwConst, "continue": KwContinue, "debugger": KwDebugger,
	"default": KwDefault, "delete": KwDelete, "do": KwDo, "else": KwElse,
	"export": KwExport, "extends": KwExtends, "finally": KwFinally, "for": KwFor,
	"function": KwFunction, "if": KwIf, "import": KwImport, "in": KwIn,
	"instanceof": KwInstanceof, "new": KwNew, "return": KwReturn, "super": KwSuper,
	"switch": KwSwitch, "this": KwThis, "throw": KwThrow, "try": KwTry,
	"typeof": KwTypeof, "var": KwVar, "void": KwVoid, "while": KwWhile,
	"with": KwWith, "yield": KwYield, "let": KwLet, "static": KwStatic,
	"async": KwAsync, "await": KwAwait, "of": KwOf, "get": KwGet, "set": KwSet,
	"null": KwNull, "true": KwTrue, "false": KwFalse,
}

// Position is a 1-based line/column plus a 0-based byte offset.
type Position struct {
	Line, Column, Offset int
}

// Span covers [Start, End) in the source.
type Span struct {
	Start, End Position
}

// Template carries the cooked and raw forms of a template literal segment.
// Cooked is nil when an invalid escape appears in a tagged-template
// position (§4.1): the segment is kept for Raw but has no cooked value.
type Template struct {
	Cooked *string
	Raw    string
}

// Token is the unit the lexer hands to the parser.
type Token struct {
	Kind Kind
	Span Span

	// LineTerminatorBefore records whether a line terminator (or a comment
	// containing one) was skipped before this token; ASI depends on it.
	LineTerminatorBefore bool

	// Atom is the interned handle for Ident/PrivateIdent/StringLiteral text.
	Atom Atom

	// Number is valid for NumericLiteral.
	Number float64

	// BigInt is valid for BigIntLiteral: the literal's digit text as
	// written, without its radix prefix or `n` suffix (so `0x1Fn` gives
	// "1F"). The compiler does not lower BigInt literals.
	BigInt string

	// Tmpl is valid for TemplateHead/Middle/Tail/NoSubTemplate.
	Tmpl Template

	// RegExpBody/RegExpFlags are valid for RegExpLiteral.
	RegExpBody  string
	RegExpFlags string
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d:%d", t.Kind, t.Span.Start.Line, t.Span.Start.Column)
}
