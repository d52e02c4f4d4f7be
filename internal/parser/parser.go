// Package parser implements a recursive-descent parser over
// internal/lexer's token stream, producing internal/ast trees. Grammar
// variants are threaded through as Boolean parameters (Yield, Await,
// Return) the way spec.md §4.2 describes, rather than as separate
// grammar productions per mode.
package parser

import (
	"fmt"

	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/lexer"
	"github.com/oxhq/esengine/internal/token"
)

// Error is a single unrecoverable parse diagnostic: the parser does not
// attempt error recovery, matching spec.md §4.2's failure semantics.
type Error struct {
	Message string
	Span    token.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

// params bundles the three grammar parameters that gate whether yield/
// await/return are legal in the current production.
type params struct {
	Yield  bool
	Await  bool
	Return bool
}

// Parser walks a token stream one token of lookahead at a time. The
// lexer itself exposes no multi-token buffering (per spec.md §4.1);
// further lookahead copies the lexer's state, scans ahead, and restores
// the copy (see tryParseArrow).
type Parser struct {
	lex      *lexer.Lexer
	interner *token.Interner

	cur      token.Token
	peeked   *token.Token
	nextGoal lexer.Goal

	strict bool
	module bool
	p      params
	noIn   int // >0 while parsing a for-head init clause (excludes bare `in`)
}

// New creates a Parser over src. interner must also back the lexer that
// produced any tokens the caller compares atoms against.
func New(src string, interner *token.Interner, module bool) (*Parser, error) {
	l := lexer.New(src, interner)
	p := &Parser{lex: l, interner: interner, module: module, strict: module}
	p.l().Module = module
	first := lexer.GoalHashbangOrRegExp
	tok, err := p.l().Next(first)
	if err != nil {
		return nil, err
	}
	p.cur = tok
	return p, nil
}

func (p *Parser) l() *lexer.Lexer { return p.lex }

func (p *Parser) errf(span token.Span, format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...), Span: span}
}

// goalAfterCurrent decides the lexing goal for the token that follows cur, based
// on what cur is. This mirrors the common heuristic used by handwritten
// ES lexers driven by a recursive-descent parser: a `/` after a value-
// producing token is division; after anything else, it can start a
// regex literal.
func (p *Parser) goalAfterCurrent() lexer.Goal {
	switch p.cur.Kind {
	case token.Ident, token.NumericLiteral, token.StringLiteral, token.BigIntLiteral,
		token.RParen, token.RBracket, token.KwThis, token.KwSuper, token.RegExpLiteral,
		token.NoSubTemplate, token.TemplateTail, token.KwTrue, token.KwFalse, token.KwNull,
		token.PlusPlus, token.MinusMinus:
		return lexer.GoalDiv
	default:
		return lexer.GoalRegExp
	}
}

// advance consumes cur and scans the next token under the given goal.
func (p *Parser) advance(goal lexer.Goal) error {
	if p.peeked != nil {
		p.cur = *p.peeked
		p.peeked = nil
		return nil
	}
	tok, err := p.l().Next(goal)
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) next() error { return p.advance(p.goalAfterCurrent()) }

// nextAsTemplateTail resumes template scanning after consuming the `}`
// that closes a substitution (goal GoalTemplateTail, per spec.md §4.1).
func (p *Parser) nextAsTemplateTail() error { return p.advance(lexer.GoalTemplateTail) }

func (p *Parser) at(k token.Kind) bool { return p.cur.Kind == k }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, p.errf(p.cur.Span, "expected %s, got %s", k, p.cur.Kind)
	}
	tok := p.cur
	if err := p.next(); err != nil {
		return token.Token{}, err
	}
	return tok, nil
}

// semicolon implements automatic semicolon insertion per spec.md §4.2.
func (p *Parser) semicolon() error {
	if p.at(token.Semicolon) {
		return p.next()
	}
	if p.at(token.RBrace) || p.at(token.EOF) || p.cur.LineTerminatorBefore {
		return nil
	}
	return p.errf(p.cur.Span, "expected ';', got %s", p.cur.Kind)
}

func span(start token.Position, end token.Position) token.Span {
	return token.Span{Start: start, End: end}
}

func (p *Parser) spanFrom(start token.Position) token.Span {
	return span(start, p.cur.Span.Start)
}

// ParseProgram parses a full script or module body.
func ParseProgram(src string, interner *token.Interner, module bool) (*ast.Program, error) {
	p, err := New(src, interner, module)
	if err != nil {
		return nil, err
	}
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	start := p.cur.Span.Start
	if p.cur.Kind == token.Hashbang {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	prog := &ast.Program{IsModule: p.module}
	body, strict, err := p.parseStmtListDirectivePrologue(token.EOF)
	if err != nil {
		return nil, err
	}
	prog.Body = body
	prog.Strict = strict || p.module
	prog.Base = ast.NewBase(p.spanFrom(start))
	return prog, nil
}

// parseStmtListDirectivePrologue parses statements until `end`, honoring
// a leading "use strict" directive prologue.
func (p *Parser) parseStmtListDirectivePrologue(end token.Kind) ([]ast.Stmt, bool, error) {
	var body []ast.Stmt
	strict := false
	inPrologue := true
	for !p.at(end) {
		start := p.cur.Span.Start
		if inPrologue && p.at(token.StringLiteral) {
			lit, ok := p.interner.Lookup(p.cur.Atom)
			savedTok := p.cur
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, false, err
			}
			if es, ok2 := stmt.(*ast.ExprStmt); ok2 {
				if _, ok3 := es.Expr.(*ast.StringLit); ok3 {
					if ok && lit == "use strict" {
						strict = true
						p.strict = true
						p.l().Strict = true
					}
					_ = savedTok
					body = append(body, stmt)
					continue
				}
			}
			inPrologue = false
			body = append(body, stmt)
			_ = start
			continue
		}
		inPrologue = false
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, false, err
		}
		body = append(body, stmt)
	}
	return body, strict, nil
}
