package parser

import (
	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/token"
)

// parseFunction parses `function [*] name? (...) { ... }` starting at
// the `function` keyword (isMethod callers use parseFunctionTail instead).
func (p *Parser) parseFunction(isMethod, isAsync bool) (*ast.FunctionLit, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.KwFunction); err != nil {
		return nil, err
	}
	isGen := false
	if p.at(token.Star) {
		isGen = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	name := token.NoAtom
	if p.at(token.Ident) {
		name = p.cur.Atom
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	fn, err := p.parseFunctionTail(isGen, isAsync)
	if err != nil {
		return nil, err
	}
	fn.Name = name
	fn.Base = ast.NewBase(p.spanFrom(start))
	return fn, nil
}

// parseFunctionTail parses `(params) { body }`, used for both function
// declarations/expressions and object/class methods.
func (p *Parser) parseFunctionTail(isGen, isAsync bool) (*ast.FunctionLit, error) {
	start := p.cur.Span.Start
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	savedParams := p.p
	p.p = params_t{Yield: isGen, Await: isAsync, Return: true}
	body, err := p.parseBlock()
	p.p = savedParams
	if err != nil {
		return nil, err
	}
	return &ast.FunctionLit{Base: ast.NewBase(p.spanFrom(start)), Params: params, Body: body, IsGen: isGen, IsAsync: isAsync, Strict: p.strict || hasUseStrictPrologue(p, body)}, nil
}

// hasUseStrictPrologue reports whether body opens with a "use strict"
// directive. Strictness also flows inward from an enclosing strict
// script or module (the p.strict half at the call site above); it
// never flows back out.
func hasUseStrictPrologue(p *Parser, body *ast.BlockStmt) bool {
	if body == nil || len(body.Body) == 0 {
		return false
	}
	es, ok := body.Body[0].(*ast.ExprStmt)
	if !ok {
		return false
	}
	lit, ok := es.Expr.(*ast.StringLit)
	if !ok {
		return false
	}
	text, ok := p.interner.Lookup(lit.Value)
	return ok && text == "use strict"
}

func (p *Parser) parseParamList() ([]ast.Pattern, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var params []ast.Pattern
	for !p.at(token.RParen) {
		if p.at(token.Ellipsis) {
			start := p.cur.Span.Start
			if err := p.next(); err != nil {
				return nil, err
			}
			target, err := p.parseBindingTarget()
			if err != nil {
				return nil, err
			}
			params = append(params, &ast.AssignPattern{Base: ast.NewBase(p.spanFrom(start)), Target: target})
			break
		}
		target, err := p.parseBindingTarget()
		if err != nil {
			return nil, err
		}
		if p.at(token.Eq) {
			dstart := target.Span().Start
			if err := p.next(); err != nil {
				return nil, err
			}
			def, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			target = &ast.AssignPattern{Base: ast.NewBase(p.spanFrom(dstart)), Target: target, Default: def}
		}
		params = append(params, target)
		if p.at(token.Comma) {
			if err := p.next(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return params, nil
}

// parseClass parses `class name? (extends Expr)? { members }`.
func (p *Parser) parseClass() (*ast.ClassLit, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.KwClass); err != nil {
		return nil, err
	}
	name := token.NoAtom
	if p.at(token.Ident) {
		name = p.cur.Atom
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	var super ast.Expr
	if p.at(token.KwExtends) {
		if err := p.next(); err != nil {
			return nil, err
		}
		s, err := p.parseLeftHandSide()
		if err != nil {
			return nil, err
		}
		super = s
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var members []*ast.ClassMember
	for !p.at(token.RBrace) {
		if p.at(token.Semicolon) {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		m, err := p.parseClassMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.ClassLit{Base: ast.NewBase(p.spanFrom(start)), Name: name, SuperClass: super, Members: members}, nil
}

func (p *Parser) parseClassMember() (*ast.ClassMember, error) {
	start := p.cur.Span.Start
	static := false
	if p.at(token.KwStatic) && !p.nextIsPropertyTerminator() {
		static = true
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.at(token.LBrace) {
			// static initialization block: modeled as a field with a
			// synthetic Computed-false key and an IIFE-less marker body.
			block, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			fn := &ast.FunctionLit{Base: block.Base, Body: block, Strict: true}
			return &ast.ClassMember{Base: ast.NewBase(p.spanFrom(start)), Static: true, Kind: ast.PropMethod, Value: fn, Key: ast.PropKey{Base: ast.NewBase(p.spanFrom(start)), Name: p.interner.Intern("")}}, nil
		}
	}

	kind := ast.PropMethod
	isAsync, isGen := false, false
	if (p.at(token.KwGet) || p.at(token.KwSet)) && !p.nextIsPropertyTerminator() {
		if p.cur.Kind == token.KwGet {
			kind = ast.PropGet
		} else {
			kind = ast.PropSet
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		if p.at(token.KwAsync) && !p.nextIsPropertyTerminator() {
			isAsync = true
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.at(token.Star) {
			isGen = true
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}

	var private token.Atom = token.NoAtom
	var key ast.PropKey
	if p.at(token.PrivateIdent) {
		private = p.cur.Atom
		key = ast.PropKey{Base: ast.NewBase(p.cur.Span), Name: p.cur.Atom}
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		k, _, err := p.parsePropertyKey()
		if err != nil {
			return nil, err
		}
		key = k
	}

	if p.at(token.LParen) {
		fn, err := p.parseFunctionTail(isGen, isAsync)
		if err != nil {
			return nil, err
		}
		fn.Strict = true // class bodies are always strict code
		return &ast.ClassMember{Base: ast.NewBase(p.spanFrom(start)), Key: key, Private: private, Kind: kind, Static: static, Value: fn}, nil
	}

	// field
	var init ast.Expr
	if p.at(token.Eq) {
		if err := p.next(); err != nil {
			return nil, err
		}
		i, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		init = i
	}
	if err := p.semicolon(); err != nil {
		return nil, err
	}
	return &ast.ClassMember{Base: ast.NewBase(p.spanFrom(start)), Key: key, Private: private, Static: static, IsField: true, FieldInit: init}, nil
}
