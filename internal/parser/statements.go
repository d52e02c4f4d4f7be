package parser

import (
	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/token"
)

func (p *Parser) parseStatement() (ast.Stmt, error) {
	start := p.cur.Span.Start
	switch p.cur.Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwVar, token.KwConst:
		return p.parseVarStatement()
	case token.KwLet:
		if p.letStartsDeclaration() {
			return p.parseVarStatement()
		}
		return p.parseExprStatement()
	case token.KwIf:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwDo:
		return p.parseDoWhile()
	case token.KwFunction:
		fn, err := p.parseFunction(false, false)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDecl{Base: ast.NewBase(p.spanFrom(start)), Fn: fn}, nil
	case token.KwAsync:
		if p.isAsyncFunctionAhead() {
			if err := p.next(); err != nil {
				return nil, err
			}
			fn, err := p.parseFunction(false, true)
			if err != nil {
				return nil, err
			}
			return &ast.FunctionDecl{Base: ast.NewBase(p.spanFrom(start)), Fn: fn}, nil
		}
		return p.parseExprStatement()
	case token.KwClass:
		cls, err := p.parseClass()
		if err != nil {
			return nil, err
		}
		return &ast.ClassDecl{Base: ast.NewBase(p.spanFrom(start)), Class: cls}, nil
	case token.KwReturn:
		return p.parseReturn()
	case token.KwBreak:
		return p.parseBreakContinue(true)
	case token.KwContinue:
		return p.parseBreakContinue(false)
	case token.KwThrow:
		return p.parseThrow()
	case token.KwTry:
		return p.parseTry()
	case token.KwSwitch:
		return p.parseSwitch()
	case token.KwWith:
		return p.parseWith()
	case token.KwDebugger:
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.semicolon(); err != nil {
			return nil, err
		}
		return &ast.DebuggerStmt{Base: ast.NewBase(p.spanFrom(start))}, nil
	case token.Semicolon:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.EmptyStmt{Base: ast.NewBase(p.spanFrom(start))}, nil
	case token.Ident:
		if p.peekIsColon() {
			return p.parseLabeled()
		}
		return p.parseExprStatement()
	default:
		return p.parseExprStatement()
	}
}

// letStartsDeclaration disambiguates `let` as a keyword (followed by an
// identifier, `[`, or `{`) from `let` as an identifier (sloppy mode),
// per spec.md §9's noted open question; decided here by one-token
// lookahead, the common practical resolution.
func (p *Parser) letStartsDeclaration() bool {
	saved := p.cur
	savedLex := *p.lex
	_ = p.next()
	ok := p.cur.Kind == token.Ident || p.cur.Kind == token.LBracket || p.cur.Kind == token.LBrace || p.cur.Kind == token.KwLet
	*p.lex = savedLex
	p.cur = saved
	p.peeked = nil
	return ok
}

func (p *Parser) isAsyncFunctionAhead() bool {
	saved := p.cur
	savedLex := *p.lex
	_ = p.next()
	ok := p.cur.Kind == token.KwFunction && !p.cur.LineTerminatorBefore
	*p.lex = savedLex
	p.cur = saved
	p.peeked = nil
	return ok
}

func (p *Parser) peekIsColon() bool {
	saved := p.cur
	savedLex := *p.lex
	_ = p.next()
	ok := p.cur.Kind == token.Colon
	*p.lex = savedLex
	p.cur = saved
	p.peeked = nil
	return ok
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var body []ast.Stmt
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.BlockStmt{Base: ast.NewBase(p.spanFrom(start)), Body: body}, nil
}

func (p *Parser) parseExprStatement() (ast.Stmt, error) {
	start := p.cur.Span.Start
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.semicolon(); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Base: ast.NewBase(p.spanFrom(start)), Expr: expr}, nil
}

func varKindFor(k token.Kind) ast.VarKind {
	switch k {
	case token.KwLet:
		return ast.VarLet
	case token.KwConst:
		return ast.VarConst
	default:
		return ast.VarVar
	}
}

func (p *Parser) parseVarStatement() (*ast.VarDecl, error) {
	decl, err := p.parseVarDecl()
	if err != nil {
		return nil, err
	}
	if err := p.semicolon(); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseVarDecl parses `var|let|const Binding (= Init)? (, ...)*` without
// consuming the trailing semicolon, so for-head positions can reuse it.
func (p *Parser) parseVarDecl() (*ast.VarDecl, error) {
	start := p.cur.Span.Start
	kind := varKindFor(p.cur.Kind)
	if err := p.next(); err != nil {
		return nil, err
	}
	var decls []*ast.VarDeclarator
	for {
		dstart := p.cur.Span.Start
		target, err := p.parseBindingTarget()
		if err != nil {
			return nil, err
		}
		var init ast.Expr
		if p.at(token.Eq) {
			if err := p.next(); err != nil {
				return nil, err
			}
			init, err = p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
		}
		decls = append(decls, &ast.VarDeclarator{Base: ast.NewBase(p.spanFrom(dstart)), Target: target, Init: init})
		if !p.at(token.Comma) {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return &ast.VarDecl{Base: ast.NewBase(p.spanFrom(start)), Kind: kind, Decls: decls}, nil
}

func (p *Parser) parseBindingTarget() (ast.Pattern, error) {
	switch p.cur.Kind {
	case token.LBracket:
		return p.parseArrayPattern()
	case token.LBrace:
		return p.parseObjectPattern()
	default:
		return p.parseIdentPattern()
	}
}

func (p *Parser) parseIdentPattern() (ast.Pattern, error) {
	start := p.cur.Span.Start
	if p.cur.Kind != token.Ident && !isContextualIdentKeyword(p.cur.Kind) {
		return nil, p.errf(p.cur.Span, "expected binding identifier, got %s", p.cur.Kind)
	}
	atom := p.cur.Atom
	if err := p.next(); err != nil {
		return nil, err
	}
	return &ast.IdentPattern{Base: ast.NewBase(p.spanFrom(start)), Name: atom}, nil
}

func isContextualIdentKeyword(k token.Kind) bool {
	switch k {
	case token.KwLet, token.KwStatic, token.KwAsync, token.KwAwait, token.KwOf, token.KwGet, token.KwSet, token.KwYield:
		return true
	}
	return false
}

func (p *Parser) parseArrayPattern() (ast.Pattern, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var elems []ast.Pattern
	var rest ast.Pattern
	for !p.at(token.RBracket) {
		if p.at(token.Comma) {
			elems = append(elems, nil)
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		if p.at(token.Ellipsis) {
			if err := p.next(); err != nil {
				return nil, err
			}
			r, err := p.parseBindingTarget()
			if err != nil {
				return nil, err
			}
			rest = r
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
		elems = append(elems, target)
		if p.at(token.Comma) {
			if err := p.next(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return &ast.ArrayPattern{Base: ast.NewBase(p.spanFrom(start)), Elements: elems, Rest: rest}, nil
}

func (p *Parser) parseObjectPattern() (ast.Pattern, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var props []*ast.ObjectPatternProp
	var rest ast.Pattern
	for !p.at(token.RBrace) {
		if p.at(token.Ellipsis) {
			if err := p.next(); err != nil {
				return nil, err
			}
			r, err := p.parseBindingTarget()
			if err != nil {
				return nil, err
			}
			rest = r
			break
		}
		pstart := p.cur.Span.Start
		key, computed, err := p.parsePropertyKey()
		if err != nil {
			return nil, err
		}
		var value ast.Pattern
		shorthand := false
		if p.at(token.Colon) {
			if err := p.next(); err != nil {
				return nil, err
			}
			value, err = p.parseBindingTarget()
			if err != nil {
				return nil, err
			}
		} else {
			shorthand = true
			value = &ast.IdentPattern{Base: ast.NewBase(key.Span()), Name: key.Name}
		}
		if p.at(token.Eq) {
			if err := p.next(); err != nil {
				return nil, err
			}
			def, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			value = &ast.AssignPattern{Base: ast.NewBase(p.spanFrom(pstart)), Target: value, Default: def}
		}
		props = append(props, &ast.ObjectPatternProp{Base: ast.NewBase(p.spanFrom(pstart)), Key: key, Value: value, Computed: computed, Shorthand: shorthand})
		if p.at(token.Comma) {
			if err := p.next(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.ObjectPattern{Base: ast.NewBase(p.spanFrom(start)), Props: props, Rest: rest}, nil
}

// parsePropertyKey parses `name`, `"str"`, `123`, or `[computed]`.
func (p *Parser) parsePropertyKey() (ast.PropKey, bool, error) {
	start := p.cur.Span.Start
	switch p.cur.Kind {
	case token.LBracket:
		if err := p.next(); err != nil {
			return ast.PropKey{}, false, err
		}
		expr, err := p.parseAssignExpr()
		if err != nil {
			return ast.PropKey{}, false, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return ast.PropKey{}, false, err
		}
		return ast.PropKey{Base: ast.NewBase(p.spanFrom(start)), Computed: expr}, true, nil
	case token.StringLiteral:
		atom := p.cur.Atom
		span := p.cur.Span
		if err := p.next(); err != nil {
			return ast.PropKey{}, false, err
		}
		return ast.PropKey{Base: ast.NewBase(span), Name: atom}, false, nil
	case token.NumericLiteral:
		atom := p.interner.Intern(formatNumberKey(p.cur.Number))
		span := p.cur.Span
		if err := p.next(); err != nil {
			return ast.PropKey{}, false, err
		}
		return ast.PropKey{Base: ast.NewBase(span), Name: atom}, false, nil
	default:
		atom := p.cur.Atom
		if p.cur.Kind != token.Ident && !isContextualIdentKeyword(p.cur.Kind) && !isReservedWordAllowedAsKey(p.cur.Kind) {
			return ast.PropKey{}, false, p.errf(p.cur.Span, "expected property key, got %s", p.cur.Kind)
		}
		if atom == token.NoAtom {
			atom = p.interner.Intern(p.cur.Kind.String())
		}
		span := p.cur.Span
		if err := p.next(); err != nil {
			return ast.PropKey{}, false, err
		}
		return ast.PropKey{Base: ast.NewBase(span), Name: atom}, false, nil
	}
}

func isReservedWordAllowedAsKey(k token.Kind) bool {
	// Any keyword may be used as a property name (IdentifierName position).
	return k >= token.KwBreak && k <= token.KwFalse
}

func formatNumberKey(f float64) string {
	return formatNumber(f)
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	cons, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	var alt ast.Stmt
	if p.at(token.KwElse) {
		if err := p.next(); err != nil {
			return nil, err
		}
		alt, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Base: ast.NewBase(p.spanFrom(start)), Test: test, Cons: cons, Alt: alt}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Base: ast.NewBase(p.spanFrom(start)), Test: test, Body: body}, nil
}

func (p *Parser) parseDoWhile() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwWhile); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	// The semicolon after do-while may always be inserted (spec.md §4.2).
	if p.at(token.Semicolon) {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return &ast.DoWhileStmt{Base: ast.NewBase(p.spanFrom(start)), Body: body, Test: test}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	isAwait := false
	if p.at(token.KwAwait) {
		isAwait = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	var init ast.Node
	if p.at(token.KwVar) || p.at(token.KwConst) || (p.at(token.KwLet) && p.letStartsDeclaration()) {
		decl, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		if p.at(token.KwIn) || p.at(token.KwOf) {
			return p.finishForInOf(start, decl, isAwait)
		}
		init = decl
	} else if !p.at(token.Semicolon) {
		expr, err := p.parseExpressionNoIn()
		if err != nil {
			return nil, err
		}
		if p.at(token.KwIn) || p.at(token.KwOf) {
			return p.finishForInOf(start, expr, isAwait)
		}
		init = expr
	}

	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	var test ast.Expr
	if !p.at(token.Semicolon) {
		t, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		test = t
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	var step ast.Expr
	if !p.at(token.RParen) {
		s, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		step = s
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Base: ast.NewBase(p.spanFrom(start)), Init: init, Test: test, Step: step, Body: body}, nil
}

func (p *Parser) finishForInOf(start token.Position, left ast.Node, isAwait bool) (ast.Stmt, error) {
	kind := ast.ForIn
	if p.at(token.KwOf) {
		kind = ast.ForOf
		if isAwait {
			kind = ast.ForAwaitOf
		}
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	var right ast.Expr
	var err error
	if kind == ast.ForIn {
		right, err = p.parseExpression()
	} else {
		right, err = p.parseAssignExpr()
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.ForInOfStmt{Base: ast.NewBase(p.spanFrom(start)), Kind: kind, Left: left, Right: right, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	var arg ast.Expr
	if !p.at(token.Semicolon) && !p.at(token.RBrace) && !p.at(token.EOF) && !p.cur.LineTerminatorBefore {
		a, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arg = a
	}
	if err := p.semicolon(); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Base: ast.NewBase(p.spanFrom(start)), Arg: arg}, nil
}

func (p *Parser) parseBreakContinue(isBreak bool) (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	label := ""
	if p.at(token.Ident) && !p.cur.LineTerminatorBefore {
		label, _ = p.interner.Lookup(p.cur.Atom)
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.semicolon(); err != nil {
		return nil, err
	}
	if isBreak {
		return &ast.BreakStmt{Base: ast.NewBase(p.spanFrom(start)), Label: label}, nil
	}
	return &ast.ContinueStmt{Base: ast.NewBase(p.spanFrom(start)), Label: label}, nil
}

func (p *Parser) parseThrow() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.cur.LineTerminatorBefore {
		return nil, p.errf(p.cur.Span, "illegal newline after throw")
	}
	arg, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.semicolon(); err != nil {
		return nil, err
	}
	return &ast.ThrowStmt{Base: ast.NewBase(p.spanFrom(start)), Arg: arg}, nil
}

func (p *Parser) parseTry() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var catch *ast.CatchClause
	if p.at(token.KwCatch) {
		cstart := p.cur.Span.Start
		if err := p.next(); err != nil {
			return nil, err
		}
		var param ast.Pattern
		if p.at(token.LParen) {
			if err := p.next(); err != nil {
				return nil, err
			}
			param, err = p.parseBindingTarget()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
		}
		cbody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		catch = &ast.CatchClause{Base: ast.NewBase(p.spanFrom(cstart)), Param: param, Body: cbody}
	}
	var finally *ast.BlockStmt
	if p.at(token.KwFinally) {
		if err := p.next(); err != nil {
			return nil, err
		}
		finally, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	if catch == nil && finally == nil {
		return nil, p.errf(p.cur.Span, "missing catch or finally after try")
	}
	return &ast.TryStmt{Base: ast.NewBase(p.spanFrom(start)), Block: block, Catch: catch, Finally: finally}, nil
}

func (p *Parser) parseSwitch() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	disc, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var cases []*ast.SwitchCase
	seenDefault := false
	for !p.at(token.RBrace) {
		cstart := p.cur.Span.Start
		var test *ast.Expr
		if p.at(token.KwCase) {
			if err := p.next(); err != nil {
				return nil, err
			}
			t, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			test = &t
		} else {
			if _, err := p.expect(token.KwDefault); err != nil {
				return nil, err
			}
			if seenDefault {
				return nil, p.errf(p.cur.Span, "more than one default clause in switch")
			}
			seenDefault = true
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		var body []ast.Stmt
		for !p.at(token.KwCase) && !p.at(token.KwDefault) && !p.at(token.RBrace) {
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			body = append(body, stmt)
		}
		cases = append(cases, &ast.SwitchCase{Base: ast.NewBase(p.spanFrom(cstart)), Test: test, Body: body})
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.SwitchStmt{Base: ast.NewBase(p.spanFrom(start)), Disc: disc, Cases: cases}, nil
}

func (p *Parser) parseWith() (ast.Stmt, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	obj, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.WithStmt{Base: ast.NewBase(p.spanFrom(start)), Obj: obj, Body: body}, nil
}

func (p *Parser) parseLabeled() (ast.Stmt, error) {
	start := p.cur.Span.Start
	label, _ := p.interner.Lookup(p.cur.Atom)
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.LabeledStmt{Base: ast.NewBase(p.spanFrom(start)), Label: label, Body: body}, nil
}
