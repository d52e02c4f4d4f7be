package parser

import (
	"strconv"
	"strings"

	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/token"
)

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// parseExpression parses a (possibly comma-joined) SequenceExpr.
func (p *Parser) parseExpression() (ast.Expr, error) {
	start := p.cur.Span.Start
	first, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(token.Comma) {
		return first, nil
	}
	exprs := []ast.Expr{first}
	for p.at(token.Comma) {
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return &ast.SequenceExpr{Base: ast.NewBase(p.spanFrom(start)), Exprs: exprs}, nil
}

func (p *Parser) parseExpressionNoIn() (ast.Expr, error) {
	p.noIn++
	defer func() { p.noIn-- }()
	return p.parseExpression()
}

var assignOps = map[token.Kind]bool{
	token.Eq: true, token.PlusEq: true, token.MinusEq: true, token.StarEq: true,
	token.SlashEq: true, token.PercentEq: true, token.StarStarEq: true,
	token.LtLtEq: true, token.GtGtEq: true, token.GtGtGtEq: true,
	token.AmpEq: true, token.PipeEq: true, token.CaretEq: true,
	token.AmpAmpEq: true, token.PipePipeEq: true, token.QuestionQuestionEq: true,
}

// parseAssignExpr handles arrow-function detection (cover grammar) and
// right-associative assignment, per spec.md §4.2.
func (p *Parser) parseAssignExpr() (ast.Expr, error) {
	start := p.cur.Span.Start

	if p.at(token.KwYield) && p.p.Yield {
		return p.parseYield()
	}

	if arrow, ok, err := p.tryParseArrow(); err != nil {
		return nil, err
	} else if ok {
		return arrow, nil
	}

	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if assignOps[p.cur.Kind] {
		op := p.cur.Kind
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{Base: ast.NewBase(p.spanFrom(start)), Op: op, Target: left, Value: right}, nil
	}
	return left, nil
}

func (p *Parser) parseYield() (ast.Expr, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	delegate := false
	if p.at(token.Star) {
		delegate = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	var arg ast.Expr
	if !p.cur.LineTerminatorBefore && !p.at(token.Semicolon) && !p.at(token.RParen) &&
		!p.at(token.RBrace) && !p.at(token.RBracket) && !p.at(token.Comma) && !p.at(token.Colon) && !p.at(token.EOF) {
		a, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		arg = a
	}
	return &ast.YieldExpr{Base: ast.NewBase(p.spanFrom(start)), Arg: arg, Delegate: delegate}, nil
}

// tryParseArrow implements the cover-grammar resolution for arrow
// functions: `Ident =>`, `async Ident =>`, `( ... ) =>`, `async ( ... ) =>`.
// It fully backtracks (restoring lexer + cursor) when no arrow follows.
func (p *Parser) tryParseArrow() (ast.Expr, bool, error) {
	start := p.cur.Span.Start

	isAsync := false
	savedCur := p.cur
	savedLex := *p.lex
	if p.at(token.KwAsync) && !p.peekHasLineTerminatorAndIsArrowIntro() {
		isAsync = true
		if err := p.next(); err != nil {
			return nil, false, err
		}
	}

	if p.at(token.Ident) || isContextualIdentKeyword(p.cur.Kind) {
		identAtom := p.cur.Atom
		savedCur2 := p.cur
		savedLex2 := *p.lex
		if err := p.next(); err != nil {
			return nil, false, err
		}
		if p.at(token.Arrow) && !p.cur.LineTerminatorBefore {
			if err := p.next(); err != nil {
				return nil, false, err
			}
			fn, err := p.finishArrowBody([]ast.Pattern{&ast.IdentPattern{Base: ast.NewBase(savedCur2.Span), Name: identAtom}}, start, isAsync)
			return fn, true, err
		}
		*p.lex = savedLex2
		p.cur = savedCur2
		p.peeked = nil
		if isAsync {
			*p.lex = savedLex
			p.cur = savedCur
			p.peeked = nil
		}
		return nil, false, nil
	}

	if p.at(token.LParen) {
		params, ok, err := p.tryParseArrowParenParams()
		if err != nil {
			return nil, false, err
		}
		if ok && p.at(token.Arrow) && !p.cur.LineTerminatorBefore {
			if err := p.next(); err != nil {
				return nil, false, err
			}
			fn, err := p.finishArrowBody(params, start, isAsync)
			return fn, true, err
		}
		*p.lex = savedLex
		p.cur = savedCur
		p.peeked = nil
		return nil, false, nil
	}

	if isAsync {
		*p.lex = savedLex
		p.cur = savedCur
		p.peeked = nil
	}
	return nil, false, nil
}

func (p *Parser) peekHasLineTerminatorAndIsArrowIntro() bool {
	return false
}

// tryParseArrowParenParams speculatively parses `( BindingTarget,* )` as
// an arrow parameter list. Returns ok=false (without error) if the
// interior doesn't parse as a binding list, so the caller can fall back
// to ordinary parenthesized-expression parsing.
func (p *Parser) tryParseArrowParenParams() ([]ast.Pattern, bool, error) {
	if err := p.next(); err != nil { // consume (
		return nil, false, err
	}
	var params []ast.Pattern
	for !p.at(token.RParen) {
		if p.at(token.Ellipsis) {
			if err := p.next(); err != nil {
				return nil, false, nil
			}
			rest, err := p.parseBindingTarget()
			if err != nil {
				return nil, false, nil
			}
			params = append(params, &ast.AssignPattern{Base: ast.NewBase(rest.Span()), Target: rest})
			break
		}
		target, err := p.parseBindingTarget()
		if err != nil {
			return nil, false, nil
		}
		if p.at(token.Eq) {
			if err := p.next(); err != nil {
				return nil, false, nil
			}
			def, err := p.parseAssignExpr()
			if err != nil {
				return nil, false, nil
			}
			target = &ast.AssignPattern{Base: ast.NewBase(target.Span()), Target: target, Default: def}
		}
		params = append(params, target)
		if p.at(token.Comma) {
			if err := p.next(); err != nil {
				return nil, false, nil
			}
			continue
		}
		break
	}
	if !p.at(token.RParen) {
		return nil, false, nil
	}
	if err := p.next(); err != nil {
		return nil, false, nil
	}
	return params, true, nil
}

func (p *Parser) finishArrowBody(params []ast.Pattern, start token.Position, isAsync bool) (ast.Expr, error) {
	fn := &ast.FunctionLit{Params: params, IsArrow: true, IsAsync: isAsync, Strict: p.strict}
	savedParams := p.p
	p.p = params_t{Yield: false, Await: isAsync, Return: true}
	defer func() { p.p = savedParams }()
	if p.at(token.LBrace) {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		fn.Body = body
		fn.Strict = fn.Strict || hasUseStrictPrologue(p, body)
	} else {
		expr, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		fn.ExprBody = expr
	}
	fn.Base = ast.NewBase(p.spanFrom(start))
	return fn, nil
}

type params_t = params

func (p *Parser) parseConditional() (ast.Expr, error) {
	start := p.cur.Span.Start
	test, err := p.parseNullish()
	if err != nil {
		return nil, err
	}
	if !p.at(token.Question) {
		return test, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	savedNoIn := p.noIn
	p.noIn = 0
	cons, err := p.parseAssignExpr()
	p.noIn = savedNoIn
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	alt, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ConditionalExpr{Base: ast.NewBase(p.spanFrom(start)), Test: test, Cons: cons, Alt: alt}, nil
}

func (p *Parser) parseNullish() (ast.Expr, error) {
	start := p.cur.Span.Start
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	for p.at(token.QuestionQuestion) {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Base: ast.NewBase(p.spanFrom(start)), Op: ast.LogNullish, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	start := p.cur.Span.Start
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.PipePipe) {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Base: ast.NewBase(p.spanFrom(start)), Op: ast.LogOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	start := p.cur.Span.Start
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.at(token.AmpAmp) {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Base: ast.NewBase(p.spanFrom(start)), Op: ast.LogAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseBitOr() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.Pipe}, p.parseBitXor)
}
func (p *Parser) parseBitXor() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.Caret}, p.parseBitAnd)
}
func (p *Parser) parseBitAnd() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.Amp}, p.parseEquality)
}
func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.EqEq, token.NotEq, token.EqEqEq, token.NotEqEq}, p.parseRelational)
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	start := p.cur.Span.Start
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for {
		if p.at(token.KwIn) && p.noIn > 0 {
			break
		}
		if !(p.at(token.Lt) || p.at(token.Gt) || p.at(token.LtEq) || p.at(token.GtEq) || p.at(token.KwInstanceof) || p.at(token.KwIn)) {
			break
		}
		op := binOpFor(p.cur.Kind)
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Base: ast.NewBase(p.spanFrom(start)), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.LtLt, token.GtGt, token.GtGtGt}, p.parseAdditive)
}
func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.Plus, token.Minus}, p.parseMultiplicative)
}
func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseBinaryLevel([]token.Kind{token.Star, token.Slash, token.Percent}, p.parseExponent)
}

func (p *Parser) parseExponent() (ast.Expr, error) {
	start := p.cur.Span.Start
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.at(token.StarStar) {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseExponent() // right-associative
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Base: ast.NewBase(p.spanFrom(start)), Op: ast.BinPow, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseBinaryLevel(kinds []token.Kind, next func() (ast.Expr, error)) (ast.Expr, error) {
	start := p.cur.Span.Start
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, k := range kinds {
			if p.at(k) {
				matched = true
				break
			}
		}
		if !matched {
			break
		}
		op := binOpFor(p.cur.Kind)
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Base: ast.NewBase(p.spanFrom(start)), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func binOpFor(k token.Kind) ast.BinaryOp {
	switch k {
	case token.Plus:
		return ast.BinAdd
	case token.Minus:
		return ast.BinSub
	case token.Star:
		return ast.BinMul
	case token.Slash:
		return ast.BinDiv
	case token.Percent:
		return ast.BinMod
	case token.StarStar:
		return ast.BinPow
	case token.Lt:
		return ast.BinLt
	case token.Gt:
		return ast.BinGt
	case token.LtEq:
		return ast.BinLtEq
	case token.GtEq:
		return ast.BinGtEq
	case token.EqEq:
		return ast.BinEqEq
	case token.NotEq:
		return ast.BinNotEq
	case token.EqEqEq:
		return ast.BinEqEqEq
	case token.NotEqEq:
		return ast.BinNotEqEq
	case token.LtLt:
		return ast.BinShl
	case token.GtGt:
		return ast.BinShr
	case token.GtGtGt:
		return ast.BinUShr
	case token.Amp:
		return ast.BinBitAnd
	case token.Pipe:
		return ast.BinBitOr
	case token.Caret:
		return ast.BinBitXor
	case token.KwIn:
		return ast.BinIn
	case token.KwInstanceof:
		return ast.BinInstanceof
	}
	return ast.BinAdd
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	start := p.cur.Span.Start
	var op ast.UnaryOp
	has := true
	switch p.cur.Kind {
	case token.Minus:
		op = ast.UnaryMinus
	case token.Plus:
		op = ast.UnaryPlus
	case token.Bang:
		op = ast.UnaryNot
	case token.Tilde:
		op = ast.UnaryBitNot
	case token.KwTypeof:
		op = ast.UnaryTypeof
	case token.KwVoid:
		op = ast.UnaryVoid
	case token.KwDelete:
		op = ast.UnaryDelete
	default:
		has = false
	}
	if has {
		if err := p.next(); err != nil {
			return nil, err
		}
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Base: ast.NewBase(p.spanFrom(start)), Op: op, Arg: arg}, nil
	}
	if p.at(token.KwAwait) && p.p.Await {
		if err := p.next(); err != nil {
			return nil, err
		}
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.AwaitExpr{Base: ast.NewBase(p.spanFrom(start)), Arg: arg}, nil
	}
	if p.at(token.PlusPlus) || p.at(token.MinusMinus) {
		opTok := p.cur.Kind
		if err := p.next(); err != nil {
			return nil, err
		}
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		sym := "++"
		if opTok == token.MinusMinus {
			sym = "--"
		}
		return &ast.UpdateExpr{Base: ast.NewBase(p.spanFrom(start)), Op: sym, Arg: arg, Prefix: true}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	start := p.cur.Span.Start
	expr, err := p.parseLeftHandSide()
	if err != nil {
		return nil, err
	}
	if (p.at(token.PlusPlus) || p.at(token.MinusMinus)) && !p.cur.LineTerminatorBefore {
		sym := "++"
		if p.cur.Kind == token.MinusMinus {
			sym = "--"
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.UpdateExpr{Base: ast.NewBase(p.spanFrom(start)), Op: sym, Arg: expr, Prefix: false}, nil
	}
	return expr, nil
}

// parseLeftHandSide parses NewExpr/CallExpr/MemberExpr chains.
func (p *Parser) parseLeftHandSide() (ast.Expr, error) {
	start := p.cur.Span.Start
	var expr ast.Expr
	var err error
	if p.at(token.KwNew) {
		expr, err = p.parseNewExpr()
	} else {
		expr, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	return p.parseCallTail(expr, start)
}

func (p *Parser) parseNewExpr() (ast.Expr, error) {
	start := p.cur.Span.Start
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.at(token.Dot) {
		if err := p.next(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Ident); err != nil {
			return nil, err
		}
		return &ast.NewTargetExpr{Base: ast.NewBase(p.spanFrom(start))}, nil
	}
	var callee ast.Expr
	var err error
	if p.at(token.KwNew) {
		callee, err = p.parseNewExpr()
	} else {
		callee, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	callee, err = p.parseMemberTail(callee, start)
	if err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.at(token.LParen) {
		args, err = p.parseArguments()
		if err != nil {
			return nil, err
		}
	}
	return &ast.NewExpr{Base: ast.NewBase(p.spanFrom(start)), Callee: callee, Args: args}, nil
}

func (p *Parser) parseMemberTail(expr ast.Expr, start token.Position) (ast.Expr, error) {
	for {
		switch {
		case p.at(token.Dot):
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.at(token.PrivateIdent) {
				id := &ast.Ident{Base: ast.NewBase(p.cur.Span), Name: p.cur.Atom}
				if err := p.next(); err != nil {
					return nil, err
				}
				expr = &ast.MemberExpr{Base: ast.NewBase(p.spanFrom(start)), Obj: expr, Prop: id}
				continue
			}
			key, _, err := p.parsePropertyKey()
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Base: ast.NewBase(p.spanFrom(start)), Obj: expr, Prop: &ast.Ident{Base: ast.NewBase(key.Span()), Name: key.Name}}
		case p.at(token.LBracket):
			if err := p.next(); err != nil {
				return nil, err
			}
			prop, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Base: ast.NewBase(p.spanFrom(start)), Obj: expr, Prop: prop, Computed: true}
		case p.at(token.NoSubTemplate) || p.at(token.TemplateHead):
			tmpl, err := p.parseTemplateLiteral()
			if err != nil {
				return nil, err
			}
			expr = &ast.TaggedTemplateExpr{Base: ast.NewBase(p.spanFrom(start)), Tag: expr, Quasi: tmpl}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallTail(expr ast.Expr, start token.Position) (ast.Expr, error) {
	expr, err := p.parseMemberTail(expr, start)
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(token.LParen):
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Base: ast.NewBase(p.spanFrom(start)), Callee: expr, Args: args}
		case p.at(token.QuestionDot):
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.at(token.LParen) {
				args, err := p.parseArguments()
				if err != nil {
					return nil, err
				}
				expr = &ast.CallExpr{Base: ast.NewBase(p.spanFrom(start)), Callee: expr, Args: args, Optional: true}
				continue
			}
			if p.at(token.LBracket) {
				if err := p.next(); err != nil {
					return nil, err
				}
				prop, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(token.RBracket); err != nil {
					return nil, err
				}
				expr = &ast.MemberExpr{Base: ast.NewBase(p.spanFrom(start)), Obj: expr, Prop: prop, Computed: true, Optional: true}
				continue
			}
			key, _, err := p.parsePropertyKey()
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Base: ast.NewBase(p.spanFrom(start)), Obj: expr, Prop: &ast.Ident{Base: ast.NewBase(key.Span()), Name: key.Name}, Optional: true}
		case p.at(token.Dot) || p.at(token.LBracket) || p.at(token.NoSubTemplate) || p.at(token.TemplateHead):
			e2, err := p.parseMemberTail(expr, start)
			if err != nil {
				return nil, err
			}
			expr = e2
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArguments() ([]ast.Expr, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(token.RParen) {
		if p.at(token.Ellipsis) {
			sstart := p.cur.Span.Start
			if err := p.next(); err != nil {
				return nil, err
			}
			arg, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, &ast.SpreadElement{Base: ast.NewBase(p.spanFrom(sstart)), Arg: arg})
		} else {
			arg, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
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
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	start := p.cur.Span.Start
	switch p.cur.Kind {
	case token.KwThis:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.ThisExpr{Base: ast.NewBase(p.spanFrom(start))}, nil
	case token.KwSuper:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.SuperExpr{Base: ast.NewBase(p.spanFrom(start))}, nil
	case token.Ident:
		atom := p.cur.Atom
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Ident{Base: ast.NewBase(p.spanFrom(start)), Name: atom}, nil
	case token.KwAsync, token.KwLet, token.KwStatic, token.KwOf, token.KwGet, token.KwSet, token.KwAwait, token.KwYield:
		atom := p.cur.Atom
		if atom == token.NoAtom {
			atom = p.interner.Intern(p.cur.Kind.String())
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Ident{Base: ast.NewBase(p.spanFrom(start)), Name: atom}, nil
	case token.NumericLiteral:
		v := p.cur.Number
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.NumberLit{Base: ast.NewBase(p.spanFrom(start)), Value: v}, nil
	case token.BigIntLiteral:
		digits := p.cur.BigInt
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BigIntLit{Base: ast.NewBase(p.spanFrom(start)), Digits: digits}, nil
	case token.StringLiteral:
		atom := p.cur.Atom
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.StringLit{Base: ast.NewBase(p.spanFrom(start)), Value: atom}, nil
	case token.KwTrue, token.KwFalse:
		v := p.cur.Kind == token.KwTrue
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Base: ast.NewBase(p.spanFrom(start)), Value: v}, nil
	case token.KwNull:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.NullLit{Base: ast.NewBase(p.spanFrom(start))}, nil
	case token.LParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{Base: ast.NewBase(p.spanFrom(start)), Inner: inner}, nil
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.LBrace:
		return p.parseObjectLiteral()
	case token.KwFunction:
		fn, err := p.parseFunction(false, false)
		if err != nil {
			return nil, err
		}
		return fn, nil
	case token.KwClass:
		return p.parseClass()
	case token.NoSubTemplate, token.TemplateHead:
		return p.parseTemplateLiteral()
	case token.PrivateIdent:
		atom := p.cur.Atom
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Ident{Base: ast.NewBase(p.spanFrom(start)), Name: atom}, nil
	default:
		return nil, p.errf(p.cur.Span, "unexpected token %s in expression", p.cur.Kind)
	}
}

func (p *Parser) parseArrayLiteral() (ast.Expr, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var elems []ast.Expr
	for !p.at(token.RBracket) {
		if p.at(token.Comma) {
			elems = append(elems, nil)
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		if p.at(token.Ellipsis) {
			sstart := p.cur.Span.Start
			if err := p.next(); err != nil {
				return nil, err
			}
			arg, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, &ast.SpreadElement{Base: ast.NewBase(p.spanFrom(sstart)), Arg: arg})
		} else {
			e, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
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
	return &ast.ArrayLit{Base: ast.NewBase(p.spanFrom(start)), Elements: elems}, nil
}

func (p *Parser) parseObjectLiteral() (ast.Expr, error) {
	start := p.cur.Span.Start
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var props []*ast.Property
	for !p.at(token.RBrace) {
		pstart := p.cur.Span.Start
		if p.at(token.Ellipsis) {
			if err := p.next(); err != nil {
				return nil, err
			}
			arg, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			props = append(props, &ast.Property{Base: ast.NewBase(p.spanFrom(pstart)), Kind: ast.PropSpread, Value: arg})
		} else {
			prop, err := p.parseObjectProperty()
			if err != nil {
				return nil, err
			}
			props = append(props, prop)
		}
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
	return &ast.ObjectLit{Base: ast.NewBase(p.spanFrom(start)), Props: props}, nil
}

func (p *Parser) parseObjectProperty() (*ast.Property, error) {
	start := p.cur.Span.Start

	if (p.at(token.KwGet) || p.at(token.KwSet)) && !p.nextIsPropertyTerminator() {
		kind := ast.PropGet
		if p.cur.Kind == token.KwSet {
			kind = ast.PropSet
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		key, computed, err := p.parsePropertyKey()
		if err != nil {
			return nil, err
		}
		fn, err := p.parseFunctionTail(false, false)
		if err != nil {
			return nil, err
		}
		_ = computed
		return &ast.Property{Base: ast.NewBase(p.spanFrom(start)), Kind: kind, Key: key, Value: fn, Shorthand: false}, nil
	}

	isAsync := false
	isGen := false
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

	key, computed, err := p.parsePropertyKey()
	if err != nil {
		return nil, err
	}

	if p.at(token.LParen) {
		fn, err := p.parseFunctionTail(isGen, isAsync)
		if err != nil {
			return nil, err
		}
		_ = computed
		return &ast.Property{Base: ast.NewBase(p.spanFrom(start)), Kind: ast.PropMethod, Key: key, Value: fn}, nil
	}

	if p.at(token.Colon) {
		if err := p.next(); err != nil {
			return nil, err
		}
		val, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		_ = computed
		return &ast.Property{Base: ast.NewBase(p.spanFrom(start)), Kind: ast.PropInit, Key: key, Value: val}, nil
	}

	// shorthand { x } or { x = default } (destructuring target, valid in
	// patterns only, tolerated here and reinterpreted by the compiler)
	ident := &ast.Ident{Base: ast.NewBase(key.Span()), Name: key.Name}
	var val ast.Expr = ident
	if p.at(token.Eq) {
		if err := p.next(); err != nil {
			return nil, err
		}
		def, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		val = &ast.AssignExpr{Base: ast.NewBase(p.spanFrom(start)), Op: token.Eq, Target: ident, Value: def}
	}
	return &ast.Property{Base: ast.NewBase(p.spanFrom(start)), Kind: ast.PropInit, Key: key, Value: val, Shorthand: true}, nil
}

func (p *Parser) nextIsPropertyTerminator() bool {
	saved := p.cur
	savedLex := *p.lex
	_ = p.next()
	terminator := p.cur.Kind == token.Colon || p.cur.Kind == token.LParen || p.cur.Kind == token.Comma || p.cur.Kind == token.RBrace || p.cur.Kind == token.Eq
	*p.lex = savedLex
	p.cur = saved
	p.peeked = nil
	return terminator
}

func (p *Parser) parseTemplateLiteral() (*ast.TemplateLit, error) {
	start := p.cur.Span.Start
	var quasis []token.Template
	var exprs []ast.Expr
	if p.cur.Kind == token.NoSubTemplate {
		quasis = append(quasis, p.cur.Tmpl)
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.TemplateLit{Base: ast.NewBase(p.spanFrom(start)), Quasis: quasis}, nil
	}
	quasis = append(quasis, p.cur.Tmpl) // TemplateHead
	if err := p.next(); err != nil {
		return nil, err
	}
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if !p.at(token.RBrace) {
			return nil, p.errf(p.cur.Span, "expected '}' in template substitution")
		}
		if err := p.nextAsTemplateTail(); err != nil {
			return nil, err
		}
		quasis = append(quasis, p.cur.Tmpl)
		done := p.cur.Kind == token.TemplateTail
		kind := p.cur.Kind
		if err := p.next(); err != nil {
			return nil, err
		}
		if done || kind == token.TemplateTail {
			break
		}
	}
	return &ast.TemplateLit{Base: ast.NewBase(p.spanFrom(start)), Quasis: quasis, Exprs: exprs}, nil
}

var _ = strings.TrimSpace
