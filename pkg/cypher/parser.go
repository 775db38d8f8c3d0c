package cypher

import (
	"fmt"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// Parser is a recursive-descent parser with a one-token lookahead buffer,
// grounded on _examples/original_source/src/query/parser.rs's grammar shape
// (clause sequence -> pattern -> expression with standard precedence
// climbing for AND/OR/comparison/additive/multiplicative).
type Parser struct {
	lex  *Lexer
	cur  Token
	peek Token
}

// Parse lexes and parses a full Cypher statement.
func Parse(src string) (*Statement, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseStatement()
}

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) isKeyword(kw string) bool {
	return p.cur.Kind == TokKeyword && p.cur.Text == kw
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return fmt.Errorf("cypher: expected %s at position %d, found %q", kw, p.cur.Pos, p.cur.Text)
	}
	return p.advance()
}

func (p *Parser) expect(kind TokenKind, what string) (Token, error) {
	if p.cur.Kind != kind {
		return Token{}, fmt.Errorf("cypher: expected %s at position %d, found %q", what, p.cur.Pos, p.cur.Text)
	}
	tok := p.cur
	return tok, p.advance()
}

func (p *Parser) parseStatement() (*Statement, error) {
	stmt := &Statement{}
	for p.cur.Kind != TokEOF {
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, clause)
	}
	return stmt, nil
}

func (p *Parser) parseClause() (Clause, error) {
	switch {
	case p.isKeyword("OPTIONAL"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseMatch(true)
	case p.isKeyword("MATCH"):
		return p.parseMatch(false)
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("SET"):
		return p.parseSet()
	case p.isKeyword("DELETE"), p.isKeyword("DETACH"):
		return p.parseDelete()
	case p.isKeyword("RETURN"):
		return p.parseReturn()
	default:
		return nil, fmt.Errorf("cypher: unexpected token %q at position %d", p.cur.Text, p.cur.Pos)
	}
}

func (p *Parser) parseMatch(optional bool) (Clause, error) {
	if err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	clause := &MatchClause{Optional: optional}
	for {
		path, err := p.parsePatternPath()
		if err != nil {
			return nil, err
		}
		clause.Paths = append(clause.Paths, path)
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.isKeyword("WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		clause.Where = expr
	}
	return clause, nil
}

func (p *Parser) parseCreate() (Clause, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	clause := &CreateClause{}
	for {
		path, err := p.parsePatternPath()
		if err != nil {
			return nil, err
		}
		clause.Paths = append(clause.Paths, path)
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return clause, nil
}

func (p *Parser) parseSet() (Clause, error) {
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	clause := &SetClause{}
	for {
		variable, err := p.expect(TokIdent, "variable")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokDot, "'.'"); err != nil {
			return nil, err
		}
		prop, err := p.expect(TokIdent, "property name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokEq, "'='"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		clause.Items = append(clause.Items, SetItem{Variable: variable.Text, Property: prop.Text, Value: value})
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return clause, nil
}

func (p *Parser) parseDelete() (Clause, error) {
	detach := false
	if p.isKeyword("DETACH") {
		detach = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	clause := &DeleteClause{Detach: detach}
	for {
		v, err := p.expect(TokIdent, "variable")
		if err != nil {
			return nil, err
		}
		clause.Variables = append(clause.Variables, v.Text)
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return clause, nil
}

func (p *Parser) parseReturn() (Clause, error) {
	if err := p.expectKeyword("RETURN"); err != nil {
		return nil, err
	}
	clause := &ReturnClause{}
	if p.isKeyword("DISTINCT") {
		clause.Distinct = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Expr: expr}
		if p.isKeyword("AS") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			alias, err := p.expect(TokIdent, "alias")
			if err != nil {
				return nil, err
			}
			item.Alias = alias.Text
		}
		clause.Items = append(clause.Items, item)
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.isKeyword("ORDER") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: expr}
			if p.isKeyword("DESC") {
				item.Descending = true
				if err := p.advance(); err != nil {
					return nil, err
				}
			} else if p.isKeyword("ASC") {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
			clause.OrderBy = append(clause.OrderBy, item)
			if p.cur.Kind != TokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.isKeyword("SKIP") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.expect(TokNumber, "integer")
		if err != nil {
			return nil, err
		}
		_, i, _, err := parseNumberLiteral(n.Text)
		if err != nil {
			return nil, err
		}
		clause.Skip, clause.HasSkip = i, true
	}
	if p.isKeyword("LIMIT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.expect(TokNumber, "integer")
		if err != nil {
			return nil, err
		}
		_, i, _, err := parseNumberLiteral(n.Text)
		if err != nil {
			return nil, err
		}
		clause.Limit, clause.HasLimit = i, true
	}
	return clause, nil
}

// parsePatternPath parses "(n:Label)-[:TYPE]->(m:Label)..." (spec §4.E).
func (p *Parser) parsePatternPath() (PatternPath, error) {
	var path PatternPath
	node, err := p.parseNodePattern()
	if err != nil {
		return path, err
	}
	path.Nodes = append(path.Nodes, node)

	for p.cur.Kind == TokDash || p.cur.Kind == TokArrowLeft {
		edge, err := p.parseEdgePattern()
		if err != nil {
			return path, err
		}
		path.Edges = append(path.Edges, edge)
		node, err := p.parseNodePattern()
		if err != nil {
			return path, err
		}
		path.Nodes = append(path.Nodes, node)
	}
	return path, nil
}

func (p *Parser) parseNodePattern() (NodePattern, error) {
	var n NodePattern
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return n, err
	}
	if p.cur.Kind == TokIdent {
		n.Variable = p.cur.Text
		if err := p.advance(); err != nil {
			return n, err
		}
	}
	for p.cur.Kind == TokColon {
		if err := p.advance(); err != nil {
			return n, err
		}
		label, err := p.expect(TokIdent, "label")
		if err != nil {
			return n, err
		}
		n.Labels = append(n.Labels, graph.Label(label.Text))
	}
	if p.cur.Kind == TokLBrace {
		props, err := p.parsePropertyMap()
		if err != nil {
			return n, err
		}
		n.Properties = props
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return n, err
	}
	return n, nil
}

// parseEdgePattern parses one of "-->", "<--", "-[...]->", "<-[...]-",
// "-[...]-" (direction Both).
func (p *Parser) parseEdgePattern() (EdgePattern, error) {
	var e EdgePattern
	leftArrow := false
	if p.cur.Kind == TokArrowLeft {
		leftArrow = true
		if err := p.advance(); err != nil {
			return e, err
		}
	} else {
		if _, err := p.expect(TokDash, "'-'"); err != nil {
			return e, err
		}
	}

	if p.cur.Kind == TokLBracket {
		if err := p.advance(); err != nil {
			return e, err
		}
		if p.cur.Kind == TokIdent {
			e.Variable = p.cur.Text
			if err := p.advance(); err != nil {
				return e, err
			}
		}
		for p.cur.Kind == TokColon {
			if err := p.advance(); err != nil {
				return e, err
			}
			typ, err := p.expect(TokIdent, "edge type")
			if err != nil {
				return e, err
			}
			e.Types = append(e.Types, graph.EdgeType(typ.Text))
		}
		if p.cur.Kind == TokLBrace {
			props, err := p.parsePropertyMap()
			if err != nil {
				return e, err
			}
			e.Properties = props
		}
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return e, err
		}
	}

	rightArrow := false
	switch p.cur.Kind {
	case TokArrowRight:
		rightArrow = true
		if err := p.advance(); err != nil {
			return e, err
		}
	case TokDash:
		if err := p.advance(); err != nil {
			return e, err
		}
	default:
		return e, fmt.Errorf("cypher: expected edge terminator at position %d, found %q", p.cur.Pos, p.cur.Text)
	}

	switch {
	case leftArrow && !rightArrow:
		e.Direction = graph.Incoming
	case rightArrow && !leftArrow:
		e.Direction = graph.Outgoing
	default:
		e.Direction = graph.Both
	}
	return e, nil
}

func (p *Parser) parsePropertyMap() (map[string]Expr, error) {
	props := make(map[string]Expr)
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokRBrace {
		return props, p.advance()
	}
	for {
		key, err := p.expect(TokIdent, "property key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':'"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		props[key.Text] = value
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return props, nil
}

// Expression grammar, lowest to highest precedence:
//
//	expr       := orExpr
//	orExpr     := andExpr ( OR andExpr )*
//	andExpr    := comparison ( AND comparison )*
//	comparison := additive ( (= | <> | < | <= | > | >=) additive )?
//	additive   := multiplicative ( (+ | -) multiplicative )*
//	multiplicative := unary ( (* | /) unary )*
//	unary      := NOT unary | - unary | primary
//	primary    := literal | variable | variable '.' property | '(' expr ')'
func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var op BinOp
	switch p.cur.Kind {
	case TokEq:
		op = OpEq
	case TokNeq:
		op = OpNeq
	case TokLt:
		op = OpLt
	case TokLte:
		op = OpLte
	case TokGt:
		op = OpGt
	case TokGte:
		op = OpGte
	default:
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokDash {
		op := OpAdd
		if p.cur.Kind == TokDash {
			op = OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokStar || p.cur.Kind == TokSlash {
		op := OpMul
		if p.cur.Kind == TokSlash {
			op = OpDiv
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.isKeyword("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: OpNot, Operand: operand}, nil
	}
	if p.cur.Kind == TokDash {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: OpNeg, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur.Kind {
	case TokNumber:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		isFloat, i, f, err := parseNumberLiteral(text)
		if err != nil {
			return nil, err
		}
		if isFloat {
			return Literal{Value: graph.NewFloat(f)}, nil
		}
		return Literal{Value: graph.NewInteger(i)}, nil
	case TokString:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Literal{Value: graph.NewString(text)}, nil
	case TokKeyword:
		switch p.cur.Text {
		case "TRUE":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return Literal{Value: graph.NewBoolean(true)}, nil
		case "FALSE":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return Literal{Value: graph.NewBoolean(false)}, nil
		case "NULL":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return Literal{Value: graph.Null}, nil
		}
		return nil, fmt.Errorf("cypher: unexpected keyword %q in expression at position %d", p.cur.Text, p.cur.Pos)
	case TokIdent:
		name := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
			prop, err := p.expect(TokIdent, "property name")
			if err != nil {
				return nil, err
			}
			return PropertyAccess{Variable: name, Property: prop.Text}, nil
		}
		return Variable{Name: name}, nil
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("cypher: unexpected token %q at position %d", p.cur.Text, p.cur.Pos)
	}
}
