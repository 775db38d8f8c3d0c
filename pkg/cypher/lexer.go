package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind tags a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokKeyword
	TokNumber
	TokString
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokLBracket
	TokRBracket
	TokColon
	TokComma
	TokDot
	TokEq
	TokNeq
	TokLt
	TokLte
	TokGt
	TokGte
	TokDash
	TokArrowRight // ->
	TokArrowLeft  // <-
	TokPlus
	TokStar
	TokSlash
)

// Token is one lexeme: its kind, literal text, and (for keywords) the
// upper-cased form used for keyword comparison.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

var keywords = map[string]bool{
	"MATCH": true, "WHERE": true, "RETURN": true, "CREATE": true,
	"SET": true, "DELETE": true, "DETACH": true, "OPTIONAL": true,
	"AND": true, "OR": true, "NOT": true, "NULL": true, "TRUE": true,
	"FALSE": true, "AS": true, "ORDER": true, "BY": true, "ASC": true,
	"DESC": true, "SKIP": true, "LIMIT": true, "DISTINCT": true,
}

// Lexer turns Cypher query text into a Token stream, one rune scan per
// token with no backtracking — the same hand-rolled-scanner posture the
// pack shows no parser-combinator library for (spec §4.E grounding, see
// DESIGN.md Section E).
type Lexer struct {
	src []rune
	pos int
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src)}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		case '/':
			if l.peekAt(1) == '/' {
				for l.pos < len(l.src) && l.src[l.pos] != '\n' {
					l.pos++
				}
				continue
			}
			return
		default:
			return
		}
	}
}

// Next returns the next token, or a TokEOF token once the input is
// exhausted.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return Token{Kind: TokLParen, Text: "(", Pos: start}, nil
	case c == ')':
		l.pos++
		return Token{Kind: TokRParen, Text: ")", Pos: start}, nil
	case c == '{':
		l.pos++
		return Token{Kind: TokLBrace, Text: "{", Pos: start}, nil
	case c == '}':
		l.pos++
		return Token{Kind: TokRBrace, Text: "}", Pos: start}, nil
	case c == '[':
		l.pos++
		return Token{Kind: TokLBracket, Text: "[", Pos: start}, nil
	case c == ']':
		l.pos++
		return Token{Kind: TokRBracket, Text: "]", Pos: start}, nil
	case c == ':':
		l.pos++
		return Token{Kind: TokColon, Text: ":", Pos: start}, nil
	case c == ',':
		l.pos++
		return Token{Kind: TokComma, Text: ",", Pos: start}, nil
	case c == '.':
		l.pos++
		return Token{Kind: TokDot, Text: ".", Pos: start}, nil
	case c == '+':
		l.pos++
		return Token{Kind: TokPlus, Text: "+", Pos: start}, nil
	case c == '*':
		l.pos++
		return Token{Kind: TokStar, Text: "*", Pos: start}, nil
	case c == '/':
		l.pos++
		return Token{Kind: TokSlash, Text: "/", Pos: start}, nil
	case c == '=':
		l.pos++
		return Token{Kind: TokEq, Text: "=", Pos: start}, nil
	case c == '<':
		l.pos++
		switch l.peek() {
		case '=':
			l.pos++
			return Token{Kind: TokLte, Text: "<=", Pos: start}, nil
		case '>':
			l.pos++
			return Token{Kind: TokNeq, Text: "<>", Pos: start}, nil
		case '-':
			l.pos++
			return Token{Kind: TokArrowLeft, Text: "<-", Pos: start}, nil
		}
		return Token{Kind: TokLt, Text: "<", Pos: start}, nil
	case c == '>':
		l.pos++
		if l.peek() == '=' {
			l.pos++
			return Token{Kind: TokGte, Text: ">=", Pos: start}, nil
		}
		return Token{Kind: TokGt, Text: ">", Pos: start}, nil
	case c == '-':
		l.pos++
		if l.peek() == '>' {
			l.pos++
			return Token{Kind: TokArrowRight, Text: "->", Pos: start}, nil
		}
		return Token{Kind: TokDash, Text: "-", Pos: start}, nil
	case c == '"' || c == '\'':
		return l.lexString(c)
	case c >= '0' && c <= '9':
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	default:
		return Token{}, fmt.Errorf("cypher: unexpected character %q at position %d", c, start)
	}
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) lexIdent() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if keywords[strings.ToUpper(text)] {
		return Token{Kind: TokKeyword, Text: strings.ToUpper(text), Pos: start}, nil
	}
	return Token{Kind: TokIdent, Text: text, Pos: start}, nil
}

func (l *Lexer) lexNumber() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.peekAt(1) >= '0' && l.peekAt(1) <= '9' {
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
	}
	return Token{Kind: TokNumber, Text: string(l.src[start:l.pos]), Pos: start}, nil
}

func (l *Lexer) lexString(quote rune) (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, fmt.Errorf("cypher: unterminated string starting at position %d", start)
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c == '\\' && l.peekAt(1) != 0 {
			l.pos++
			sb.WriteRune(l.src[l.pos])
			l.pos++
			continue
		}
		sb.WriteRune(c)
		l.pos++
	}
	return Token{Kind: TokString, Text: sb.String(), Pos: start}, nil
}

// parseNumberLiteral turns a NUMBER token's text into an int64 or float64
// PropertyValue, per spec §4.A: integer literals stay Integer, anything
// with a decimal point becomes Float.
func parseNumberLiteral(text string) (isFloat bool, i int64, f float64, err error) {
	if strings.Contains(text, ".") {
		f, err = strconv.ParseFloat(text, 64)
		return true, 0, f, err
	}
	i, err = strconv.ParseInt(text, 10, 64)
	return false, i, 0, err
}
