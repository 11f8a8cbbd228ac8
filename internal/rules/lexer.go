package rules

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokInt
	tokFloat
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits a trigger into tokens. String literal tokens carry their
// unescaped value.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '=' || c == '!' || c == '<' || c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokOp, src[i : i+2], i})
				i += 2
				continue
			}
			if c == '=' || c == '!' {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			toks = append(toks, token{tokOp, string(c), i})
			i++
		case c == '-':
			toks = append(toks, token{tokOp, "-", i})
			i++
		case c == '\'' || c == '"':
			s, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		case c == '.' && (i+1 >= len(src) || !isDigit(src[i+1])):
			toks = append(toks, token{tokDot, ".", i})
			i++
		case isDigit(c) || c == '.':
			tok, n := lexNumber(src, i)
			toks = append(toks, tok)
			i += n
		default:
			r, size := utf8.DecodeRuneInString(src[i:])
			if !isIdentStart(r) {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected %q", r)}
			}
			start := i
			i += size
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !isIdentStart(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

func lexNumber(src string, start int) (token, int) {
	i := start
	kind := tokInt
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		kind = tokFloat
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			kind = tokFloat
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	return token{kind, src[start:i], start}, i - start
}

func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1 - start, nil
		case c == '\n':
			return "", 0, &SyntaxError{Pos: i, Msg: "unterminated string"}
		case c == '\\' && i+1 < len(src):
			i++
			switch e := src[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				// unknown escapes are kept verbatim
				b.WriteByte('\\')
				b.WriteByte(e)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, &SyntaxError{Pos: start, Msg: "unterminated string"}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
