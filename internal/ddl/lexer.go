package ddl

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenComma
	tokenNumber
	tokenEOF
)

type token struct {
	kind tokenKind
	text string
}

// lexer splits the clause substring into identifiers, numbers, and commas.
// Keywords are plain identifiers matched case-insensitively by the parser.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (lx *lexer) next() token {
	for lx.pos < len(lx.input) && unicode.IsSpace(rune(lx.input[lx.pos])) {
		lx.pos++
	}
	if lx.pos >= len(lx.input) {
		return token{kind: tokenEOF}
	}

	c := lx.input[lx.pos]
	if c == ',' {
		lx.pos++
		return token{kind: tokenComma, text: ","}
	}

	start := lx.pos
	for lx.pos < len(lx.input) {
		r := rune(lx.input[lx.pos])
		if unicode.IsSpace(r) || r == ',' {
			break
		}
		lx.pos++
	}
	text := lx.input[start:lx.pos]

	if isNumber(text) {
		return token{kind: tokenNumber, text: text}
	}
	return token{kind: tokenIdent, text: text}
}

// peek returns the next token without consuming it.
func (lx *lexer) peek() token {
	save := lx.pos
	tok := lx.next()
	lx.pos = save
	return tok
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isKeyword matches a token text against a clause keyword, ignoring case.
func isKeyword(tok token, keyword string) bool {
	return tok.kind == tokenIdent && strings.EqualFold(tok.text, keyword)
}
