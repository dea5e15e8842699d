// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asm

import (
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes shader assembly. Line breaks are significant: every
// directive and instruction ends at one.
type Lexer struct {
	source string
	pos    int
	line   int
	column int
	start  int
	tokens []Token
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string) *Lexer {
	// Estimate ~1 token per 4 characters of source.
	estTokens := max(len(source)/4, 16)
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, estTokens),
	}
}

// Tokenize returns all tokens from the source, ending with TokenEOF.
// Characters that start no token become TokenError tokens for the parser
// to report.
func (l *Lexer) Tokenize() []Token {
	for !l.isAtEnd() {
		l.start = l.pos
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Kind:   TokenEOF,
		Line:   l.line,
		Column: l.column,
	})
	return l.tokens
}

func (l *Lexer) scanToken() {
	r := l.advance()

	switch r {
	case '(':
		l.addToken(TokenLeftParen)
	case ')':
		l.addToken(TokenRightParen)
	case '[':
		l.addToken(TokenLeftBracket)
	case ']':
		l.addToken(TokenRightBracket)
	case ',':
		l.addToken(TokenComma)
	case '.':
		l.addToken(TokenDot)
	case '+':
		l.addToken(TokenPlus)
	case '-':
		l.addToken(TokenMinus)
	case '|':
		l.addToken(TokenPipe)
	case '/':
		if l.match('/') {
			for l.peek() != '\n' && !l.isAtEnd() {
				l.advance()
			}
		} else {
			l.addToken(TokenError)
		}

	case ' ', '\r', '\t':
	case '\n':
		l.addToken(TokenNewline)
		l.line++
		l.column = 1

	default:
		switch {
		case isDigit(r):
			l.number()
		case isAlpha(r) || r == '_':
			l.identifier()
		default:
			l.addToken(TokenError)
		}
	}
}

func (l *Lexer) number() {
	if l.source[l.start] == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
		l.addToken(TokenNumber)
		return
	}

	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	l.addToken(TokenNumber)
}

func (l *Lexer) identifier() {
	for isAlphaNumeric(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	l.addToken(TokenIdent)
}

func (l *Lexer) addToken(kind TokenKind) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Lexeme: l.source[l.start:l.pos],
		Line:   l.line,
		Column: l.column - (l.pos - l.start),
	})
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	l.column++
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.source[l.pos:])
	r, _ := utf8.DecodeRuneInString(l.source[l.pos+size:])
	return r
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() {
		return false
	}
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	if r != expected {
		return false
	}
	l.pos += size
	l.column++
	return true
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAlpha(r rune) bool {
	return unicode.IsLetter(r)
}

func isAlphaNumeric(r rune) bool {
	return isAlpha(r) || isDigit(r)
}
