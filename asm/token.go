// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asm

import "fmt"

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenError
	TokenNewline

	TokenIdent
	TokenNumber

	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBracket  // [
	TokenRightBracket // ]
	TokenComma        // ,
	TokenDot          // .
	TokenPlus         // +
	TokenMinus        // -
	TokenPipe         // |
)

var tokenNames = [...]string{
	TokenEOF:          "end of input",
	TokenError:        "invalid character",
	TokenNewline:      "end of line",
	TokenIdent:        "identifier",
	TokenNumber:       "number",
	TokenLeftParen:    "'('",
	TokenRightParen:   "')'",
	TokenLeftBracket:  "'['",
	TokenRightBracket: "']'",
	TokenComma:        "','",
	TokenDot:          "'.'",
	TokenPlus:         "'+'",
	TokenMinus:        "'-'",
	TokenPipe:         "'|'",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", k)
}

// Token is a lexical token with its position in the source.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent, TokenNumber, TokenError:
		return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
	default:
		return t.Kind.String()
	}
}
