/*
Copyright 2025 The DVSQL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqlparser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const eofChar = utf8.MaxRune + 1

// TokenKind classifies tokens.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenPlaceholder
	TokenSymbol
)

// Token is one lexical token. Val holds the normalized text: keywords are
// upper-cased, string literals are unquoted, placeholders lose their sigil.
// Pos is the byte offset of the token's first character in the source.
type Token struct {
	Kind TokenKind
	Val  string
	Pos  int
}

// Comment is a source comment. Comments are collected on a side stream so
// they never participate in the grammar but stay available with their
// positions.
type Comment struct {
	Text string
	Pos  int
}

// keywords are the words with grammatical meaning. Aggregate and scalar
// function names are deliberately absent: they lex as identifiers and the
// parser resolves them by position.
var keywords = map[string]bool{
	"SELECT": true, "DISTINCT": true, "TOP": true, "AS": true, "FROM": true,
	"JOIN": true, "INNER": true, "LEFT": true, "OUTER": true, "ON": true,
	"WHERE": true, "AND": true, "OR": true, "NOT": true, "IN": true,
	"EXISTS": true, "LIKE": true, "IS": true, "NULL": true,
	"GROUP": true, "BY": true, "HAVING": true, "ORDER": true, "ASC": true,
	"DESC": true, "UNION": true, "ALL": true,
	"INSERT": true, "INTO": true, "VALUES": true, "UPDATE": true, "SET": true,
	"DELETE": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"CAST": true, "CONVERT": true, "IIF": true, "TRUE": true, "FALSE": true,
	"OVER": true, "PARTITION": true,
}

// Tokenizer scans SQL text into tokens. It is a single-pass byte scanner;
// only identifiers may contain multi-byte runes.
type Tokenizer struct {
	sql string
	pos int

	// Comments receives every comment in source order.
	Comments []Comment
}

// NewTokenizer returns a tokenizer over sql.
func NewTokenizer(sql string) *Tokenizer {
	return &Tokenizer{sql: sql}
}

func (tz *Tokenizer) cur() rune {
	if tz.pos >= len(tz.sql) {
		return eofChar
	}
	r, _ := utf8.DecodeRuneInString(tz.sql[tz.pos:])
	return r
}

func (tz *Tokenizer) advance() {
	if tz.pos >= len(tz.sql) {
		return
	}
	_, size := utf8.DecodeRuneInString(tz.sql[tz.pos:])
	tz.pos += size
}

func (tz *Tokenizer) peekByte(offset int) byte {
	if tz.pos+offset >= len(tz.sql) {
		return 0
	}
	return tz.sql[tz.pos+offset]
}

// Next returns the next token. After the source is exhausted every call
// returns the EOF sentinel.
func (tz *Tokenizer) Next() (Token, error) {
	for {
		tz.skipBlank()
		if !tz.skipComment() {
			break
		}
	}
	start := tz.pos
	ch := tz.cur()
	switch {
	case ch == eofChar:
		return Token{Kind: TokenEOF, Pos: start}, nil
	case isIdentStart(ch):
		return tz.scanIdent(start), nil
	case unicode.IsDigit(ch):
		return tz.scanNumber(start)
	case ch == '\'':
		return tz.scanString(start)
	case ch == '[':
		return tz.scanQuotedIdent(start)
	case ch == ':' || ch == '@':
		tz.advance()
		if !isIdentStart(tz.cur()) {
			return Token{}, NewPositionedErr("expected parameter name", start)
		}
		tok := tz.scanIdent(tz.pos)
		return Token{Kind: TokenPlaceholder, Val: tok.Val, Pos: start}, nil
	}
	return tz.scanSymbol(start)
}

func (tz *Tokenizer) skipBlank() {
	for {
		ch := tz.cur()
		if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			return
		}
		tz.advance()
	}
}

// skipComment consumes one comment if the scanner sits on one and records it
// on the side stream. Reports whether anything was consumed.
func (tz *Tokenizer) skipComment() bool {
	start := tz.pos
	if tz.cur() == '-' && tz.peekByte(1) == '-' {
		for tz.cur() != '\n' && tz.cur() != eofChar {
			tz.advance()
		}
		tz.Comments = append(tz.Comments, Comment{Text: tz.sql[start:tz.pos], Pos: start})
		return true
	}
	if tz.cur() == '/' && tz.peekByte(1) == '*' {
		tz.advance()
		tz.advance()
		for {
			if tz.cur() == eofChar {
				break
			}
			if tz.cur() == '*' && tz.peekByte(1) == '/' {
				tz.advance()
				tz.advance()
				break
			}
			tz.advance()
		}
		tz.Comments = append(tz.Comments, Comment{Text: tz.sql[start:tz.pos], Pos: start})
		return true
	}
	return false
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func (tz *Tokenizer) scanIdent(start int) Token {
	for isIdentPart(tz.cur()) {
		tz.advance()
	}
	text := tz.sql[start:tz.pos]
	upper := strings.ToUpper(text)
	if keywords[upper] {
		return Token{Kind: TokenKeyword, Val: upper, Pos: start}
	}
	return Token{Kind: TokenIdent, Val: text, Pos: start}
}

// scanQuotedIdent handles [bracketed] identifiers.
func (tz *Tokenizer) scanQuotedIdent(start int) (Token, error) {
	tz.advance() // consume '['
	identStart := tz.pos
	for tz.cur() != ']' {
		if tz.cur() == eofChar {
			return Token{}, NewPositionedErr("unterminated quoted identifier", start)
		}
		tz.advance()
	}
	text := tz.sql[identStart:tz.pos]
	tz.advance() // consume ']'
	return Token{Kind: TokenIdent, Val: text, Pos: start}, nil
}

func (tz *Tokenizer) scanNumber(start int) (Token, error) {
	seenDot := false
	for {
		ch := tz.cur()
		if unicode.IsDigit(ch) {
			tz.advance()
			continue
		}
		if ch == '.' && !seenDot && tz.pos+1 < len(tz.sql) && unicode.IsDigit(rune(tz.sql[tz.pos+1])) {
			seenDot = true
			tz.advance()
			continue
		}
		break
	}
	if isIdentStart(tz.cur()) {
		return Token{}, NewPositionedErr("malformed number", start)
	}
	return Token{Kind: TokenNumber, Val: tz.sql[start:tz.pos], Pos: start}, nil
}

func (tz *Tokenizer) scanString(start int) (Token, error) {
	tz.advance() // consume opening quote
	var sb strings.Builder
	for {
		ch := tz.cur()
		if ch == eofChar {
			return Token{}, NewPositionedErr("unterminated string literal", start)
		}
		if ch == '\'' {
			if tz.peekByte(1) == '\'' {
				sb.WriteByte('\'')
				tz.advance()
				tz.advance()
				continue
			}
			tz.advance()
			break
		}
		sb.WriteRune(ch)
		tz.advance()
	}
	return Token{Kind: TokenString, Val: sb.String(), Pos: start}, nil
}

func (tz *Tokenizer) scanSymbol(start int) (Token, error) {
	ch := tz.cur()
	tz.advance()
	switch ch {
	case ',', '(', ')', '.', ';', '+', '-', '*', '/', '%', '=':
		return Token{Kind: TokenSymbol, Val: string(ch), Pos: start}, nil
	case '<':
		switch tz.cur() {
		case '=':
			tz.advance()
			return Token{Kind: TokenSymbol, Val: "<=", Pos: start}, nil
		case '>':
			tz.advance()
			return Token{Kind: TokenSymbol, Val: "<>", Pos: start}, nil
		}
		return Token{Kind: TokenSymbol, Val: "<", Pos: start}, nil
	case '>':
		if tz.cur() == '=' {
			tz.advance()
			return Token{Kind: TokenSymbol, Val: ">=", Pos: start}, nil
		}
		return Token{Kind: TokenSymbol, Val: ">", Pos: start}, nil
	case '!':
		if tz.cur() == '=' {
			tz.advance()
			return Token{Kind: TokenSymbol, Val: "<>", Pos: start}, nil
		}
	}
	return Token{}, NewPositionedErr("unexpected character "+string(ch), start)
}
