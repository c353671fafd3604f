// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dsl

import (
	"fmt"

	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// Parser wraps a Lexer with the token-matching primitives shared by the
// wave/board/contract block grammars (spec §4.1).
type Parser struct {
	File string
	Lex  *Lexer
}

// NewParser builds a Parser over src, tagging errors with file for
// diagnostics.
func NewParser(file, src string) *Parser {
	return &Parser{File: file, Lex: NewLexer(src)}
}

func (p *Parser) fail(line, col int, reason string) error {
	return &rterr.InvalidDsl{File: p.File, Line: line, Column: col, Reason: reason}
}

func (p *Parser) wrapLexErr(err error) error {
	if le, ok := err.(*LexError); ok {
		return p.fail(le.Line, le.Col, le.Reason)
	}
	return err
}

// Peek returns the next token without consuming it.
func (p *Parser) Peek() (Token, error) {
	t, err := p.Lex.Peek()
	if err != nil {
		return Token{}, p.wrapLexErr(err)
	}
	return t, nil
}

// Next consumes and returns the next token.
func (p *Parser) Next() (Token, error) {
	t, err := p.Lex.Next()
	if err != nil {
		return Token{}, p.wrapLexErr(err)
	}
	return t, nil
}

// PeekIsEnd reports whether the next token is End.
func (p *Parser) PeekIsEnd() bool {
	t, err := p.Peek()
	return err == nil && t.Kind == End
}

// PeekIsSymbol reports whether the next token is the single-char symbol c.
func (p *Parser) PeekIsSymbol(c byte) bool {
	t, err := p.Peek()
	return err == nil && t.Kind == Symbol && len(t.Text) == 1 && t.Text[0] == c
}

// ExpectSymbol consumes the symbol c or fails.
func (p *Parser) ExpectSymbol(c byte) error {
	t, err := p.Next()
	if err != nil {
		return err
	}
	if t.Kind != Symbol || len(t.Text) != 1 || t.Text[0] != c {
		return p.fail(t.Line, t.Col, fmt.Sprintf("expected symbol '%c', got %q", c, t.Text))
	}
	return nil
}

// ExpectIdentifierAny consumes any identifier token.
func (p *Parser) ExpectIdentifierAny() (Token, error) {
	t, err := p.Next()
	if err != nil {
		return Token{}, err
	}
	if t.Kind != Identifier {
		return Token{}, p.fail(t.Line, t.Col, "expected identifier")
	}
	return t, nil
}

// ExpectIdentifier consumes an identifier token matching expected exactly.
func (p *Parser) ExpectIdentifier(expected string) error {
	t, err := p.ExpectIdentifierAny()
	if err != nil {
		return err
	}
	if t.Text != expected {
		return p.fail(t.Line, t.Col, fmt.Sprintf("expected %q, got %q", expected, t.Text))
	}
	return nil
}

// ParseScalarValue consumes an Identifier or String token and returns its text.
func (p *Parser) ParseScalarValue() (string, error) {
	t, err := p.Next()
	if err != nil {
		return "", err
	}
	if t.Kind != Identifier && t.Kind != String {
		return "", p.fail(t.Line, t.Col, "expected scalar value")
	}
	return t.Text, nil
}

// ParseAssignmentValue parses `key = value ;` where key must match exactly.
func (p *Parser) ParseAssignmentValue(key string) (string, error) {
	if err := p.ExpectIdentifier(key); err != nil {
		return "", err
	}
	if err := p.ExpectSymbol('='); err != nil {
		return "", err
	}
	v, err := p.ParseScalarValue()
	if err != nil {
		return "", err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return "", err
	}
	return v, nil
}

// Fail builds an *rterr.InvalidDsl anchored at the next token's position.
func (p *Parser) Fail(reason string) error {
	t, _ := p.Peek()
	return p.fail(t.Line, t.Col, reason)
}
