package compiler

import (
	"strconv"
	"strings"
)

// maxInt is the largest integer constant the language admits.
const maxInt = 32767

// Tokenizer turns source text into tokens one Advance at a time.
// Whitespace and both comment styles are skipped between tokens.
type Tokenizer struct {
	src   []rune
	pos   int // index of the next rune to consume
	line  int // current 1-based source line
	lines []string

	cur Token
	err error // sticky failure found while skipping trivia
}

// NewTokenizer prepares src for scanning. No token is current until the
// first call to Advance.
func NewTokenizer(src string) *Tokenizer {
	t := &Tokenizer{src: []rune(src), line: 1, lines: strings.Split(src, "\n")}
	t.err = t.skipTrivia()
	return t
}

// HasMoreTokens reports whether Advance can make progress. A pending
// lexical error counts as remaining input so that Advance reports it.
func (t *Tokenizer) HasMoreTokens() bool {
	return t.err != nil || t.pos < len(t.src)
}

// Advance makes the next token current.
func (t *Tokenizer) Advance() error {
	if t.err != nil {
		return t.err
	}
	if t.pos >= len(t.src) {
		return t.errorf(t.line, "no more tokens")
	}
	tok, err := t.scan()
	if err != nil {
		t.err = err
		return err
	}
	t.cur = tok
	t.err = t.skipTrivia()
	return nil
}

// Current returns the current token.
func (t *Tokenizer) Current() Token { return t.cur }

func (t *Tokenizer) TokenType() TokenType { return t.cur.Type }

// KeyWord returns the current keyword, or NO_KEYWORD for other tokens.
func (t *Tokenizer) KeyWord() Keyword { return t.cur.Keyword }

// Symbol returns the current symbol in its markup-safe form.
func (t *Tokenizer) Symbol() string {
	if t.cur.Type != SYMBOL {
		return ""
	}
	return escapeSymbol(t.cur.Lexeme)
}

func (t *Tokenizer) Identifier() string {
	if t.cur.Type != IDENTIFIER {
		return ""
	}
	return t.cur.Lexeme
}

func (t *Tokenizer) IntVal() int {
	if t.cur.Type != INT_CONST {
		return 0
	}
	n, _ := strconv.Atoi(t.cur.Lexeme)
	return n
}

// StringVal returns the current string constant without its quotes.
func (t *Tokenizer) StringVal() string {
	if t.cur.Type != STRING_CONST {
		return ""
	}
	return t.cur.Lexeme
}

// Line returns the line of the current token.
func (t *Tokenizer) Line() int { return t.cur.Line }

func (t *Tokenizer) errorf(line int, format string, args ...any) error {
	return sourceError(ErrLexical, t.lines, line, format, args...)
}

func (t *Tokenizer) peek() rune {
	if t.pos >= len(t.src) {
		return 0
	}
	return t.src[t.pos]
}

func (t *Tokenizer) peek2() rune {
	if t.pos+1 >= len(t.src) {
		return 0
	}
	return t.src[t.pos+1]
}

func (t *Tokenizer) advance() rune {
	if t.pos >= len(t.src) {
		return 0
	}
	r := t.src[t.pos]
	t.pos++
	if r == '\n' {
		t.line++
	}
	return r
}

// skipTrivia discards whitespace, "//" comments and "/* */" comments up to
// the next token or end of input.
func (t *Tokenizer) skipTrivia() error {
	for t.pos < len(t.src) {
		switch {
		case isSpace(t.peek()):
			t.advance()
		case t.peek() == '/' && t.peek2() == '/':
			for t.pos < len(t.src) && t.peek() != '\n' {
				t.advance()
			}
		case t.peek() == '/' && t.peek2() == '*':
			startLine := t.line
			t.advance()
			t.advance()
			closed := false
			for t.pos < len(t.src) {
				if t.peek() == '*' && t.peek2() == '/' {
					t.advance()
					t.advance()
					closed = true
					break
				}
				t.advance()
			}
			if !closed {
				return t.errorf(startLine, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

// scan reads one token. Categories are tried in fixed priority: a maximal
// word is a keyword before it is an identifier, then integers, strings and
// symbols.
func (t *Tokenizer) scan() (Token, error) {
	ch := t.peek()
	line := t.line

	switch {
	case isLetter(ch) || ch == '_':
		return t.scanWord(), nil
	case isDigit(ch):
		return t.scanInt()
	case ch == '"':
		return t.scanString()
	case strings.ContainsRune(symbols, ch):
		t.advance()
		return Token{Type: SYMBOL, Lexeme: string(ch), Line: line}, nil
	}
	return Token{}, t.errorf(line, "unexpected character %q", ch)
}

func (t *Tokenizer) scanWord() Token {
	line := t.line
	start := t.pos
	for t.pos < len(t.src) {
		r := t.peek()
		if !isLetter(r) && !isDigit(r) && r != '_' {
			break
		}
		t.advance()
	}
	lexeme := string(t.src[start:t.pos])
	if kw, ok := keywords[lexeme]; ok {
		return Token{Type: KEYWORD, Lexeme: lexeme, Keyword: kw, Line: line}
	}
	return Token{Type: IDENTIFIER, Lexeme: lexeme, Line: line}
}

func (t *Tokenizer) scanInt() (Token, error) {
	line := t.line
	start := t.pos
	for t.pos < len(t.src) && isDigit(t.peek()) {
		t.advance()
	}
	lexeme := string(t.src[start:t.pos])
	n, err := strconv.Atoi(lexeme)
	if err != nil || n > maxInt {
		return Token{}, t.errorf(line, "integer constant %s out of range 0..%d", lexeme, maxInt)
	}
	return Token{Type: INT_CONST, Lexeme: lexeme, Line: line}, nil
}

func (t *Tokenizer) scanString() (Token, error) {
	line := t.line
	t.advance() // opening "
	start := t.pos
	for t.pos < len(t.src) {
		r := t.peek()
		if r == '"' {
			val := string(t.src[start:t.pos])
			t.advance()
			return Token{Type: STRING_CONST, Lexeme: val, Line: line}, nil
		}
		if r == '\n' {
			break
		}
		if r > maxInt {
			return Token{}, t.errorf(line, "character %q in string constant out of range 0..%d", r, maxInt)
		}
		t.advance()
	}
	return Token{}, t.errorf(line, "unterminated string constant")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokens scans all of src.
func Tokens(src string) ([]Token, error) {
	t := NewTokenizer(src)
	var tokens []Token
	for t.HasMoreTokens() {
		if err := t.Advance(); err != nil {
			return tokens, err
		}
		tokens = append(tokens, t.Current())
	}
	return tokens, nil
}
