package compiler

import "fmt"

// TokenType identifies the lexical category of a token.
type TokenType int

const (
	KEYWORD      TokenType = iota // reserved word
	SYMBOL                        // single-character punctuation or operator
	IDENTIFIER                    // class / subroutine / variable name
	INT_CONST                     // decimal integer 0..32767
	STRING_CONST                  // "..." without escapes
)

// tokenNames doubles as the element names of the token XML document.
var tokenNames = [...]string{
	KEYWORD:      "keyword",
	SYMBOL:       "symbol",
	IDENTIFIER:   "identifier",
	INT_CONST:    "integerConstant",
	STRING_CONST: "stringConstant",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Keyword enumerates the reserved words of the language.
type Keyword int

const (
	NO_KEYWORD Keyword = iota
	CLASS
	CONSTRUCTOR
	FUNCTION
	METHOD
	FIELD
	STATIC
	VAR
	INT
	CHAR
	BOOLEAN
	VOID
	TRUE
	FALSE
	NULL
	THIS
	LET
	DO
	IF
	ELSE
	WHILE
	RETURN
)

var keywordNames = [...]string{
	NO_KEYWORD:  "",
	CLASS:       "class",
	CONSTRUCTOR: "constructor",
	FUNCTION:    "function",
	METHOD:      "method",
	FIELD:       "field",
	STATIC:      "static",
	VAR:         "var",
	INT:         "int",
	CHAR:        "char",
	BOOLEAN:     "boolean",
	VOID:        "void",
	TRUE:        "true",
	FALSE:       "false",
	NULL:        "null",
	THIS:        "this",
	LET:         "let",
	DO:          "do",
	IF:          "if",
	ELSE:        "else",
	WHILE:       "while",
	RETURN:      "return",
}

// keywords maps source text to its Keyword.
var keywords = func() map[string]Keyword {
	m := make(map[string]Keyword, len(keywordNames))
	for kw, name := range keywordNames {
		if name != "" {
			m[name] = Keyword(kw)
		}
	}
	return m
}()

func (kw Keyword) String() string {
	if int(kw) >= 0 && int(kw) < len(keywordNames) {
		return keywordNames[kw]
	}
	return fmt.Sprintf("Keyword(%d)", int(kw))
}

// symbols is the full set of single-character symbol tokens.
const symbols = "{}()[].,;+-*/&|<>=~"

// Token is a single lexical unit produced by the Tokenizer.
type Token struct {
	Type    TokenType
	Lexeme  string  // source text; string constants without the quotes
	Keyword Keyword // set only when Type == KEYWORD
	Line    int     // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-15s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}

// is reports whether t is the given symbol.
func (t Token) is(sym byte) bool {
	return t.Type == SYMBOL && len(t.Lexeme) == 1 && t.Lexeme[0] == sym
}

// isKeyword reports whether t is any of the given keywords.
func (t Token) isKeyword(kws ...Keyword) bool {
	if t.Type != KEYWORD {
		return false
	}
	for _, kw := range kws {
		if t.Keyword == kw {
			return true
		}
	}
	return false
}

// escapeSymbol returns the markup-safe form of a symbol lexeme.
func escapeSymbol(s string) string {
	switch s {
	case "<":
		return "&lt;"
	case ">":
		return "&gt;"
	case "\"":
		return "&quot;"
	case "&":
		return "&amp;"
	}
	return s
}
