package compiler

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteTokensXML writes the token stream of src as a <tokens> document, one
// element per token. Symbols use their markup-safe form. Nothing is written
// if src fails to tokenize.
func WriteTokensXML(w io.Writer, src string) error {
	tokens, err := Tokens(src)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "<tokens>")
	for _, tok := range tokens {
		fmt.Fprintf(bw, "<%s> %s </%s>\n", tok.Type, xmlValue(tok), tok.Type)
	}
	fmt.Fprintln(bw, "</tokens>")
	return bw.Flush()
}

func xmlValue(tok Token) string {
	if tok.Type == SYMBOL {
		return escapeSymbol(tok.Lexeme)
	}
	return tok.Lexeme
}

// WriteParseTreeXML compiles src and writes its parse tree: one element per
// grammar production, with every token as a leaf in the form used by
// WriteTokensXML. Nothing is written if src fails to compile.
func WriteParseTreeXML(w io.Writer, src string) error {
	tree := &treeWriter{}
	e := NewEngine(NewTokenizer(src), NewVMWriter(io.Discard))
	e.tree = tree
	if err := e.CompileClass(); err != nil {
		return err
	}
	_, err := io.WriteString(w, tree.sb.String())
	return err
}

// treeWriter accumulates indented parse tree markup. A nil *treeWriter
// discards everything.
type treeWriter struct {
	sb    strings.Builder
	depth int
}

func (x *treeWriter) indent() {
	x.sb.WriteString(strings.Repeat("  ", x.depth))
}

func (x *treeWriter) open(name string) {
	if x == nil {
		return
	}
	x.indent()
	fmt.Fprintf(&x.sb, "<%s>\n", name)
	x.depth++
}

func (x *treeWriter) close(name string) {
	if x == nil {
		return
	}
	x.depth--
	x.indent()
	fmt.Fprintf(&x.sb, "</%s>\n", name)
}

func (x *treeWriter) terminal(tok Token) {
	if x == nil {
		return
	}
	x.indent()
	fmt.Fprintf(&x.sb, "<%s> %s </%s>\n", tok.Type, xmlValue(tok), tok.Type)
}
