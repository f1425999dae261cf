package compiler

import (
	"bytes"
	"io"
	"strings"
)

// CompileTo compiles one unit and writes its VM text to w. Output is
// buffered until the whole unit has compiled, so nothing reaches w when
// compilation fails.
func CompileTo(w io.Writer, src string) error {
	_, err := compileTo(w, src, nil)
	return err
}

// Compile compiles one unit to VM text.
func Compile(src string) (string, error) {
	var sb strings.Builder
	if err := CompileTo(&sb, src); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// CompileClass is like Compile but also reports the name of the compiled
// class and calls onSubroutine, if non-nil, after each subroutine.
func CompileClass(src string, onSubroutine func(name string, syms *SymbolTable)) (className, code string, err error) {
	var sb strings.Builder
	className, err = compileTo(&sb, src, onSubroutine)
	if err != nil {
		return "", "", err
	}
	return className, sb.String(), nil
}

func compileTo(w io.Writer, src string, onSubroutine func(string, *SymbolTable)) (string, error) {
	var buf bytes.Buffer
	vw := NewVMWriter(&buf)

	e := NewEngine(NewTokenizer(src), vw)
	e.OnSubroutine = onSubroutine
	if err := e.CompileClass(); err != nil {
		return "", err
	}
	if err := vw.Close(); err != nil {
		return "", err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return "", err
	}
	return e.ClassName(), nil
}
