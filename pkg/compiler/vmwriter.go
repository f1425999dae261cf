package compiler

import (
	"bufio"
	"fmt"
	"io"

	"gojack/pkg/vm"
)

// VMWriter serializes stack-machine commands, one per line. It performs
// no validation. The first write error is kept and returned by Close.
type VMWriter struct {
	w   *bufio.Writer
	err error
}

func NewVMWriter(w io.Writer) *VMWriter {
	return &VMWriter{w: bufio.NewWriter(w)}
}

func (v *VMWriter) line(format string, args ...any) {
	if v.err != nil {
		return
	}
	_, v.err = fmt.Fprintf(v.w, format+"\n", args...)
}

func (v *VMWriter) WritePush(seg vm.Segment, index int) {
	v.line("push %s %d", seg, index)
}

func (v *VMWriter) WritePop(seg vm.Segment, index int) {
	v.line("pop %s %d", seg, index)
}

func (v *VMWriter) WriteArithmetic(op vm.Op) {
	v.line("%s", op)
}

func (v *VMWriter) WriteLabel(label string) {
	v.line("label %s", label)
}

func (v *VMWriter) WriteGoto(label string) {
	v.line("goto %s", label)
}

func (v *VMWriter) WriteIf(label string) {
	v.line("if-goto %s", label)
}

func (v *VMWriter) WriteCall(name string, nArgs int) {
	v.line("call %s %d", name, nArgs)
}

func (v *VMWriter) WriteFunction(name string, nLocals int) {
	v.line("function %s %d", name, nLocals)
}

func (v *VMWriter) WriteReturn() {
	v.line("return")
}

// Close flushes buffered output and reports the first error seen.
func (v *VMWriter) Close() error {
	if v.err != nil {
		return v.err
	}
	v.err = v.w.Flush()
	return v.err
}
