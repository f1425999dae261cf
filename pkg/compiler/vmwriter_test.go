package compiler

import (
	"errors"
	"strings"
	"testing"

	"gojack/pkg/vm"
)

func TestVMWriter(t *testing.T) {
	var sb strings.Builder
	w := NewVMWriter(&sb)
	w.WriteFunction("Main.main", 2)
	w.WritePush(vm.CONSTANT, 7)
	w.WritePop(vm.LOCAL, 0)
	w.WriteArithmetic(vm.NEG)
	w.WriteLabel("WHILE_EXP0")
	w.WriteIf("WHILE_END0")
	w.WriteGoto("WHILE_EXP0")
	w.WriteCall("Math.multiply", 2)
	w.WriteReturn()

	if sb.Len() != 0 {
		t.Errorf("output reached the destination before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := `function Main.main 2
push constant 7
pop local 0
neg
label WHILE_EXP0
if-goto WHILE_END0
goto WHILE_EXP0
call Math.multiply 2
return
`
	if sb.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", sb.String(), want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestVMWriterError(t *testing.T) {
	w := NewVMWriter(failingWriter{})
	w.WriteReturn()
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Close error = %v, want disk full", err)
	}
}
