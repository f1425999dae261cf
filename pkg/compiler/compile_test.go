package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gojack/pkg/vm"
)

const squareSrc = `
/** A square on screen. */
class Square {
    field int x, y, size;

    constructor Square new(int ax, int ay, int asize) {
        let x = ax;
        let y = ay;
        let size = asize;
        do draw();
        return this;
    }

    method void dispose() {
        do Memory.deAlloc(this);
        return;
    }

    method void draw() {
        do Screen.setColor(true);
        do Screen.drawRectangle(x, y, x + size, y + size);
        return;
    }

    method void incSize() {
        if (((y + size) < 254) & ((x + size) < 510)) {
            do Screen.setColor(false);
            let size = size + 2;
            do draw();
        }
        return;
    }
}
`

func TestCompileClass(t *testing.T) {
	var scopes []string
	name, code, err := CompileClass(squareSrc, func(sub string, syms *SymbolTable) {
		scopes = append(scopes, sub+"\n"+syms.String())
	})
	if err != nil {
		t.Fatalf("CompileClass failed: %v", err)
	}
	if name != "Square" {
		t.Errorf("class name = %q", name)
	}

	wantSubs := []string{"Square.new", "Square.dispose", "Square.draw", "Square.incSize"}
	if len(scopes) != len(wantSubs) {
		t.Fatalf("callback ran %d times, want %d", len(scopes), len(wantSubs))
	}
	for i, sub := range wantSubs {
		if !strings.HasPrefix(scopes[i], sub+"\n") {
			t.Errorf("callback %d = %q, want %s", i, scopes[i], sub)
		}
	}
	if !strings.Contains(scopes[0], "asize") || strings.Contains(scopes[1], "asize") {
		t.Error("subroutine scope leaked between subroutines")
	}
	if !strings.Contains(scopes[1], "this") {
		t.Error("method scope should define this")
	}

	cmds, err := vm.Parse(code)
	if err != nil {
		t.Fatalf("generated code does not parse: %v", err)
	}
	if err := vm.Validate(cmds); err != nil {
		t.Fatalf("generated code does not validate: %v", err)
	}

	functions := 0
	for _, c := range cmds {
		if c.Type == vm.C_FUNCTION {
			functions++
		}
	}
	if functions != 4 {
		t.Errorf("got %d functions, want 4", functions)
	}
	assertContains(t, code, lines("function Square.new 0", "push constant 3", "call Memory.alloc 1", "pop pointer 0"))
	assertContains(t, code, lines("push pointer 0", "call Memory.deAlloc 1", "pop temp 0"))
}

func TestCompileTo(t *testing.T) {
	var buf bytes.Buffer
	if err := CompileTo(&buf, "class A { function void f() { return; } }"); err != nil {
		t.Fatalf("CompileTo: %v", err)
	}
	want := lines("function A.f 0", "push constant 0", "return")
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := CompileTo(&buf, "class A { function void f() { return; } function void g() { let z = 1; } }"); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("partial output written on failure:\n%s", buf.String())
	}
}

func TestCompileEmptyClass(t *testing.T) {
	name, code, err := CompileClass("class Empty { static int unused; }", nil)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Empty" || code != "" {
		t.Errorf("got %q, %q", name, code)
	}
}

func TestCompileStringCharacters(t *testing.T) {
	code := mustCompile(t, `class A { function void f() { do Output.printString("é~"); return; } }`)
	assertContains(t, code, lines("push constant 2", "call String.new 1", "push constant 233", "call String.appendChar 2", "push constant 126"))
	cmds, err := vm.Parse(code)
	if err != nil {
		t.Fatalf("generated code does not parse: %v", err)
	}
	if err := vm.Validate(cmds); err != nil {
		t.Fatalf("generated code is invalid: %v", err)
	}

	_, err = Compile("class A { function void f() { do Output.printString(\"\U0001F600\"); return; } }")
	if !errors.Is(err, ErrLexical) {
		t.Errorf("error = %v, want ErrLexical", err)
	}
}
