package vm

import (
	"reflect"
	"strings"
	"testing"
)

func TestSegmentAndOpNames(t *testing.T) {
	for i, name := range segmentNames {
		seg, ok := ParseSegment(name)
		if !ok || seg != Segment(i) || seg.String() != name {
			t.Errorf("ParseSegment(%q) = %v, %v", name, seg, ok)
		}
	}
	for i, name := range opNames {
		op, ok := ParseOp(name)
		if !ok || op != Op(i) || op.String() != name {
			t.Errorf("ParseOp(%q) = %v, %v", name, op, ok)
		}
	}
	if _, ok := ParseSegment("heap"); ok {
		t.Error("ParseSegment accepted an unknown segment")
	}
	if _, ok := ParseOp("mul"); ok {
		t.Error("ParseOp accepted an unknown op")
	}
}

func TestParse(t *testing.T) {
	src := `// header comment
function Main.main 2
  push constant 7   // seven
  pop local 1

  label LOOP
  if-goto LOOP
  call Math.multiply 2
  not
  return
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []Command{
		{Type: C_FUNCTION, Name: "Main.main", N: 2, Line: 2},
		{Type: C_PUSH, Segment: CONSTANT, Index: 7, Line: 3},
		{Type: C_POP, Segment: LOCAL, Index: 1, Line: 4},
		{Type: C_LABEL, Name: "LOOP", Line: 6},
		{Type: C_IF, Name: "LOOP", Line: 7},
		{Type: C_CALL, Name: "Math.multiply", N: 2, Line: 8},
		{Type: C_ARITHMETIC, Op: NOT, Line: 9},
		{Type: C_RETURN, Line: 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestCommandStringRoundTrip(t *testing.T) {
	lines := []string{
		"function Foo.bar 3",
		"push argument 0",
		"pop pointer 1",
		"label IF_ELSE0",
		"goto WHILE_EXP1",
		"if-goto IF_END0",
		"call String.appendChar 2",
		"neg",
		"return",
	}
	cmds, err := Parse(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for i, c := range cmds {
		if c.String() != lines[i] {
			t.Errorf("String() = %q, want %q", c.String(), lines[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown command", "jump X", "unknown command on line 1"},
		{"bad segment", "push heap 1", "invalid segment 'heap'"},
		{"missing index", "push local", "expects 2 operands"},
		{"bad index", "push local x", "invalid number 'x'"},
		{"index too large", "push constant 40000", "invalid number '40000'"},
		{"negative index", "push constant -1", "invalid number '-1'"},
		{"arith operand", "add 1", "expects 0 operands"},
		{"bad label", "label 1abc", "invalid label '1abc'"},
		{"return operand", "return 0", "return expects 0 operands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("expected error for %q", tt.src)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"ok", "function A.f 0\nlabel L\ngoto L\npush constant 0\nreturn", ""},
		{"same label in two functions", "function A.f 0\nlabel L\nreturn\nfunction A.g 0\nlabel L\nreturn", ""},
		{"outside function", "push constant 1", "outside of a function"},
		{"pop constant", "function A.f 0\npop constant 0", "cannot pop to constant"},
		{"pointer range", "function A.f 0\npush pointer 2", "pointer index 2"},
		{"temp range", "function A.f 0\npop temp 8", "temp index 8"},
		{"static range", "function A.f 0\npush static 240", "static index 240"},
		{"duplicate label", "function A.f 0\nlabel L\nlabel L", "duplicate label 'L'"},
		{"undefined label", "function A.f 0\nif-goto NOWHERE", "undefined label 'NOWHERE'"},
		{"label in other function", "function A.f 0\nlabel L\nfunction A.g 0\ngoto L", "undefined label 'L' in A.g"},
		{"duplicate function", "function A.f 0\nreturn\nfunction A.f 0\nreturn", "duplicate function 'A.f'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			err = Validate(cmds)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
