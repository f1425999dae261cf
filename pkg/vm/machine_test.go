package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func load(t *testing.T, units map[string]string) *Machine {
	t.Helper()
	m := NewMachine()
	m.Output = &bytes.Buffer{}
	m.MaxSteps = 100000
	for name, src := range units {
		if err := m.LoadSource(name, src); err != nil {
			t.Fatalf("LoadSource(%s): %v", name, err)
		}
	}
	return m
}

func run(t *testing.T, m *Machine, entry string, args ...int16) int16 {
	t.Helper()
	got, err := m.Call(entry, args...)
	if err != nil {
		t.Fatalf("Call(%s): %v", entry, err)
	}
	return got
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int16
	}{
		{"add", "push constant 7\npush constant 8\nadd", 15},
		{"sub", "push constant 7\npush constant 8\nsub", -1},
		{"neg", "push constant 5\nneg", -5},
		{"eq true", "push constant 3\npush constant 3\neq", -1},
		{"eq false", "push constant 3\npush constant 4\neq", 0},
		{"gt", "push constant 4\npush constant 3\ngt", -1},
		{"lt", "push constant 4\npush constant 3\nlt", 0},
		{"and", "push constant 12\npush constant 10\nand", 8},
		{"or", "push constant 12\npush constant 10\nor", 14},
		{"not", "push constant 0\nnot", -1},
		{"true is all ones", "push constant 1\nneg\nnot", 0},
		{"wraps", "push constant 32767\npush constant 1\nadd", -32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := load(t, map[string]string{"T": "function T.f 0\n" + tt.body + "\nreturn"})
			if got := run(t, m, "T.f"); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCallFrames(t *testing.T) {
	m := load(t, map[string]string{"T": `
function T.main 1
  push constant 6
  push constant 7
  call T.mul 2
  pop local 0
  push local 0
  push constant 2
  call T.sub 2
  return
function T.mul 0
  push argument 0
  push argument 1
  call Math.multiply 2
  return
function T.sub 0
  push argument 0
  push argument 1
  sub
  return
`})
	if got := run(t, m, "T.main"); got != 40 {
		t.Errorf("got %d, want 40", got)
	}
	if sp := m.RAM[SP]; sp != StackBase+1 {
		t.Errorf("SP = %d after return, want %d", sp, StackBase+1)
	}
}

func TestLoopAndBranches(t *testing.T) {
	// sum of 1..n
	m := load(t, map[string]string{"T": `
function T.sum 1
label LOOP
  push argument 0
  push constant 0
  eq
  if-goto END
  push local 0
  push argument 0
  add
  pop local 0
  push argument 0
  push constant 1
  sub
  pop argument 0
  goto LOOP
label END
  push local 0
  return
`})
	if got := run(t, m, "T.sum", 10); got != 55 {
		t.Errorf("got %d, want 55", got)
	}
}

func TestStaticsPerUnit(t *testing.T) {
	m := load(t, map[string]string{
		"A": "function A.set 0\npush argument 0\npop static 0\npush constant 0\nreturn\nfunction A.get 0\npush static 0\nreturn",
		"B": "function B.set 0\npush argument 0\npop static 0\npush constant 0\nreturn\nfunction B.get 0\npush static 0\nreturn",
	})
	if err := m.LoadSource("Main", `
function Main.main 0
  push constant 1
  call A.set 1
  pop temp 0
  push constant 2
  call B.set 1
  pop temp 0
  call A.get 0
  push constant 10
  call Math.multiply 2
  call B.get 0
  add
  return
`); err != nil {
		t.Fatal(err)
	}
	if got := run(t, m, m.DefaultEntry()); got != 12 {
		t.Errorf("got %d, want 12", got)
	}
}

func TestPointerThisThat(t *testing.T) {
	m := load(t, map[string]string{"T": `
function T.f 0
  push constant 3000
  pop pointer 0
  push constant 3010
  pop pointer 1
  push constant 11
  pop this 2
  push constant 22
  pop that 1
  push this 2
  push that 1
  add
  return
`})
	if got := run(t, m, "T.f"); got != 33 {
		t.Errorf("got %d, want 33", got)
	}
	if m.RAM[3002] != 11 || m.RAM[3011] != 22 {
		t.Errorf("RAM[3002]=%d RAM[3011]=%d", m.RAM[3002], m.RAM[3011])
	}
}

func TestMachineErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown function", "function T.f 0\ncall Nope.nothing 0\nreturn", ErrUnknownFunction},
		{"divide by zero", "function T.f 0\npush constant 1\npush constant 0\ncall Math.divide 2\nreturn", ErrDivideByZero},
		{"infinite loop", "function T.f 0\nlabel L\ngoto L", ErrStepLimit},
		{"runaway recursion", "function T.f 0\ncall T.f 0\nreturn", ErrStackOverflow},
		{"heap exhausted", "function T.f 0\nlabel L\npush constant 10000\ncall Memory.alloc 1\npop temp 0\ngoto L", ErrHeapExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := load(t, map[string]string{"T": tt.src})
			_, err := m.Call("T.f")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	m := NewMachine()
	if err := m.LoadSource("A", "function A.f 0\nreturn"); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadSource("A", "function A.g 0\nreturn"); err == nil {
		t.Error("loading a unit twice should fail")
	}
	if err := m.LoadSource("B", "function A.f 0\nreturn"); err == nil {
		t.Error("loading a function twice should fail")
	}
	if err := m.LoadSource("C", "function C.f 0\ngoto X"); err == nil {
		t.Error("loading an invalid unit should fail")
	}
	if _, err := m.Call("Nope.main"); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("error = %v, want ErrUnknownFunction", err)
	}
}

func TestStringsAndOutput(t *testing.T) {
	m := load(t, map[string]string{"T": `
function T.f 1
  push constant 3
  call String.new 1
  push constant 72
  call String.appendChar 2
  push constant 105
  call String.appendChar 2
  pop local 0
  push local 0
  call Output.printString 1
  pop temp 0
  push constant 45
  neg
  call Output.printInt 1
  pop temp 0
  call Output.println 0
  pop temp 0
  push local 0
  call String.length 1
  return
`})
	if got := run(t, m, "T.f"); got != 2 {
		t.Errorf("length = %d, want 2", got)
	}
	if out := m.Output.(*bytes.Buffer).String(); out != "Hi-45\n" {
		t.Errorf("output = %q", out)
	}
}

func TestStringFull(t *testing.T) {
	m := load(t, map[string]string{"T": `
function T.f 0
  push constant 1
  call String.new 1
  push constant 65
  call String.appendChar 2
  push constant 66
  call String.appendChar 2
  return
`})
	_, err := m.Call("T.f")
	if err == nil || !strings.Contains(err.Error(), "string full") {
		t.Errorf("error = %v, want string full", err)
	}
}

func TestMemoryReuse(t *testing.T) {
	m := load(t, map[string]string{"T": `
function T.f 1
  push constant 5
  call Array.new 1
  pop local 0
  push local 0
  call Array.dispose 1
  pop temp 0
  push constant 4
  call Memory.alloc 1
  push local 0
  eq
  return
`})
	if got := run(t, m, "T.f"); got != -1 {
		t.Errorf("freed block was not reused")
	}
}

func TestMathBuiltins(t *testing.T) {
	tests := []struct {
		fn   string
		args []int16
		want int16
	}{
		{"Math.multiply", []int16{-6, 7}, -42},
		{"Math.divide", []int16{-7, 2}, -3},
		{"Math.abs", []int16{-9}, 9},
		{"Math.min", []int16{4, -2}, -2},
		{"Math.max", []int16{4, -2}, 4},
		{"Math.sqrt", []int16{99}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			src := "function T.f 0\n"
			for i := range tt.args {
				src += "push argument " + string(rune('0'+i)) + "\n"
			}
			src += "call " + tt.fn + " " + string(rune('0'+len(tt.args))) + "\nreturn"
			m := load(t, map[string]string{"T": src})
			if got := run(t, m, "T.f", tt.args...); got != tt.want {
				t.Errorf("%s%v = %d, want %d", tt.fn, tt.args, got, tt.want)
			}
		})
	}
}

func TestScreenAndKeyboard(t *testing.T) {
	m := load(t, map[string]string{"T": `
function T.f 0
  push constant 17
  push constant 3
  call Screen.drawPixel 2
  pop temp 0
  push constant 0
  push constant 10
  push constant 4
  push constant 10
  call Screen.drawLine 4
  pop temp 0
  call Keyboard.keyPressed 0
  return
`})
	if err := m.Start("T.f"); err != nil {
		t.Fatal(err)
	}
	m.SetKey(81)
	for !m.Halted {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.Result() != 81 {
		t.Errorf("keyPressed = %d, want 81", m.Result())
	}
	if !m.Pixel(17, 3) {
		t.Error("pixel (17,3) not set")
	}
	for x := 0; x <= 4; x++ {
		if !m.Pixel(x, 10) {
			t.Errorf("line pixel (%d,10) not set", x)
		}
	}
	if m.Pixel(5, 10) {
		t.Error("line drawn past its end")
	}

	pix := m.ScreenRGBA()
	if len(pix) != ScreenWidth*ScreenHeight*4 {
		t.Fatalf("ScreenRGBA length = %d", len(pix))
	}
	i := (3*ScreenWidth + 17) * 4
	if pix[i] != 0 || pix[i+3] != 0xff {
		t.Errorf("set pixel renders as %v", pix[i:i+4])
	}
	if pix[0] != 0xff {
		t.Errorf("clear pixel renders as %v", pix[0:4])
	}
}

func TestSysHalt(t *testing.T) {
	m := load(t, map[string]string{"T": "function T.f 0\ncall Sys.halt 0\nlabel L\ngoto L"})
	if _, err := m.Call("T.f"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !m.Halted {
		t.Error("machine not halted")
	}
}
