package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Memory map of the machine. Every cell is a signed 16-bit word.
const (
	SP           = 0
	LCL          = 1
	ARG          = 2
	THISPtr      = 3
	THATPtr      = 4
	TempBase     = 5
	StaticBase   = 16
	StaticEnd    = 256
	StackBase    = 256
	HeapBase     = 2048
	ScreenBase   = 16384
	ScreenWords  = 8192
	KeyboardAddr = 24576
	MemorySize   = 32768
)

var (
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrUnknownFunction = errors.New("unknown function")
	ErrDivideByZero    = errors.New("division by zero")
	ErrHeapExhausted   = errors.New("heap exhausted")
	ErrSegfault        = errors.New("address out of range")
)

// instr is a loaded command together with what it needs at run time.
type instr struct {
	Command
	fn     string // enclosing function
	static int    // base address of the unit's static segment
	target int    // resolved branch target for goto / if-goto
}

type heapBlock struct {
	addr, size int
}

// Machine interprets stack-machine commands directly. Functions that are
// not loaded are looked up in the built-in OS library.
type Machine struct {
	RAM [MemorySize]int16

	// Output receives characters printed through the Output library.
	// If nil, os.Stdout is used.
	Output io.Writer

	// MaxSteps bounds the number of commands a run may execute; 0 means
	// no limit.
	MaxSteps int
	Steps    int
	Halted   bool

	program    []instr
	functions  map[string]int
	units      map[string]bool
	nextStatic int

	pc     int
	result int16

	heapNext int
	free     []heapBlock
	color    bool // true draws black
}

func NewMachine() *Machine {
	return &Machine{
		functions:  make(map[string]int),
		units:      make(map[string]bool),
		nextStatic: StaticBase,
	}
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

// LoadSource parses src and loads it as unit.
func (m *Machine) LoadSource(unit, src string) error {
	cmds, err := Parse(src)
	if err != nil {
		return fmt.Errorf("%s: %w", unit, err)
	}
	return m.Load(unit, cmds)
}

// Load validates cmds and appends them to the program. Each unit gets its
// own static segment.
func (m *Machine) Load(unit string, cmds []Command) error {
	if m.units[unit] {
		return fmt.Errorf("unit %s already loaded", unit)
	}
	if err := Validate(cmds); err != nil {
		return fmt.Errorf("%s: %w", unit, err)
	}
	if len(m.program)+len(cmds) > MemorySize-1 {
		return fmt.Errorf("%s: program too large", unit)
	}

	statics := 0
	for _, c := range cmds {
		if c.Segment == STATIC && (c.Type == C_PUSH || c.Type == C_POP) && c.Index+1 > statics {
			statics = c.Index + 1
		}
	}
	if m.nextStatic+statics > StaticEnd {
		return fmt.Errorf("%s: static segment exhausted", unit)
	}

	base := len(m.program)
	labels := make(map[string]map[string]int)
	fn := ""
	for i, c := range cmds {
		if c.Type == C_FUNCTION {
			if _, exists := m.functions[c.Name]; exists {
				return fmt.Errorf("%s: function %s already loaded", unit, c.Name)
			}
			fn = c.Name
			labels[fn] = make(map[string]int)
		}
		if c.Type == C_LABEL {
			labels[fn][c.Name] = base + i
		}
	}

	fn = ""
	for i, c := range cmds {
		if c.Type == C_FUNCTION {
			fn = c.Name
			m.functions[fn] = base + i
		}
		in := instr{Command: c, fn: fn, static: m.nextStatic}
		if c.Type == C_GOTO || c.Type == C_IF {
			in.target = labels[fn][c.Name]
		}
		m.program = append(m.program, in)
	}

	m.nextStatic += statics
	m.units[unit] = true
	return nil
}

// HasFunction reports whether name is loaded or built in.
func (m *Machine) HasFunction(name string) bool {
	if _, ok := m.functions[name]; ok {
		return true
	}
	_, ok := builtins[name]
	return ok
}

// DefaultEntry returns Sys.init when it is loaded, Main.main otherwise.
func (m *Machine) DefaultEntry() string {
	if _, ok := m.functions["Sys.init"]; ok {
		return "Sys.init"
	}
	return "Main.main"
}

// Start resets memory and calls entry with args. The run ends when entry
// returns or Sys.halt is called.
func (m *Machine) Start(entry string, args ...int16) error {
	if _, ok := m.functions[entry]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, entry)
	}

	m.RAM = [MemorySize]int16{}
	m.RAM[SP] = StackBase
	m.RAM[LCL] = StackBase
	m.RAM[ARG] = StackBase
	m.heapNext = HeapBase
	m.free = nil
	m.color = true
	m.Steps = 0
	m.Halted = false
	m.result = 0

	for _, a := range args {
		if err := m.push(a); err != nil {
			return err
		}
	}
	return m.call(entry, len(args), -1)
}

// Run starts entry and steps until it finishes. It returns entry's result.
func (m *Machine) Run(entry string) (int16, error) {
	return m.Call(entry)
}

// Call runs fn with args to completion and returns its result.
func (m *Machine) Call(fn string, args ...int16) (int16, error) {
	if err := m.Start(fn, args...); err != nil {
		return 0, err
	}
	for !m.Halted {
		if err := m.Step(); err != nil {
			return 0, err
		}
	}
	return m.result, nil
}

// Next returns the command Step will execute and its enclosing function.
func (m *Machine) Next() (cmd Command, fn string, ok bool) {
	if m.Halted || m.pc < 0 || m.pc >= len(m.program) {
		return Command{}, "", false
	}
	in := m.program[m.pc]
	return in.Command, in.fn, true
}

// Result returns the value returned by the entry function of the last run.
func (m *Machine) Result() int16 { return m.result }

// Step executes one command.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
		return ErrStepLimit
	}
	if m.pc < 0 || m.pc >= len(m.program) {
		return fmt.Errorf("execution ran off the program at %d", m.pc)
	}
	m.Steps++

	in := &m.program[m.pc]
	m.pc++

	switch in.Type {
	case C_ARITHMETIC:
		return m.arithmetic(in.Op)

	case C_PUSH:
		if in.Segment == CONSTANT {
			return m.push(int16(in.Index))
		}
		addr, err := m.address(in)
		if err != nil {
			return err
		}
		return m.push(m.RAM[addr])

	case C_POP:
		addr, err := m.address(in)
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.RAM[addr] = v

	case C_LABEL:
		// No operation.

	case C_GOTO:
		m.pc = in.target

	case C_IF:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if v != 0 {
			m.pc = in.target
		}

	case C_FUNCTION:
		for i := 0; i < in.N; i++ {
			if err := m.push(0); err != nil {
				return err
			}
		}

	case C_CALL:
		return m.call(in.Name, in.N, m.pc)

	case C_RETURN:
		return m.ret()
	}
	return nil
}

func (m *Machine) address(in *instr) (int, error) {
	var addr int
	switch in.Segment {
	case LOCAL:
		addr = int(m.RAM[LCL]) + in.Index
	case ARGUMENT:
		addr = int(m.RAM[ARG]) + in.Index
	case THIS:
		addr = int(m.RAM[THISPtr]) + in.Index
	case THAT:
		addr = int(m.RAM[THATPtr]) + in.Index
	case POINTER:
		addr = THISPtr + in.Index
	case TEMP:
		addr = TempBase + in.Index
	case STATIC:
		addr = in.static + in.Index
	default:
		return 0, fmt.Errorf("no address for segment %s", in.Segment)
	}
	if addr < 0 || addr >= MemorySize {
		return 0, fmt.Errorf("%w: %s %d resolves to %d in %s", ErrSegfault, in.Segment, in.Index, addr, in.fn)
	}
	return addr, nil
}

func (m *Machine) push(v int16) error {
	sp := int(m.RAM[SP])
	if sp < StackBase || sp >= HeapBase {
		return ErrStackOverflow
	}
	m.RAM[sp] = v
	m.RAM[SP]++
	return nil
}

func (m *Machine) pop() (int16, error) {
	sp := int(m.RAM[SP])
	if sp <= StackBase || sp > HeapBase {
		return 0, ErrStackUnderflow
	}
	m.RAM[SP]--
	return m.RAM[sp-1], nil
}

func boolWord(b bool) int16 {
	if b {
		return -1
	}
	return 0
}

func (m *Machine) arithmetic(op Op) error {
	if op == NEG || op == NOT {
		v, err := m.pop()
		if err != nil {
			return err
		}
		if op == NEG {
			return m.push(-v)
		}
		return m.push(^v)
	}

	y, err := m.pop()
	if err != nil {
		return err
	}
	x, err := m.pop()
	if err != nil {
		return err
	}

	var r int16
	switch op {
	case ADD:
		r = x + y
	case SUB:
		r = x - y
	case EQ:
		r = boolWord(x == y)
	case GT:
		r = boolWord(x > y)
	case LT:
		r = boolWord(x < y)
	case AND:
		r = x & y
	case OR:
		r = x | y
	default:
		return fmt.Errorf("unknown arithmetic command %s", op)
	}
	return m.push(r)
}

// call transfers control to name. ret is the command index to resume at,
// or -1 for the entry call.
func (m *Machine) call(name string, nArgs int, ret int) error {
	if target, ok := m.functions[name]; ok {
		for _, v := range []int16{int16(ret), m.RAM[LCL], m.RAM[ARG], m.RAM[THISPtr], m.RAM[THATPtr]} {
			if err := m.push(v); err != nil {
				return err
			}
		}
		m.RAM[ARG] = m.RAM[SP] - int16(nArgs) - 5
		m.RAM[LCL] = m.RAM[SP]
		m.pc = target
		return nil
	}

	b, ok := builtins[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if nArgs != b.nArgs {
		return fmt.Errorf("%s expects %d arguments, called with %d", name, b.nArgs, nArgs)
	}
	args := make([]int16, nArgs)
	for i := nArgs - 1; i >= 0; i-- {
		v, err := m.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	v, err := b.fn(m, args)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return m.push(v)
}

func (m *Machine) ret() error {
	frame := int(m.RAM[LCL])
	if frame-5 < StackBase {
		return ErrStackUnderflow
	}
	retAddr := m.RAM[frame-5]

	v, err := m.pop()
	if err != nil {
		return err
	}
	arg := int(m.RAM[ARG])
	if arg < StackBase || arg >= HeapBase {
		return ErrStackUnderflow
	}
	m.RAM[arg] = v
	m.RAM[SP] = int16(arg + 1)

	m.RAM[THATPtr] = m.RAM[frame-1]
	m.RAM[THISPtr] = m.RAM[frame-2]
	m.RAM[ARG] = m.RAM[frame-3]
	m.RAM[LCL] = m.RAM[frame-4]

	if retAddr < 0 {
		m.Halted = true
		m.result = v
		return nil
	}
	m.pc = int(retAddr)
	return nil
}

// Peek reads a memory word.
func (m *Machine) Peek(addr int) (int16, error) {
	if addr < 0 || addr >= MemorySize {
		return 0, fmt.Errorf("%w: %d", ErrSegfault, addr)
	}
	return m.RAM[addr], nil
}

// Poke writes a memory word.
func (m *Machine) Poke(addr int, v int16) error {
	if addr < 0 || addr >= MemorySize {
		return fmt.Errorf("%w: %d", ErrSegfault, addr)
	}
	m.RAM[addr] = v
	return nil
}

// SetKey stores the code of the key currently held down, 0 for none.
func (m *Machine) SetKey(code int16) {
	m.RAM[KeyboardAddr] = code
}
