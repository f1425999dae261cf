package vm

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Character codes with special meaning to the Output and String libraries.
const (
	CharNewLine     = 128
	CharBackSpace   = 129
	CharDoubleQuote = 34
)

// Layout of a string object on the heap.
const (
	strMaxLen = 0
	strLen    = 1
	strChars  = 2
	strWords  = 3
)

type builtin struct {
	nArgs int
	fn    func(m *Machine, args []int16) (int16, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"Math.multiply": {2, func(_ *Machine, a []int16) (int16, error) { return a[0] * a[1], nil }},
		"Math.divide":   {2, mathDivide},
		"Math.abs":      {1, func(_ *Machine, a []int16) (int16, error) { return abs(a[0]), nil }},
		"Math.min":      {2, func(_ *Machine, a []int16) (int16, error) { return min(a[0], a[1]), nil }},
		"Math.max":      {2, func(_ *Machine, a []int16) (int16, error) { return max(a[0], a[1]), nil }},
		"Math.sqrt":     {1, mathSqrt},

		"Memory.alloc":   {1, func(m *Machine, a []int16) (int16, error) { return m.alloc(int(a[0])) }},
		"Memory.deAlloc": {1, func(m *Machine, a []int16) (int16, error) { return 0, m.deAlloc(int(a[0])) }},
		"Memory.peek":    {1, func(m *Machine, a []int16) (int16, error) { return m.Peek(int(a[0])) }},
		"Memory.poke":    {2, func(m *Machine, a []int16) (int16, error) { return 0, m.Poke(int(a[0]), a[1]) }},

		"Array.new":     {1, func(m *Machine, a []int16) (int16, error) { return m.alloc(int(a[0])) }},
		"Array.dispose": {1, func(m *Machine, a []int16) (int16, error) { return 0, m.deAlloc(int(a[0])) }},

		"String.new":           {1, stringNew},
		"String.dispose":       {1, stringDispose},
		"String.length":        {1, func(m *Machine, a []int16) (int16, error) { return m.field(a[0], strLen) }},
		"String.charAt":        {2, stringCharAt},
		"String.setCharAt":     {3, stringSetCharAt},
		"String.appendChar":    {2, stringAppendChar},
		"String.eraseLastChar": {1, stringEraseLastChar},
		"String.intValue":      {1, stringIntValue},
		"String.setInt":        {2, stringSetInt},
		"String.newLine":       {0, func(*Machine, []int16) (int16, error) { return CharNewLine, nil }},
		"String.backSpace":     {0, func(*Machine, []int16) (int16, error) { return CharBackSpace, nil }},
		"String.doubleQuote":   {0, func(*Machine, []int16) (int16, error) { return CharDoubleQuote, nil }},

		"Output.printChar":   {1, func(m *Machine, a []int16) (int16, error) { return 0, m.printChar(a[0]) }},
		"Output.printString": {1, outputPrintString},
		"Output.printInt":    {1, outputPrintInt},
		"Output.println":     {0, func(m *Machine, _ []int16) (int16, error) { return 0, m.printChar(CharNewLine) }},
		"Output.backSpace":   {0, func(m *Machine, _ []int16) (int16, error) { return 0, m.printChar(CharBackSpace) }},
		"Output.moveCursor":  {2, func(*Machine, []int16) (int16, error) { return 0, nil }},

		"Screen.clearScreen":   {0, screenClear},
		"Screen.setColor":      {1, func(m *Machine, a []int16) (int16, error) { m.color = a[0] != 0; return 0, nil }},
		"Screen.drawPixel":     {2, screenDrawPixel},
		"Screen.drawLine":      {4, screenDrawLine},
		"Screen.drawRectangle": {4, screenDrawRectangle},
		"Screen.drawCircle":    {3, screenDrawCircle},

		"Keyboard.keyPressed": {0, func(m *Machine, _ []int16) (int16, error) { return m.RAM[KeyboardAddr], nil }},

		"Sys.halt":  {0, func(m *Machine, _ []int16) (int16, error) { m.Halted = true; return 0, nil }},
		"Sys.error": {1, func(_ *Machine, a []int16) (int16, error) { return 0, fmt.Errorf("error code %d", a[0]) }},
		"Sys.wait":  {1, sysWait},
	}
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}

func mathDivide(_ *Machine, a []int16) (int16, error) {
	if a[1] == 0 {
		return 0, ErrDivideByZero
	}
	return a[0] / a[1], nil
}

func mathSqrt(_ *Machine, a []int16) (int16, error) {
	x := int(a[0])
	if x < 0 {
		return 0, fmt.Errorf("square root of negative number %d", x)
	}
	r := 0
	for (r+1)*(r+1) <= x {
		r++
	}
	return int16(r), nil
}

func sysWait(_ *Machine, a []int16) (int16, error) {
	if a[0] < 0 {
		return 0, fmt.Errorf("negative duration %d", a[0])
	}
	return 0, nil
}

// alloc reserves size words on the heap. Each block is preceded by a
// header word holding its size; freed blocks are reused first fit.
func (m *Machine) alloc(size int) (int16, error) {
	if size <= 0 {
		return 0, fmt.Errorf("allocation size must be positive, got %d", size)
	}
	for i, b := range m.free {
		if b.size >= size {
			m.free = append(m.free[:i], m.free[i+1:]...)
			return int16(b.addr), nil
		}
	}
	if m.heapNext+size+1 > ScreenBase {
		return 0, fmt.Errorf("%w: %d words requested", ErrHeapExhausted, size)
	}
	m.RAM[m.heapNext] = int16(size)
	addr := m.heapNext + 1
	m.heapNext += size + 1
	return int16(addr), nil
}

func (m *Machine) deAlloc(addr int) error {
	if addr <= HeapBase || addr >= m.heapNext {
		return fmt.Errorf("%w: %d is not a heap block", ErrSegfault, addr)
	}
	m.free = append(m.free, heapBlock{addr: addr, size: int(m.RAM[addr-1])})
	return nil
}

// field reads word off of the object at obj.
func (m *Machine) field(obj int16, off int) (int16, error) {
	return m.Peek(int(obj) + off)
}

func (m *Machine) setField(obj int16, off int, v int16) error {
	return m.Poke(int(obj)+off, v)
}

type stringObj struct {
	addr          int16
	max, n, chars int16
}

func (m *Machine) loadString(s int16) (stringObj, error) {
	obj := stringObj{addr: s}
	var err error
	if obj.max, err = m.field(s, strMaxLen); err != nil {
		return obj, err
	}
	if obj.n, err = m.field(s, strLen); err != nil {
		return obj, err
	}
	obj.chars, err = m.field(s, strChars)
	return obj, err
}

// GoString returns the characters of the string object at addr.
func (m *Machine) GoString(addr int16) (string, error) {
	s, err := m.loadString(addr)
	if err != nil {
		return "", err
	}
	rs := make([]rune, 0, s.n)
	for i := int16(0); i < s.n; i++ {
		c, err := m.Peek(int(s.chars) + int(i))
		if err != nil {
			return "", err
		}
		rs = append(rs, rune(c))
	}
	return string(rs), nil
}

func stringNew(m *Machine, a []int16) (int16, error) {
	capacity := a[0]
	if capacity < 0 {
		return 0, fmt.Errorf("negative string length %d", capacity)
	}
	s, err := m.alloc(strWords)
	if err != nil {
		return 0, err
	}
	var chars int16
	if capacity > 0 {
		if chars, err = m.alloc(int(capacity)); err != nil {
			return 0, err
		}
	}
	m.RAM[s+strMaxLen] = capacity
	m.RAM[s+strLen] = 0
	m.RAM[s+strChars] = chars
	return s, nil
}

func stringDispose(m *Machine, a []int16) (int16, error) {
	s, err := m.loadString(a[0])
	if err != nil {
		return 0, err
	}
	if s.max > 0 {
		if err := m.deAlloc(int(s.chars)); err != nil {
			return 0, err
		}
	}
	return 0, m.deAlloc(int(s.addr))
}

func stringCharAt(m *Machine, a []int16) (int16, error) {
	s, err := m.loadString(a[0])
	if err != nil {
		return 0, err
	}
	if a[1] < 0 || a[1] >= s.n {
		return 0, fmt.Errorf("index %d out of range [0,%d)", a[1], s.n)
	}
	return m.Peek(int(s.chars) + int(a[1]))
}

func stringSetCharAt(m *Machine, a []int16) (int16, error) {
	s, err := m.loadString(a[0])
	if err != nil {
		return 0, err
	}
	if a[1] < 0 || a[1] >= s.n {
		return 0, fmt.Errorf("index %d out of range [0,%d)", a[1], s.n)
	}
	return 0, m.Poke(int(s.chars)+int(a[1]), a[2])
}

func stringAppendChar(m *Machine, a []int16) (int16, error) {
	s, err := m.loadString(a[0])
	if err != nil {
		return 0, err
	}
	if s.n >= s.max {
		return 0, fmt.Errorf("string full at %d characters", s.max)
	}
	if err := m.Poke(int(s.chars)+int(s.n), a[1]); err != nil {
		return 0, err
	}
	return s.addr, m.setField(s.addr, strLen, s.n+1)
}

func stringEraseLastChar(m *Machine, a []int16) (int16, error) {
	s, err := m.loadString(a[0])
	if err != nil {
		return 0, err
	}
	if s.n == 0 {
		return 0, errors.New("string is empty")
	}
	return 0, m.setField(s.addr, strLen, s.n-1)
}

// stringIntValue parses an optional minus sign followed by leading digits.
func stringIntValue(m *Machine, a []int16) (int16, error) {
	str, err := m.GoString(a[0])
	if err != nil {
		return 0, err
	}
	neg := false
	if len(str) > 0 && str[0] == '-' {
		neg = true
		str = str[1:]
	}
	var v int16
	for _, r := range str {
		if r < '0' || r > '9' {
			break
		}
		v = v*10 + int16(r-'0')
	}
	if neg {
		v = -v
	}
	return v, nil
}

func stringSetInt(m *Machine, a []int16) (int16, error) {
	s, err := m.loadString(a[0])
	if err != nil {
		return 0, err
	}
	digits := strconv.Itoa(int(a[1]))
	if len(digits) > int(s.max) {
		return 0, fmt.Errorf("%d does not fit a string of %d characters", a[1], s.max)
	}
	for i, r := range digits {
		m.RAM[int(s.chars)+i] = int16(r)
	}
	return 0, m.setField(s.addr, strLen, int16(len(digits)))
}

func (m *Machine) printChar(c int16) error {
	var out string
	switch c {
	case CharNewLine:
		out = "\n"
	case CharBackSpace:
		out = "\b"
	default:
		out = string(rune(c))
	}
	_, err := io.WriteString(m.outputSink(), out)
	return err
}

func outputPrintString(m *Machine, a []int16) (int16, error) {
	str, err := m.GoString(a[0])
	if err != nil {
		return 0, err
	}
	_, err = io.WriteString(m.outputSink(), str)
	return 0, err
}

func outputPrintInt(m *Machine, a []int16) (int16, error) {
	_, err := io.WriteString(m.outputSink(), strconv.Itoa(int(a[0])))
	return 0, err
}
