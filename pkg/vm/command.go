package vm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Segment is a named storage region of the stack machine.
type Segment int

const (
	CONSTANT Segment = iota
	STATIC
	ARGUMENT
	LOCAL
	THIS
	THAT
	POINTER
	TEMP
)

var segmentNames = [...]string{
	CONSTANT: "constant",
	STATIC:   "static",
	ARGUMENT: "argument",
	LOCAL:    "local",
	THIS:     "this",
	THAT:     "that",
	POINTER:  "pointer",
	TEMP:     "temp",
}

func (s Segment) String() string {
	if int(s) >= 0 && int(s) < len(segmentNames) {
		return segmentNames[s]
	}
	return fmt.Sprintf("Segment(%d)", int(s))
}

// ParseSegment maps the textual segment name to its Segment.
func ParseSegment(name string) (Segment, bool) {
	for i, n := range segmentNames {
		if n == name {
			return Segment(i), true
		}
	}
	return 0, false
}

// Op is one of the bare arithmetic/logic commands.
type Op int

const (
	ADD Op = iota
	SUB
	NEG
	EQ
	GT
	LT
	AND
	OR
	NOT
)

var opNames = [...]string{
	ADD: "add",
	SUB: "sub",
	NEG: "neg",
	EQ:  "eq",
	GT:  "gt",
	LT:  "lt",
	AND: "and",
	OR:  "or",
	NOT: "not",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp maps an arithmetic mnemonic to its Op.
func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// CommandType identifies the shape of a Command.
type CommandType int

const (
	C_ARITHMETIC CommandType = iota
	C_PUSH
	C_POP
	C_LABEL
	C_GOTO
	C_IF
	C_FUNCTION
	C_CALL
	C_RETURN
)

var commandNames = [...]string{
	C_ARITHMETIC: "arithmetic",
	C_PUSH:       "push",
	C_POP:        "pop",
	C_LABEL:      "label",
	C_GOTO:       "goto",
	C_IF:         "if-goto",
	C_FUNCTION:   "function",
	C_CALL:       "call",
	C_RETURN:     "return",
}

func (ct CommandType) String() string {
	if int(ct) >= 0 && int(ct) < len(commandNames) {
		return commandNames[ct]
	}
	return fmt.Sprintf("CommandType(%d)", int(ct))
}

// Command is a single parsed stack-machine instruction.
//
// Only the fields relevant to Type are set: Op for arithmetic, Segment and
// Index for push/pop, Name for labels, branches, functions and calls, and N
// for the local count of a function or the argument count of a call.
type Command struct {
	Type    CommandType
	Op      Op
	Segment Segment
	Index   int
	Name    string
	N       int
	Line    int // 1-based line in the parsed text, 0 if built in code
}

// String renders the command in the canonical one-line text form.
func (c Command) String() string {
	switch c.Type {
	case C_ARITHMETIC:
		return c.Op.String()
	case C_PUSH, C_POP:
		return fmt.Sprintf("%s %s %d", c.Type, c.Segment, c.Index)
	case C_LABEL, C_GOTO, C_IF:
		return fmt.Sprintf("%s %s", c.Type, c.Name)
	case C_FUNCTION, C_CALL:
		return fmt.Sprintf("%s %s %d", c.Type, c.Name, c.N)
	case C_RETURN:
		return "return"
	}
	return fmt.Sprintf("<%s>", c.Type)
}

// Parse reads stack-machine text, one command per line. Blank lines and
// "//" comments are ignored.
func Parse(src string) ([]Command, error) {
	var cmds []Command
	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		cmd, ok, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}
		if ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

func parseLine(raw string, lineNo int) (Command, bool, error) {
	line := strings.TrimSpace(stripComment(raw))
	if line == "" {
		return Command{}, false, nil
	}
	fields := strings.Fields(line)
	cmd := Command{Line: lineNo}

	if op, ok := ParseOp(fields[0]); ok {
		if len(fields) != 1 {
			return cmd, false, fmt.Errorf("%s expects 0 operands on line %d", fields[0], lineNo)
		}
		cmd.Type = C_ARITHMETIC
		cmd.Op = op
		return cmd, true, nil
	}

	switch fields[0] {
	case "push", "pop":
		if len(fields) != 3 {
			return cmd, false, fmt.Errorf("%s expects 2 operands on line %d", fields[0], lineNo)
		}
		seg, ok := ParseSegment(fields[1])
		if !ok {
			return cmd, false, fmt.Errorf("invalid segment '%s' on line %d", fields[1], lineNo)
		}
		idx, err := parseIndex(fields[2], lineNo)
		if err != nil {
			return cmd, false, err
		}
		cmd.Type = C_PUSH
		if fields[0] == "pop" {
			cmd.Type = C_POP
		}
		cmd.Segment = seg
		cmd.Index = idx
	case "label", "goto", "if-goto":
		if len(fields) != 2 {
			return cmd, false, fmt.Errorf("%s expects 1 operand on line %d", fields[0], lineNo)
		}
		if !isSymbol(fields[1]) {
			return cmd, false, fmt.Errorf("invalid label '%s' on line %d", fields[1], lineNo)
		}
		switch fields[0] {
		case "label":
			cmd.Type = C_LABEL
		case "goto":
			cmd.Type = C_GOTO
		default:
			cmd.Type = C_IF
		}
		cmd.Name = fields[1]
	case "function", "call":
		if len(fields) != 3 {
			return cmd, false, fmt.Errorf("%s expects 2 operands on line %d", fields[0], lineNo)
		}
		if !isSymbol(fields[1]) {
			return cmd, false, fmt.Errorf("invalid function name '%s' on line %d", fields[1], lineNo)
		}
		n, err := parseIndex(fields[2], lineNo)
		if err != nil {
			return cmd, false, err
		}
		cmd.Type = C_CALL
		if fields[0] == "function" {
			cmd.Type = C_FUNCTION
		}
		cmd.Name = fields[1]
		cmd.N = n
	case "return":
		if len(fields) != 1 {
			return cmd, false, fmt.Errorf("return expects 0 operands on line %d", lineNo)
		}
		cmd.Type = C_RETURN
	default:
		return cmd, false, fmt.Errorf("unknown command on line %d: %s", lineNo, fields[0])
	}
	return cmd, true, nil
}

func stripComment(line string) string {
	if cut := strings.Index(line, "//"); cut >= 0 {
		return line[:cut]
	}
	return line
}

func parseIndex(token string, lineNo int) (int, error) {
	v, err := strconv.ParseUint(token, 10, 16)
	if err != nil || v > 32767 {
		return 0, fmt.Errorf("invalid number '%s' on line %d", token, lineNo)
	}
	return int(v), nil
}

// isSymbol reports whether s is a legal label or function name: letters,
// digits, '_', '.', ':' and '$', not starting with a digit.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_.:$", r) {
			return false
		}
	}
	return true
}

// Validate checks the structural rules a translator relies on: every command
// belongs to a function, segment indices are in range, labels are unique per
// function and every branch target exists in the same function.
func Validate(cmds []Command) error {
	functions, err := collectLabels(cmds)
	if err != nil {
		return err
	}

	current := ""
	for _, c := range cmds {
		switch c.Type {
		case C_FUNCTION:
			current = c.Name
			continue
		case C_PUSH, C_POP:
			if err := checkAccess(c); err != nil {
				return err
			}
		case C_GOTO, C_IF:
			if _, ok := functions[current][c.Name]; !ok {
				return fmt.Errorf("undefined label '%s' in %s on line %d", c.Name, current, c.Line)
			}
		}
	}
	return nil
}

// collectLabels is the first pass of Validate: it maps each function to the
// set of labels it defines.
func collectLabels(cmds []Command) (map[string]map[string]struct{}, error) {
	functions := make(map[string]map[string]struct{})
	current := ""
	for _, c := range cmds {
		if c.Type == C_FUNCTION {
			if _, exists := functions[c.Name]; exists {
				return nil, fmt.Errorf("duplicate function '%s' on line %d", c.Name, c.Line)
			}
			functions[c.Name] = make(map[string]struct{})
			current = c.Name
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("%s outside of a function on line %d", c.Type, c.Line)
		}
		if c.Type == C_LABEL {
			if _, exists := functions[current][c.Name]; exists {
				return nil, fmt.Errorf("duplicate label '%s' in %s on line %d", c.Name, current, c.Line)
			}
			functions[current][c.Name] = struct{}{}
		}
	}
	return functions, nil
}

func checkAccess(c Command) error {
	switch {
	case c.Type == C_POP && c.Segment == CONSTANT:
		return fmt.Errorf("cannot pop to constant on line %d", c.Line)
	case c.Segment == POINTER && c.Index > 1:
		return fmt.Errorf("pointer index %d out of range on line %d", c.Index, c.Line)
	case c.Segment == TEMP && c.Index > 7:
		return fmt.Errorf("temp index %d out of range on line %d", c.Index, c.Line)
	case c.Segment == STATIC && c.Index > 239:
		return fmt.Errorf("static index %d out of range on line %d", c.Index, c.Line)
	}
	return nil
}
