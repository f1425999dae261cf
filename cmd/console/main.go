package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gojack/pkg/utils"
	"gojack/pkg/vm"
)

// loadUnits loads every .vm file under path, one unit per file.
func loadUnits(m *vm.Machine, path string) error {
	files, err := utils.FindFiles(path, ".vm")
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		unit := strings.TrimSuffix(filepath.Base(file), ".vm")
		if err := m.LoadSource(unit, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// run steps m from entry, writing each command to trace when it is set.
func run(m *vm.Machine, entry string, trace io.Writer) (int16, error) {
	if err := m.Start(entry); err != nil {
		return 0, err
	}
	for !m.Halted {
		if trace != nil {
			if cmd, fn, ok := m.Next(); ok {
				fmt.Fprintf(trace, "%6d  SP=%-5d %-24s %s\n", m.Steps, m.RAM[vm.SP], fn, cmd)
			}
		}
		if err := m.Step(); err != nil {
			return 0, err
		}
	}
	return m.Result(), nil
}

func main() {
	entry := flag.String("entry", "", "function to run (default: Sys.init if present, else Main.main)")
	trace := flag.Bool("trace", false, "print every command to stderr as it executes")
	maxSteps := flag.Int("max-steps", 0, "abort after this many commands (0: no limit)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: %s [flags] <file.vm|dir>", os.Args[0])
	}
	path := flag.Arg(0)

	m := vm.NewMachine()
	m.MaxSteps = *maxSteps
	if err := loadUnits(m, path); err != nil {
		log.Fatalf("Failed to load %s: %v", path, err)
	}
	if *entry == "" {
		*entry = m.DefaultEntry()
	}

	var traceOut io.Writer
	if *trace {
		traceOut = os.Stderr
	}
	ret, err := run(m, *entry, traceOut)
	fmt.Println()
	if err != nil {
		log.Fatalf("Run failed after %d steps: %v", m.Steps, err)
	}
	fmt.Printf("%s returned %d after %d steps\n", *entry, ret, m.Steps)
}
