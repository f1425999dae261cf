//go:build !js

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"gojack/pkg/build"
	"gojack/pkg/vm"
)

func main() {
	inPath := flag.String("in", "", "source file or directory of .jack files")
	emitXML := flag.Bool("xml", false, "also write the token document XT.xml and parse tree X.xml for each unit")
	check := flag.Bool("check", false, "validate the generated VM code")
	runProgram := flag.Bool("run", false, "run the compiled program on the VM emulator")
	entry := flag.String("entry", "", "function to run (default: Sys.init if present, else Main.main)")
	jobs := flag.Int("j", 0, "units compiled in parallel (default: number of CPUs)")
	maxSteps := flag.Int("max-steps", 0, "abort a run after this many VM commands (0: no limit)")
	verbose := flag.Bool("v", false, "log each compiled unit")
	flag.Parse()

	if *inPath == "" {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "nothing to do: provide -in <file.jack|dir>")
			flag.Usage()
			os.Exit(2)
		}
		*inPath = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := build.Options{XML: *emitXML, Check: *check, Jobs: *jobs}
	if *verbose {
		opts.Logger = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	results, err := build.Build(ctx, *inPath, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Printf("compiled %s -> %s\n", r.Source, r.Output)
	}

	if !*runProgram {
		return
	}
	if err := runProgramOnVM(results, *entry, *maxSteps); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func runProgramOnVM(results []build.Result, entry string, maxSteps int) error {
	m := vm.NewMachine()
	m.MaxSteps = maxSteps
	for _, r := range results {
		if err := m.LoadSource(r.Class, r.Code); err != nil {
			return err
		}
	}
	if entry == "" {
		entry = m.DefaultEntry()
	}

	ret, err := m.Run(entry)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("%s after %d steps: %w", entry, m.Steps, err)
	}
	fmt.Printf("run complete (%s): returned %d after %d steps\n", entry, ret, m.Steps)
	return nil
}
