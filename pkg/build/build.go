// Package build drives compilation of a source file or directory: it finds
// the units, compiles them concurrently and writes the results next to
// their sources.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"gojack/pkg/compiler"
	"gojack/pkg/utils"
	"gojack/pkg/vm"
)

type Options struct {
	XML   bool // also write the token document XT.xml and parse tree X.xml
	Check bool // re-parse and validate generated VM text
	Jobs  int  // parallel units; <= 0 means one per CPU

	// Logger receives progress lines. Nil discards them.
	Logger func(format string, args ...any)
}

// Result describes one compiled unit.
type Result struct {
	Source   string
	Output   string
	Class    string
	Code     string
	Commands int
}

// Build compiles every unit named by path. On the first failure the
// remaining units are abandoned and the error is returned; units that
// failed leave no output behind.
func Build(ctx context.Context, path string, opts Options) ([]Result, error) {
	files, err := utils.FindSources(path)
	if err != nil {
		return nil, err
	}

	logf := opts.Logger
	if logf == nil {
		logf = func(string, ...any) {}
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	results := make([]Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := buildUnit(file, opts)
			if err != nil {
				return err
			}
			results[i] = r
			logf("compiled %s -> %s (%d commands)", filepath.Base(file), filepath.Base(r.Output), r.Commands)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildUnit(file string, opts Options) (Result, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return Result{}, err
	}

	class, code, err := compiler.CompileClass(string(src), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", file, err)
	}

	commands := strings.Count(code, "\n")
	if opts.Check {
		cmds, err := vm.Parse(code)
		if err != nil {
			return Result{}, fmt.Errorf("%s: generated code: %w", file, err)
		}
		if err := vm.Validate(cmds); err != nil {
			return Result{}, fmt.Errorf("%s: generated code: %w", file, err)
		}
		commands = len(cmds)
	}

	var tokens, tree bytes.Buffer
	if opts.XML {
		if err := compiler.WriteTokensXML(&tokens, string(src)); err != nil {
			return Result{}, fmt.Errorf("%s: %w", file, err)
		}
		if err := compiler.WriteParseTreeXML(&tree, string(src)); err != nil {
			return Result{}, fmt.Errorf("%s: %w", file, err)
		}
	}

	out := utils.OutputPath(file, ".vm")
	if err := writeAtomic(out, []byte(code)); err != nil {
		return Result{}, err
	}
	if opts.XML {
		if err := writeAtomic(utils.OutputPath(file, "T.xml"), tokens.Bytes()); err != nil {
			return Result{}, err
		}
		if err := writeAtomic(utils.OutputPath(file, ".xml"), tree.Bytes()); err != nil {
			return Result{}, err
		}
	}

	return Result{Source: file, Output: out, Class: class, Code: code, Commands: commands}, nil
}

// writeAtomic writes data to a temporary file beside path and renames it
// into place, so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
