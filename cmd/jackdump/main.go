package main

import (
	"fmt"
	"os"

	"gojack/pkg/compiler"
)

const testSource = `class Main {
    static int total;

    function void main() {
        var int i;
        let i = 0;
        while (i < 10) {
            let total = total + i;
            let i = i + 1;
        }
        do Output.printInt(total);
        return;
    }
}
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Tokens(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Compile, dumping each subroutine's scope as it closes
	name, code, err := compiler.CompileClass(src, func(sub string, syms *compiler.SymbolTable) {
		fmt.Printf("Symbols after %s\n", sub)
		fmt.Print(syms)
		fmt.Println()
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}

	fmt.Printf("Generated VM code (%s)\n", name)
	fmt.Print(code)
}
