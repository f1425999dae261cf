package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"gojack/pkg/vm"
)

// Engine compiles one class by recursive descent, emitting VM commands as
// it consumes tokens. There is no tree: each production writes its code
// directly and returns at the first token past itself.
//
// Grammar (one token of lookahead everywhere):
//
//	class          = "class" className "{" classVarDec* subroutineDec* "}"
//	classVarDec    = ("static" | "field") type varName ("," varName)* ";"
//	type           = "int" | "char" | "boolean" | className
//	subroutineDec  = ("constructor" | "function" | "method") ("void" | type) subroutineName
//	                 "(" parameterList ")" subroutineBody
//	parameterList  = (type varName ("," type varName)*)?
//	subroutineBody = "{" varDec* statements "}"
//	varDec         = "var" type varName ("," varName)* ";"
//	statements     = (let | if | while | do | return)*
//	let            = "let" varName ("[" expression "]")? "=" expression ";"
//	if             = "if" "(" expression ")" "{" statements "}" ("else" "{" statements "}")?
//	while          = "while" "(" expression ")" "{" statements "}"
//	do             = "do" subroutineCall ";"
//	return         = "return" expression? ";"
//	expression     = term (op term)*
//	term           = INT | STRING | "true" | "false" | "null" | "this" | varName
//	               | varName "[" expression "]" | subroutineCall | "(" expression ")" | ("-" | "~") term
//	subroutineCall = subroutineName "(" expressionList ")"
//	               | (className | varName) "." subroutineName "(" expressionList ")"
//	expressionList = (expression ("," expression)*)?
type Engine struct {
	t    *Tokenizer
	w    *VMWriter
	syms *SymbolTable
	ctx  *classContext
	eof  bool
	tree *treeWriter // nil unless a parse tree is requested

	// OnSubroutine, when set, is called after each subroutine is compiled
	// with the symbol table still holding its scope.
	OnSubroutine func(name string, syms *SymbolTable)
}

// classContext is the mutable state of one class compilation.
type classContext struct {
	className      string
	subroutineName string
	subroutineKind Keyword
	nextLabel      int // shared by every subroutine of the class
}

// endOfInput marks the pseudo-token past the last real one.
const endOfInput TokenType = -1

// NewEngine returns an engine that reads tokens from t and writes VM
// commands to w. The tokenizer must not have been advanced yet.
func NewEngine(t *Tokenizer, w *VMWriter) *Engine {
	return &Engine{t: t, w: w, syms: NewSymbolTable()}
}

// ClassName returns the name of the class being (or last) compiled.
func (e *Engine) ClassName() string {
	if e.ctx == nil {
		return ""
	}
	return e.ctx.className
}

// cur returns the lookahead token.
func (e *Engine) cur() Token {
	if e.eof {
		return Token{Type: endOfInput, Line: e.t.Line()}
	}
	return e.t.Current()
}

// next consumes the lookahead token.
func (e *Engine) next() error {
	if !e.eof {
		e.tree.terminal(e.t.Current())
	}
	return e.advance()
}

// advance makes the following token the lookahead.
func (e *Engine) advance() error {
	if !e.t.HasMoreTokens() {
		e.eof = true
		return nil
	}
	return e.t.Advance()
}

// production runs compile inside a parse tree element called name.
func (e *Engine) production(name string, compile func() error) error {
	e.tree.open(name)
	if err := compile(); err != nil {
		return err
	}
	e.tree.close(name)
	return nil
}

func (e *Engine) errorf(kind error, tok Token, format string, args ...any) error {
	return sourceError(kind, e.t.lines, tok.Line, format, args...)
}

func describe(tok Token) string {
	switch tok.Type {
	case endOfInput:
		return "end of input"
	case STRING_CONST:
		return fmt.Sprintf("%q", tok.Lexeme)
	}
	return fmt.Sprintf("'%s'", tok.Lexeme)
}

func (e *Engine) expectSymbol(sym byte) error {
	tok := e.cur()
	if !tok.is(sym) {
		return e.errorf(ErrSyntax, tok, "expected '%c', got %s", sym, describe(tok))
	}
	return e.next()
}

func (e *Engine) expectKeyword(kws ...Keyword) (Keyword, error) {
	tok := e.cur()
	if !tok.isKeyword(kws...) {
		names := make([]string, len(kws))
		for i, kw := range kws {
			names[i] = "'" + kw.String() + "'"
		}
		return NO_KEYWORD, e.errorf(ErrSyntax, tok, "expected %s, got %s", strings.Join(names, " or "), describe(tok))
	}
	return tok.Keyword, e.next()
}

func (e *Engine) expectIdentifier() (string, error) {
	tok := e.cur()
	if tok.Type != IDENTIFIER {
		return "", e.errorf(ErrSyntax, tok, "expected identifier, got %s", describe(tok))
	}
	return tok.Lexeme, e.next()
}

// compileType consumes a type name; "void" is accepted only for return types.
func (e *Engine) compileType(allowVoid bool) (string, error) {
	tok := e.cur()
	switch {
	case tok.isKeyword(INT, CHAR, BOOLEAN):
	case allowVoid && tok.isKeyword(VOID):
	case tok.Type == IDENTIFIER:
	default:
		return "", e.errorf(ErrSyntax, tok, "expected type, got %s", describe(tok))
	}
	return tok.Lexeme, e.next()
}

// resolve looks name up in both scopes; an unknown variable is an error.
func (e *Engine) resolve(name string, tok Token) (Symbol, error) {
	sym, ok := e.syms.Lookup(name)
	if !ok {
		return Symbol{}, e.errorf(ErrUndeclared, tok, "'%s' is not declared", name)
	}
	return sym, nil
}

func (e *Engine) push(sym Symbol) { e.w.WritePush(sym.Kind.Segment(), sym.Index) }
func (e *Engine) pop(sym Symbol)  { e.w.WritePop(sym.Kind.Segment(), sym.Index) }

// newLabelIndex hands out the next per-class label number.
func (e *Engine) newLabelIndex() int {
	n := e.ctx.nextLabel
	e.ctx.nextLabel++
	return n
}

// CompileClass primes the tokenizer and compiles the single class of the
// unit. The unit must end after the class's closing brace.
func (e *Engine) CompileClass() error {
	e.syms.Reset()
	e.ctx = &classContext{}
	e.eof = false

	if err := e.advance(); err != nil {
		return err
	}
	e.tree.open("class")
	if _, err := e.expectKeyword(CLASS); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	e.ctx.className = name
	if err := e.expectSymbol('{'); err != nil {
		return err
	}

	for e.cur().isKeyword(STATIC, FIELD) {
		if err := e.production("classVarDec", e.compileClassVarDec); err != nil {
			return err
		}
	}
	for e.cur().isKeyword(CONSTRUCTOR, FUNCTION, METHOD) {
		if err := e.production("subroutineDec", e.compileSubroutine); err != nil {
			return err
		}
	}

	if err := e.expectSymbol('}'); err != nil {
		return err
	}
	e.tree.close("class")
	if tok := e.cur(); tok.Type != endOfInput {
		return e.errorf(ErrSyntax, tok, "unexpected %s after end of class %s", describe(tok), name)
	}
	return nil
}

func (e *Engine) compileClassVarDec() error {
	kw, err := e.expectKeyword(STATIC, FIELD)
	if err != nil {
		return err
	}
	kind := KIND_STATIC
	if kw == FIELD {
		kind = KIND_FIELD
	}
	return e.compileNames(kind)
}

// compileNames handles the shared tail of class-var and var declarations:
// type varName ("," varName)* ";"
func (e *Engine) compileNames(kind Kind) error {
	typ, err := e.compileType(false)
	if err != nil {
		return err
	}
	for {
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.syms.Define(name, typ, kind)
		if !e.cur().is(',') {
			break
		}
		if err := e.next(); err != nil {
			return err
		}
	}
	return e.expectSymbol(';')
}

func (e *Engine) compileSubroutine() error {
	e.syms.StartSubroutine()

	kw, err := e.expectKeyword(CONSTRUCTOR, FUNCTION, METHOD)
	if err != nil {
		return err
	}
	e.ctx.subroutineKind = kw
	if _, err := e.compileType(true); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	e.ctx.subroutineName = name

	if kw == METHOD {
		e.syms.Define("this", e.ctx.className, KIND_ARG)
	}

	if err := e.expectSymbol('('); err != nil {
		return err
	}
	if err := e.production("parameterList", e.compileParameterList); err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}
	if err := e.production("subroutineBody", e.compileSubroutineBody); err != nil {
		return err
	}

	if e.OnSubroutine != nil {
		e.OnSubroutine(e.ctx.className+"."+name, e.syms)
	}
	return nil
}

func (e *Engine) compileParameterList() error {
	if e.cur().is(')') {
		return nil
	}
	for {
		typ, err := e.compileType(false)
		if err != nil {
			return err
		}
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.syms.Define(name, typ, KIND_ARG)
		if !e.cur().is(',') {
			return nil
		}
		if err := e.next(); err != nil {
			return err
		}
	}
}

func (e *Engine) compileSubroutineBody() error {
	if err := e.expectSymbol('{'); err != nil {
		return err
	}
	for e.cur().isKeyword(VAR) {
		if err := e.production("varDec", e.compileVarDec); err != nil {
			return err
		}
	}

	e.w.WriteFunction(e.ctx.className+"."+e.ctx.subroutineName, e.syms.VarCount(KIND_VAR))
	switch e.ctx.subroutineKind {
	case CONSTRUCTOR:
		e.w.WritePush(vm.CONSTANT, e.syms.VarCount(KIND_FIELD))
		e.w.WriteCall("Memory.alloc", 1)
		e.w.WritePop(vm.POINTER, 0)
	case METHOD:
		e.w.WritePush(vm.ARGUMENT, 0)
		e.w.WritePop(vm.POINTER, 0)
	}

	if err := e.compileStatements(); err != nil {
		return err
	}
	return e.expectSymbol('}')
}

func (e *Engine) compileVarDec() error {
	if err := e.next(); err != nil { // var
		return err
	}
	return e.compileNames(KIND_VAR)
}

func (e *Engine) compileStatements() error {
	return e.production("statements", e.statements)
}

func (e *Engine) statements() error {
	for {
		tok := e.cur()
		if tok.Type != KEYWORD {
			return nil
		}
		var err error
		switch tok.Keyword {
		case LET:
			err = e.production("letStatement", e.compileLet)
		case IF:
			err = e.production("ifStatement", e.compileIf)
		case WHILE:
			err = e.production("whileStatement", e.compileWhile)
		case DO:
			err = e.production("doStatement", e.compileDo)
		case RETURN:
			err = e.production("returnStatement", e.compileReturn)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) compileLet() error {
	if err := e.next(); err != nil { // let
		return err
	}
	tok := e.cur()
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	sym, err := e.resolve(name, tok)
	if err != nil {
		return err
	}

	if e.cur().is('[') {
		if err := e.next(); err != nil {
			return err
		}
		e.push(sym)
		if err := e.compileExpression(); err != nil {
			return err
		}
		if err := e.expectSymbol(']'); err != nil {
			return err
		}
		e.w.WriteArithmetic(vm.ADD)
		if err := e.expectSymbol('='); err != nil {
			return err
		}
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.w.WritePop(vm.TEMP, 0)
		e.w.WritePop(vm.POINTER, 1)
		e.w.WritePush(vm.TEMP, 0)
		e.w.WritePop(vm.THAT, 0)
	} else {
		if err := e.expectSymbol('='); err != nil {
			return err
		}
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.pop(sym)
	}
	return e.expectSymbol(';')
}

// compileCondition handles the parenthesised condition of if and while and
// leaves its negation on the stack.
func (e *Engine) compileCondition() error {
	if err := e.expectSymbol('('); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}
	e.w.WriteArithmetic(vm.NOT)
	return nil
}

// compileBlock handles "{" statements "}".
func (e *Engine) compileBlock() error {
	if err := e.expectSymbol('{'); err != nil {
		return err
	}
	if err := e.compileStatements(); err != nil {
		return err
	}
	return e.expectSymbol('}')
}

func (e *Engine) compileIf() error {
	if err := e.next(); err != nil { // if
		return err
	}
	n := e.newLabelIndex()
	elseLabel := fmt.Sprintf("IF_ELSE%d", n)
	endLabel := fmt.Sprintf("IF_END%d", n)

	if err := e.compileCondition(); err != nil {
		return err
	}
	e.w.WriteIf(elseLabel)
	if err := e.compileBlock(); err != nil {
		return err
	}
	e.w.WriteGoto(endLabel)
	e.w.WriteLabel(elseLabel)

	if e.cur().isKeyword(ELSE) {
		if err := e.next(); err != nil {
			return err
		}
		if err := e.compileBlock(); err != nil {
			return err
		}
	}
	e.w.WriteLabel(endLabel)
	return nil
}

func (e *Engine) compileWhile() error {
	if err := e.next(); err != nil { // while
		return err
	}
	n := e.newLabelIndex()
	topLabel := fmt.Sprintf("WHILE_EXP%d", n)
	endLabel := fmt.Sprintf("WHILE_END%d", n)

	e.w.WriteLabel(topLabel)
	if err := e.compileCondition(); err != nil {
		return err
	}
	e.w.WriteIf(endLabel)
	if err := e.compileBlock(); err != nil {
		return err
	}
	e.w.WriteGoto(topLabel)
	e.w.WriteLabel(endLabel)
	return nil
}

func (e *Engine) compileDo() error {
	if err := e.next(); err != nil { // do
		return err
	}
	tok := e.cur()
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	if err := e.compileSubroutineCall(name, tok); err != nil {
		return err
	}
	e.w.WritePop(vm.TEMP, 0)
	return e.expectSymbol(';')
}

func (e *Engine) compileReturn() error {
	if err := e.next(); err != nil { // return
		return err
	}
	if e.cur().is(';') {
		e.w.WritePush(vm.CONSTANT, 0)
	} else if err := e.compileExpression(); err != nil {
		return err
	}
	e.w.WriteReturn()
	return e.expectSymbol(';')
}

// compileSubroutineCall compiles a call whose leading identifier has been
// consumed. The shape is chosen by the lookahead and by whether name
// resolves to a variable:
//
//	f(...)      method on the current object
//	v.f(...)    method on the object held in variable v
//	C.f(...)    function or constructor of class C
func (e *Engine) compileSubroutineCall(name string, tok Token) error {
	var callee string
	nArgs := 0

	switch {
	case e.cur().is('('):
		e.w.WritePush(vm.POINTER, 0)
		callee = e.ctx.className + "." + name
		nArgs = 1
	case e.cur().is('.'):
		if err := e.next(); err != nil {
			return err
		}
		method, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		if sym, ok := e.syms.Lookup(name); ok {
			e.push(sym)
			callee = sym.Type + "." + method
			nArgs = 1
		} else {
			callee = name + "." + method
		}
	default:
		return e.errorf(ErrSyntax, e.cur(), "expected '(' or '.' after %s, got %s", describe(tok), describe(e.cur()))
	}

	if err := e.expectSymbol('('); err != nil {
		return err
	}
	var n int
	err := e.production("expressionList", func() (err error) {
		n, err = e.compileExpressionList()
		return err
	})
	if err != nil {
		return err
	}
	if err := e.expectSymbol(')'); err != nil {
		return err
	}
	e.w.WriteCall(callee, nArgs+n)
	return nil
}

func (e *Engine) compileExpressionList() (int, error) {
	if e.cur().is(')') {
		return 0, nil
	}
	n := 0
	for {
		if err := e.compileExpression(); err != nil {
			return n, err
		}
		n++
		if !e.cur().is(',') {
			return n, nil
		}
		if err := e.next(); err != nil {
			return n, err
		}
	}
}

// binaryOps lists the infix operators; all share one precedence and
// associate to the left.
const binaryOps = "+-*/&|<>="

func isBinaryOp(tok Token) bool {
	return tok.Type == SYMBOL && len(tok.Lexeme) == 1 && strings.IndexByte(binaryOps, tok.Lexeme[0]) >= 0
}

func (e *Engine) compileExpression() error {
	return e.production("expression", e.expression)
}

func (e *Engine) expression() error {
	if err := e.compileTerm(); err != nil {
		return err
	}
	for isBinaryOp(e.cur()) {
		op := e.cur()
		if err := e.next(); err != nil {
			return err
		}
		if err := e.compileTerm(); err != nil {
			return err
		}
		if err := e.writeBinary(op); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeBinary(op Token) error {
	switch op.Lexeme {
	case "+":
		e.w.WriteArithmetic(vm.ADD)
	case "-":
		e.w.WriteArithmetic(vm.SUB)
	case "*":
		e.w.WriteCall("Math.multiply", 2)
	case "/":
		e.w.WriteCall("Math.divide", 2)
	case "&":
		e.w.WriteArithmetic(vm.AND)
	case "|":
		e.w.WriteArithmetic(vm.OR)
	case "<":
		e.w.WriteArithmetic(vm.LT)
	case ">":
		e.w.WriteArithmetic(vm.GT)
	case "=":
		e.w.WriteArithmetic(vm.EQ)
	default:
		return e.errorf(ErrSyntax, op, "unknown operator %s", describe(op))
	}
	return nil
}

func (e *Engine) compileTerm() error {
	return e.production("term", e.term)
}

func (e *Engine) term() error {
	tok := e.cur()

	switch tok.Type {
	case INT_CONST:
		e.w.WritePush(vm.CONSTANT, e.t.IntVal())
		return e.next()

	case STRING_CONST:
		e.writeString(tok.Lexeme)
		return e.next()

	case KEYWORD:
		switch tok.Keyword {
		case TRUE:
			e.w.WritePush(vm.CONSTANT, 1)
			e.w.WriteArithmetic(vm.NEG)
		case FALSE, NULL:
			e.w.WritePush(vm.CONSTANT, 0)
		case THIS:
			e.w.WritePush(vm.POINTER, 0)
		default:
			return e.errorf(ErrSyntax, tok, "unexpected keyword %s in expression", describe(tok))
		}
		return e.next()

	case IDENTIFIER:
		if err := e.next(); err != nil {
			return err
		}
		switch {
		case e.cur().is('['):
			return e.compileArrayRead(tok)
		case e.cur().is('('), e.cur().is('.'):
			return e.compileSubroutineCall(tok.Lexeme, tok)
		}
		sym, err := e.resolve(tok.Lexeme, tok)
		if err != nil {
			return err
		}
		e.push(sym)
		return nil

	case SYMBOL:
		switch {
		case tok.is('('):
			if err := e.next(); err != nil {
				return err
			}
			if err := e.compileExpression(); err != nil {
				return err
			}
			return e.expectSymbol(')')
		case tok.is('-'), tok.is('~'):
			if err := e.next(); err != nil {
				return err
			}
			if err := e.compileTerm(); err != nil {
				return err
			}
			if tok.is('-') {
				e.w.WriteArithmetic(vm.NEG)
			} else {
				e.w.WriteArithmetic(vm.NOT)
			}
			return nil
		}
	}
	return e.errorf(ErrSyntax, tok, "expected term, got %s", describe(tok))
}

// compileArrayRead compiles name[expr] with the '[' as lookahead.
func (e *Engine) compileArrayRead(tok Token) error {
	sym, err := e.resolve(tok.Lexeme, tok)
	if err != nil {
		return err
	}
	if err := e.next(); err != nil { // [
		return err
	}
	e.push(sym)
	if err := e.compileExpression(); err != nil {
		return err
	}
	if err := e.expectSymbol(']'); err != nil {
		return err
	}
	e.w.WriteArithmetic(vm.ADD)
	e.w.WritePop(vm.POINTER, 1)
	e.w.WritePush(vm.THAT, 0)
	return nil
}

// writeString builds a string object one character at a time.
func (e *Engine) writeString(s string) {
	e.w.WritePush(vm.CONSTANT, utf8.RuneCountInString(s))
	e.w.WriteCall("String.new", 1)
	for _, r := range s {
		e.w.WritePush(vm.CONSTANT, int(r))
		e.w.WriteCall("String.appendChar", 2)
	}
}
