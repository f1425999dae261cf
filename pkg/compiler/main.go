// Package compiler translates Jack source into text for the stack machine
// described by package vm.
//
// Pipeline: source → Tokenizer → Engine (parse and emit in one pass) → VMWriter
//
// There is no syntax tree. The engine resolves names through a two-scope
// SymbolTable while it parses and writes commands in final order.
package compiler
