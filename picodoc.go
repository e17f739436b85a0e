// Package picodoc compiles PicoDoc markup to HTML.
//
// PicoDoc is a small markup language built around macro calls:
// unbracketed #name calls that run to the end of the line, and
// bracketed [#name ...] calls that nest inline. A document compiles
// in three stages: a mode stack lexer produces tokens, a recursive
// descent parser builds the AST, and the evaluator expands directives
// (#set, #ifeq, #include, pipe tables, user macros) into a tree of
// render-ready macro calls.
//
// Basic usage:
//
//	html, err := picodoc.Compile("#title: Hello\n\nSome prose.\n", "doc.pdoc", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(html)
//
// The subpackages expose the individual stages: lexer, parser, eval,
// and render. The cmd/picodoc command wraps them in a CLI with config
// files, watch mode, and head-item injection; cmd/picodoc-lsp serves
// editor diagnostics over stdio.
package picodoc

import (
	"github.com/picodoc/picodoc-go/eval"
	"github.com/picodoc/picodoc-go/parser"
	"github.com/picodoc/picodoc-go/render"
)

// Version is the picodoc release version.
const Version = "0.1.0"

// Compile parses, evaluates, and renders PicoDoc source to a complete
// HTML document. The filename is used in error messages and as the
// base for relative #include resolution. env seeds the env.* macro
// namespace and may be nil.
func Compile(source, filename string, env map[string]string) (string, error) {
	doc, err := parser.Parse(source, filename)
	if err != nil {
		return "", err
	}
	doc, err = eval.Evaluate(doc, filename, &eval.Options{Env: env, Source: source})
	if err != nil {
		return "", err
	}
	return render.Document(doc), nil
}

// CompileFragment is Compile without the HTML document scaffolding:
// only the rendered body content is returned.
func CompileFragment(source, filename string, env map[string]string) (string, error) {
	doc, err := parser.Parse(source, filename)
	if err != nil {
		return "", err
	}
	doc, err = eval.Evaluate(doc, filename, &eval.Options{Env: env, Source: source})
	if err != nil {
		return "", err
	}
	return render.Fragment(doc), nil
}
