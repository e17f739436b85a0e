// Package errors provides the shared compile error type with source context
// rendering used by every stage of the pipeline.
package errors

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/picodoc/picodoc-go/syntax"
)

// Kind describes which stage produced the error.
type Kind int

const (
	KindLex Kind = iota
	KindParse
	KindEval
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "lex error"
	case KindParse:
		return "parse error"
	case KindEval:
		return "eval error"
	case KindConfig:
		return "config error"
	default:
		return "error"
	}
}

// Error is a compile error with position, source context, and, for
// evaluation errors, the macro expansion chain.
type Error struct {
	Kind    Kind
	Message string
	Span    syntax.Span
	File    string
	Source  string
	Chain   []string // macro names, outermost first
}

// New creates a new error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WithSpan attaches span information.
func (e *Error) WithSpan(span syntax.Span) *Error {
	e.Span = span
	return e
}

// WithFile attaches the source file name.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithSource attaches the source text for context rendering.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithChain attaches a copy of the macro expansion chain.
func (e *Error) WithChain(chain []string) *Error {
	e.Chain = append([]string(nil), chain...)
	return e
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s (at %s:%d:%d)", e.Kind, e.Message, e.File, e.Span.StartLine, e.Span.StartCol)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Display renders the full diagnostic block:
//
//	error: <message>
//	  --> <file>:<line>:<col>
//	  |
//	N | <source line>
//	  |  ^^
//
// followed by the expansion chain for evaluation errors.
func (e *Error) Display() string {
	file := e.File
	if file == "" {
		file = "input.pdoc"
	}
	line := int(e.Span.StartLine)
	col := int(e.Span.StartCol)
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}

	sourceLine := ""
	lines := strings.Split(e.Source, "\n")
	if line-1 < len(lines) {
		sourceLine = strings.TrimRight(lines[line-1], "\r")
	}

	lineWidth := utf8.RuneCountInString(sourceLine)
	var underline int
	switch {
	case e.Kind == KindLex:
		underline = lineWidth - col + 1
		if underline > 2 {
			underline = 2
		}
	case e.Span.EndLine == e.Span.StartLine:
		underline = int(e.Span.EndCol) - col
	default:
		underline = lineWidth - col + 1
	}
	if underline < 1 {
		underline = 1
	}

	lineNum := fmt.Sprintf("%d", line)
	gutter := strings.Repeat(" ", len(lineNum)+1)

	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", e.Message)
	fmt.Fprintf(&b, "%s--> %s:%d:%d\n", gutter, file, line, col)
	fmt.Fprintf(&b, "%s|\n", gutter)
	fmt.Fprintf(&b, "%s | %s\n", lineNum, sourceLine)
	fmt.Fprintf(&b, "%s| %s%s", gutter, strings.Repeat(" ", col-1), strings.Repeat("^", underline))

	if len(e.Chain) > 0 {
		names := make([]string, len(e.Chain))
		for i, name := range e.Chain {
			names[i] = "#" + name
		}
		fmt.Fprintf(&b, "\n  in expansion chain: %s", strings.Join(names, " -> "))
	}
	return b.String()
}
