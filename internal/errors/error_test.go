package errors

import (
	"strings"
	"testing"

	"github.com/picodoc/picodoc-go/syntax"
)

func TestErrorString(t *testing.T) {
	err := New(KindParse, "expected closing ']'").
		WithSpan(syntax.Point(3, 7, 20)).
		WithFile("doc.pdoc")
	want := "parse error: expected closing ']' (at doc.pdoc:3:7)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorStringWithoutFile(t *testing.T) {
	err := New(KindEval, "duplicate definition: x")
	if err.Error() != "eval error: duplicate definition: x" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindStrings(t *testing.T) {
	kinds := map[Kind]string{
		KindLex:    "lex error",
		KindParse:  "parse error",
		KindEval:   "eval error",
		KindConfig: "config error",
	}
	for kind, want := range kinds {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}

func TestDisplay(t *testing.T) {
	source := "line one\nbad \\q here\n"
	err := New(KindLex, `invalid escape sequence '\q'`).
		WithSpan(syntax.Point(2, 5, 13)).
		WithFile("doc.pdoc").
		WithSource(source)

	got := err.Display()
	want := "error: invalid escape sequence '\\q'\n" +
		"  --> doc.pdoc:2:5\n" +
		"  |\n" +
		"2 | bad \\q here\n" +
		"  |     ^^"
	if got != want {
		t.Errorf("Display() =\n%s\nwant:\n%s", got, want)
	}
}

func TestDisplayDefaultFilename(t *testing.T) {
	err := New(KindLex, "x").WithSpan(syntax.Point(1, 1, 0)).WithSource("oops")
	if !strings.Contains(err.Display(), "--> input.pdoc:1:1") {
		t.Errorf("Display() = %q, want default filename", err.Display())
	}
}

func TestDisplayChain(t *testing.T) {
	err := New(KindEval, "macro call depth limit exceeded").
		WithSpan(syntax.Point(1, 5, 4)).
		WithFile("doc.pdoc").
		WithSource("#p: [#loop]\n").
		WithChain([]string{"loop", "loop"})

	got := err.Display()
	if !strings.HasSuffix(got, "in expansion chain: #loop -> #loop") {
		t.Errorf("Display() = %q, want expansion chain suffix", got)
	}
}

func TestWithChainCopies(t *testing.T) {
	chain := []string{"a", "b"}
	err := New(KindEval, "x").WithChain(chain)
	chain[0] = "mutated"
	if err.Chain[0] != "a" {
		t.Error("WithChain aliased the caller's slice")
	}
}

func TestDisplaySpanUnderline(t *testing.T) {
	// Parse errors underline the full offending span on one line.
	source := "[#m badtoken]\n"
	err := New(KindParse, "expected argument, ':' body, string body, or ']'").
		WithSpan(syntax.Span{StartLine: 1, StartCol: 5, StartOffset: 4, EndLine: 1, EndCol: 13, EndOffset: 12}).
		WithFile("doc.pdoc").
		WithSource(source)

	got := err.Display()
	if !strings.Contains(got, "    ^^^^^^^^") {
		t.Errorf("Display() = %q, want eight-caret underline", got)
	}
}
