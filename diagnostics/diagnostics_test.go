package diagnostics

import (
	"strings"
	"testing"
)

func TestCleanSourceHasNoDiagnostics(t *testing.T) {
	diags := Collect("#title: Hello\n\nSome paragraph.\n", "doc.pdoc")
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
}

func TestLexErrorIsError(t *testing.T) {
	diags := Collect("line one\n\\q", "doc.pdoc")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one", diags)
	}
	d := diags[0]
	if d.Severity != SeverityError {
		t.Errorf("severity = %d, want error", d.Severity)
	}
	if !strings.Contains(d.Message, "invalid escape sequence") {
		t.Errorf("message = %q", d.Message)
	}
	// Zero based positions, one character range for point errors.
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 0 {
		t.Errorf("start = %+v, want line 1 char 0", d.Range.Start)
	}
	if d.Range.End.Line != 1 || d.Range.End.Character != 1 {
		t.Errorf("end = %+v, want line 1 char 1", d.Range.End)
	}
	if d.Source != "picodoc" {
		t.Errorf("source = %q, want picodoc", d.Source)
	}
}

func TestParseErrorIsError(t *testing.T) {
	diags := Collect("[#m a=1\n", "doc.pdoc")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one", diags)
	}
	if diags[0].Severity != SeverityError {
		t.Errorf("severity = %d, want error", diags[0].Severity)
	}
	if !strings.Contains(diags[0].Message, "expected closing ']'") {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestEvalErrorIsWarning(t *testing.T) {
	diags := Collect("#set name=x: 1\n#set name=x: 2\n", "doc.pdoc")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one", diags)
	}
	if diags[0].Severity != SeverityWarning {
		t.Errorf("severity = %d, want warning", diags[0].Severity)
	}
	if !strings.Contains(diags[0].Message, "duplicate definition: x") {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestEvalErrorChainInMessage(t *testing.T) {
	diags := Collect("[#set name=loop : [#loop]]\n#p: [#loop]\n", "doc.pdoc")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one", diags)
	}
	if !strings.Contains(diags[0].Message, "(in expansion: ") {
		t.Errorf("message = %q, want expansion suffix", diags[0].Message)
	}
	if !strings.Contains(diags[0].Message, "#loop") {
		t.Errorf("message = %q, want chain entries", diags[0].Message)
	}
}
