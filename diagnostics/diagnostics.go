// Package diagnostics runs the PicoDoc pipeline over a buffer and
// reports problems with zero based editor positions, the shape
// language server clients expect.
package diagnostics

import (
	"strings"

	"github.com/picodoc/picodoc-go/eval"
	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/parser"
)

// Severity follows the LSP DiagnosticSeverity numbering.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
)

// Position is a zero based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half open editor range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
}

// Collect lexes, parses, and evaluates source, returning diagnostics.
// Lex and parse failures are errors; evaluation failures are warnings,
// since they often describe state a half edited buffer has not
// established yet.
func Collect(source, filename string) []Diagnostic {
	doc, err := parser.Parse(source, filename)
	if err != nil {
		return []Diagnostic{fromError(err, SeverityError)}
	}
	if _, err := eval.Evaluate(doc, filename, &eval.Options{Source: source}); err != nil {
		return []Diagnostic{fromError(err, SeverityWarning)}
	}
	return nil
}

func fromError(err error, severity Severity) Diagnostic {
	perr, ok := err.(*errors.Error)
	if !ok {
		return Diagnostic{
			Message:  err.Error(),
			Severity: severity,
			Source:   "picodoc",
		}
	}

	message := perr.Message
	if len(perr.Chain) > 0 {
		names := make([]string, len(perr.Chain))
		for i, name := range perr.Chain {
			names[i] = "#" + name
		}
		message += " (in expansion: " + strings.Join(names, " -> ") + ")"
	}

	span := perr.Span
	rng := Range{
		Start: Position{Line: int(span.StartLine) - 1, Character: int(span.StartCol) - 1},
		End:   Position{Line: int(span.EndLine) - 1, Character: int(span.EndCol) - 1},
	}
	// Lex errors are points; give clients a one character range.
	if perr.Kind == errors.KindLex {
		rng.End = Position{Line: rng.Start.Line, Character: rng.Start.Character + 1}
	}

	return Diagnostic{
		Range:    rng,
		Message:  message,
		Severity: severity,
		Source:   "picodoc",
	}
}
