package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/picodoc/picodoc-go/eval"
	"github.com/picodoc/picodoc-go/filters"
	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/parser"
	"github.com/picodoc/picodoc-go/render"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

// compileFile runs the full pipeline for one input file: read, parse,
// evaluate, inject head items, render.
func compileFile(opts *options) (string, error) {
	data, err := os.ReadFile(opts.inputFile)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", opts.inputFile, err)
	}
	source := string(data)

	doc, err := parser.Parse(source, opts.inputFile)
	if err != nil {
		return "", err
	}

	registry := filters.NewRegistry(filepath.Dir(opts.inputFile))
	registry.ExtraPaths = opts.filterPaths
	registry.Timeout = opts.filterTimeout

	doc, err = eval.Evaluate(doc, opts.inputFile, &eval.Options{
		Env:     opts.env,
		Source:  source,
		Filters: registry,
	})
	if err != nil {
		return "", err
	}

	if opts.debugAST {
		parser.Dump(os.Stderr, doc)
	}

	doc = render.InjectHeadItems(doc, opts.cssFiles, opts.jsFiles, opts.metaTags)
	if opts.fragment {
		return render.Fragment(doc), nil
	}
	return render.Document(doc), nil
}

// runBuild compiles once and writes the result, returning the exit
// code.
func runBuild(opts *options) int {
	html, err := compileFile(opts)
	if err != nil {
		printError(err)
		return exitCodeFor(err)
	}
	if err := writeOutput(opts, html); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func writeOutput(opts *options, html string) error {
	if opts.outputFile != "" {
		return os.WriteFile(opts.outputFile, []byte(html), 0o644)
	}
	_, err := os.Stdout.WriteString(html)
	return err
}

// printError writes a compile error to stderr, with the caret display
// when the error carries a span and color when stderr is a terminal.
func printError(err error) {
	display := err.Error()
	if perr, ok := err.(*errors.Error); ok {
		display = perr.Display()
	}

	if !noColor && term.IsTerminal(int(os.Stderr.Fd())) {
		// Highlight only the headline; the caret block stays plain so
		// alignment survives copy-paste.
		if line, rest, ok := strings.Cut(display, "\n"); ok {
			display = errorStyle.Render(line) + "\n" + rest
		} else {
			display = errorStyle.Render(display)
		}
	}
	fmt.Fprintln(os.Stderr, display)
}
