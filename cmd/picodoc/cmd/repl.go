package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/picodoc/picodoc-go/eval"
	"github.com/picodoc/picodoc-go/parser"
	"github.com/picodoc/picodoc-go/render"
)

const (
	historyFile = ".picodoc_history"
	promptMain  = "pdoc> "
	promptCont  = "....> "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive PicoDoc session",
	Long: `Reads PicoDoc blocks from the terminal and prints the rendered
HTML fragment for each. Finish a block with an empty line. Type :quit
to exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode = runRepl()
		return nil
	},
}

func runRepl() int {
	fmt.Println("PicoDoc REPL. Empty line compiles the block, :quit exits.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	// Definitions persist across blocks so #set in one block is
	// usable in the next.
	var preamble strings.Builder

	for {
		block, ok := readBlock(ln)
		if !ok {
			fmt.Println()
			return 0
		}

		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if trimmed == ":quit" {
			return 0
		}

		source := preamble.String() + block
		html, err := compileRepl(source)
		if err != nil {
			printError(err)
			continue
		}
		fmt.Print(html)
		ln.AppendHistory(strings.ReplaceAll(block, "\n", " "))

		// Keep definition-only lines for later blocks.
		for _, line := range strings.Split(block, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "[#set ") ||
				strings.HasPrefix(strings.TrimSpace(line), "#set ") {
				preamble.WriteString(line)
				preamble.WriteString("\n")
			}
		}
	}
}

// readBlock collects lines until an empty line or EOF. The second
// return is false once input is exhausted.
func readBlock(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err == io.EOF {
			return b.String(), b.Len() > 0
		}
		if err == liner.ErrPromptAborted {
			return "", true
		}
		if err != nil {
			return b.String(), b.Len() > 0
		}
		if line == "" {
			return b.String(), true
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func compileRepl(source string) (string, error) {
	doc, err := parser.Parse(source, "repl.pdoc")
	if err != nil {
		return "", err
	}
	doc, err = eval.Evaluate(doc, "repl.pdoc", &eval.Options{Source: source})
	if err != nil {
		return "", err
	}
	return render.Fragment(doc), nil
}
