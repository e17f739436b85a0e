package eval

import (
	"os"
	"path/filepath"

	"github.com/picodoc/picodoc-go/filters"
	"github.com/picodoc/picodoc-go/parser"
)

const (
	maxIncludeDepth = 16
	maxCallDepth    = 64
)

// evalContext is the state carried through one evaluation. It is owned
// exclusively by the compile that created it, so independent compiles
// can run concurrently without coordination.
type evalContext struct {
	filename  string
	sourceDir string
	source    string
	env       map[string]string

	// scopes[0] is the global definition frame written by #set. A
	// frame is pushed for each user macro call and holds its bound
	// parameters as synthetic definitions.
	scopes []map[string]*parser.MacroCall

	includeStack []string
	callStack    []string

	// Top-level #set nodes already recorded by the collection pass,
	// identified by pointer so the expansion pass does not record
	// them a second time.
	recorded map[*parser.MacroCall]bool

	readFile func(string) ([]byte, error)
	filters  *filters.Registry
}

func newContext(filename string, opts *Options) *evalContext {
	sourceDir := filepath.Dir(filename)
	resolved, err := filepath.Abs(filename)
	if err != nil {
		resolved = filename
	}

	env := map[string]string{}
	readFile := os.ReadFile
	source := ""
	var registry *filters.Registry
	if opts != nil {
		for k, v := range opts.Env {
			env[k] = v
		}
		if opts.ReadFile != nil {
			readFile = opts.ReadFile
		}
		source = opts.Source
		registry = opts.Filters
	}

	return &evalContext{
		filename:     filename,
		sourceDir:    sourceDir,
		source:       source,
		env:          env,
		scopes:       []map[string]*parser.MacroCall{{}},
		includeStack: []string{resolved},
		recorded:     map[*parser.MacroCall]bool{},
		readFile:     readFile,
		filters:      registry,
	}
}

// lookup resolves a definition name through the scope chain, innermost
// frame first.
func (ctx *evalContext) lookup(name string) *parser.MacroCall {
	for i := len(ctx.scopes) - 1; i >= 0; i-- {
		if defn, ok := ctx.scopes[i][name]; ok {
			return defn
		}
	}
	return nil
}

// define records a definition in the global frame. #set always writes
// the global frame regardless of the active call's bindings.
func (ctx *evalContext) define(name string, defn *parser.MacroCall) bool {
	if _, exists := ctx.scopes[0][name]; exists {
		return false
	}
	ctx.scopes[0][name] = defn
	return true
}

func (ctx *evalContext) pushScope(frame map[string]*parser.MacroCall) {
	ctx.scopes = append(ctx.scopes, frame)
}

func (ctx *evalContext) popScope() {
	ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
}

func (ctx *evalContext) pushCall(name string) {
	ctx.callStack = append(ctx.callStack, name)
}

func (ctx *evalContext) popCall() {
	ctx.callStack = ctx.callStack[:len(ctx.callStack)-1]
}
