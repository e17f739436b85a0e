// Package eval expands a parsed document: it collects #set definitions,
// resolves conditionals and includes, inlines user macro calls, splits
// pipe delimited tables, and wraps paragraphs in #p. The result is a
// Document whose children are exclusively macro calls ready for the
// renderer.
package eval

import (
	goerrors "errors"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/picodoc/picodoc-go/builtins"
	"github.com/picodoc/picodoc-go/filters"
	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/parser"
	"github.com/picodoc/picodoc-go/syntax"
)

// Options carries optional evaluation inputs.
type Options struct {
	// Env seeds the env.* namespace. A top level #set name=env.K
	// overrides a seeded value.
	Env map[string]string

	// Source is the document's source text, used for error display.
	Source string

	// ReadFile loads included files. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)

	// Filters locates external filter executables. A call whose name
	// matches neither a builtin nor a definition runs the filter of
	// that name when one is found; its stdout is parsed as markup and
	// expanded in place.
	Filters *filters.Registry
}

// Evaluate expands all evaluation time directives in doc. The filename
// sets the base directory for relative #include resolution.
func Evaluate(doc *parser.Document, filename string, opts *Options) (*parser.Document, error) {
	if filename == "" {
		filename = "input.pdoc"
	}
	e := &evaluator{ctx: newContext(filename, opts)}

	// Definition collection pass over the top level, enabling forward
	// references before any expansion happens.
	for _, child := range doc.Children {
		call, ok := child.(*parser.MacroCall)
		if !ok || builtins.ResolveName(call.Name) != "set" {
			continue
		}
		e.ctx.recorded[call] = true
		if err := e.recordSet(call); err != nil {
			return nil, err
		}
	}

	expanded, err := e.expandTopLevel(doc.Children)
	if err != nil {
		return nil, err
	}

	// Text and Escape nodes surviving at the top level are whitespace
	// left over from conditionals; only macro calls reach the renderer.
	var children []parser.Block
	for _, node := range expanded {
		if call, ok := node.(*parser.MacroCall); ok {
			children = append(children, call)
		}
	}
	result := parser.NewDocument(children, doc.Span())

	if err := e.validateNesting(result); err != nil {
		return nil, err
	}
	return result, nil
}

type evaluator struct {
	ctx *evalContext
}

func (e *evaluator) errorAt(message string, span syntax.Span) error {
	err := errors.New(errors.KindEval, message).
		WithSpan(span).
		WithFile(e.ctx.filename).
		WithSource(e.ctx.source)
	if len(e.ctx.callStack) > 0 {
		err = err.WithChain(e.ctx.callStack)
	}
	return err
}

// --- top level expansion ---

func (e *evaluator) expandTopLevel(children []parser.Block) ([]parser.Inline, error) {
	var result []parser.Inline
	for _, child := range children {
		nodes, err := e.expandTopNode(child)
		if err != nil {
			return nil, err
		}
		result = append(result, nodes...)
	}
	return result, nil
}

func (e *evaluator) expandTopNode(node parser.Block) ([]parser.Inline, error) {
	if para, ok := node.(*parser.Paragraph); ok {
		expanded, err := e.expandBodyChildren(para.Body)
		if err != nil {
			return nil, err
		}
		body := parser.NewBody(expanded, para.Span())
		call := parser.NewMacroCall("p", nil, body, false, para.Span())
		return []parser.Inline{call}, nil
	}
	return e.expandMacro(node.(*parser.MacroCall))
}

// --- macro expansion ---

func (e *evaluator) expandMacro(node *parser.MacroCall) ([]parser.Inline, error) {
	if key, ok := strings.CutPrefix(node.Name, "env."); ok {
		if value, ok := e.ctx.env[key]; ok {
			return []parser.Inline{parser.NewText(value, node.Span())}, nil
		}
		return nil, nil
	}

	name := builtins.ResolveName(node.Name)

	switch name {
	case "comment":
		return nil, nil
	case "set":
		if e.ctx.recorded[node] {
			// Already collected before expansion started.
			return nil, nil
		}
		return nil, e.recordSet(node)
	case "ifeq":
		return e.expandConditional(node, true)
	case "ifne":
		return e.expandConditional(node, false)
	case "ifset":
		return e.expandIfset(node)
	case "include":
		return e.expandInclude(node)
	case "table":
		return e.expandTable(node)
	}

	if _, isBuiltin := builtins.Builtins[name]; !isBuiltin {
		if defn := e.ctx.lookup(node.Name); defn != nil {
			return e.expandUserMacro(node, defn, node.Name)
		}
		// #version. at sentence end: expand the definition and keep
		// the dot as literal text.
		if base, ok := strings.CutSuffix(node.Name, "."); ok {
			if defn := e.ctx.lookup(base); defn != nil {
				result, err := e.expandUserMacro(node, defn, base)
				if err != nil {
					return nil, err
				}
				return append(result, parser.NewText(".", node.Span())), nil
			}
		}
		if e.ctx.filters != nil {
			if path := e.ctx.filters.Find(node.Name); path != "" {
				return e.expandFilter(node, path)
			}
		}
	}

	// Render-time macro: resolve macro-reference argument values and
	// recurse into the body to expand nested directives.
	args, err := e.resolveArgs(node.Args)
	if err != nil {
		return nil, err
	}
	body, err := e.recurseBody(node.Body)
	if err != nil {
		return nil, err
	}
	call := parser.NewMacroCall(node.Name, args, body, node.Bracketed, node.Span())
	return []parser.Inline{call}, nil
}

func (e *evaluator) expandBodyChildren(children []parser.Inline) ([]parser.Inline, error) {
	var result []parser.Inline
	for _, child := range children {
		if call, ok := child.(*parser.MacroCall); ok {
			nodes, err := e.expandMacro(call)
			if err != nil {
				return nil, err
			}
			result = append(result, nodes...)
			continue
		}
		result = append(result, child)
	}
	return result, nil
}

func (e *evaluator) recurseBody(body parser.BodyNode) (parser.BodyNode, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case *parser.Body:
		children, err := e.expandBodyChildren(b.Children)
		if err != nil {
			return nil, err
		}
		return parser.NewBody(children, b.Span()), nil
	case *parser.InterpString:
		return e.expandInterpString(b), nil
	default:
		// Raw strings reach the renderer untouched.
		return body, nil
	}
}

// expandInterpString resolves each code section to its plain text
// expansion in place.
func (e *evaluator) expandInterpString(str *parser.InterpString) *parser.InterpString {
	changed := false
	parts := make([]parser.StringPart, len(str.Parts))
	for i, part := range str.Parts {
		if cs, ok := part.(*parser.CodeSection); ok {
			text := parser.NewText(e.resolveCodeSection(cs), cs.Span())
			parts[i] = parser.NewCodeSection([]parser.Inline{text}, cs.Span())
			changed = true
			continue
		}
		parts[i] = part
	}
	if !changed {
		return str
	}
	return parser.NewInterpString(parts, str.Span())
}

func (e *evaluator) resolveArgs(args []*parser.NamedArg) ([]*parser.NamedArg, error) {
	if len(args) == 0 {
		return args, nil
	}
	resolved := make([]*parser.NamedArg, len(args))
	for i, arg := range args {
		if ref, ok := arg.Value.(*parser.MacroCall); ok {
			text := parser.NewText(e.resolveRef(ref.Name), ref.Span())
			resolved[i] = parser.NewNamedArg(arg.Name, text, arg.NameSpan, arg.Span())
			continue
		}
		resolved[i] = arg
	}
	return resolved, nil
}

// --- value resolution ---

// resolveValue extracts plain text from an argument value.
func (e *evaluator) resolveValue(value parser.Value) string {
	switch v := value.(type) {
	case *parser.Text:
		return v.Value
	case *parser.RawString:
		return v.Value
	case *parser.InterpString:
		var sb strings.Builder
		for _, part := range v.Parts {
			switch p := part.(type) {
			case *parser.Text:
				sb.WriteString(p.Value)
			case *parser.CodeSection:
				sb.WriteString(e.resolveCodeSection(p))
			}
		}
		return sb.String()
	case *parser.MacroCall:
		return e.resolveRef(v.Name)
	}
	return ""
}

func (e *evaluator) resolveCodeSection(cs *parser.CodeSection) string {
	var sb strings.Builder
	for _, child := range cs.Body {
		switch c := child.(type) {
		case *parser.Text:
			sb.WriteString(c.Value)
		case *parser.MacroCall:
			sb.WriteString(e.resolveRef(c.Name))
		}
	}
	return sb.String()
}

// resolveRef resolves a bare macro reference to its definition text,
// or to an env value for env.* names. Unknown names resolve empty.
func (e *evaluator) resolveRef(name string) string {
	if key, ok := strings.CutPrefix(name, "env."); ok {
		return e.ctx.env[key]
	}
	if defn := e.ctx.lookup(builtins.ResolveName(name)); defn != nil {
		return e.defText(defn)
	}
	return ""
}

// defText extracts the plain text of a definition's body.
func (e *evaluator) defText(defn *parser.MacroCall) string {
	switch body := defn.Body.(type) {
	case *parser.Body:
		var sb strings.Builder
		for _, child := range body.Children {
			switch c := child.(type) {
			case *parser.Text:
				sb.WriteString(c.Value)
			case *parser.Escape:
				sb.WriteString(c.Value)
			}
		}
		return sb.String()
	case *parser.InterpString:
		return e.resolveValue(body)
	case *parser.RawString:
		return body.Value
	}
	return ""
}

// --- expansion time directives ---

func (e *evaluator) recordSet(node *parser.MacroCall) error {
	nameVal := node.Arg("name")
	if nameVal == nil {
		return nil
	}
	name := e.resolveValue(nameVal)
	if !e.ctx.define(name, node) {
		return e.errorAt("duplicate definition: "+name, node.Span())
	}
	if key, ok := strings.CutPrefix(name, "env."); ok {
		e.ctx.env[key] = e.defText(node)
	}
	return nil
}

func (e *evaluator) expandConditional(node *parser.MacroCall, wantEqual bool) ([]parser.Inline, error) {
	lhsVal := node.Arg("lhs")
	rhsVal := node.Arg("rhs")
	if lhsVal == nil || rhsVal == nil {
		return nil, nil
	}
	equal := e.resolveValue(lhsVal) == e.resolveValue(rhsVal)
	if equal == wantEqual {
		return e.conditionBody(node)
	}
	return nil, nil
}

func (e *evaluator) expandIfset(node *parser.MacroCall) ([]parser.Inline, error) {
	nameVal := node.Arg("name")
	if nameVal == nil {
		return nil, nil
	}
	name := e.resolveValue(nameVal)
	defined := false
	if key, ok := strings.CutPrefix(name, "env."); ok {
		_, defined = e.ctx.env[key]
	} else {
		defined = e.ctx.lookup(name) != nil
	}
	if defined {
		return e.conditionBody(node)
	}
	return nil, nil
}

func (e *evaluator) conditionBody(node *parser.MacroCall) ([]parser.Inline, error) {
	if body, ok := node.Body.(*parser.Body); ok {
		return e.expandBodyChildren(body.Children)
	}
	return nil, nil
}

func (e *evaluator) expandInclude(node *parser.MacroCall) ([]parser.Inline, error) {
	fileVal := node.Arg("file")
	if fileVal == nil {
		return nil, nil
	}
	filename := e.resolveValue(fileVal)
	path := filepath.Join(e.ctx.sourceDir, filename)
	resolved, err := filepath.Abs(path)
	if err != nil {
		resolved = path
	}

	if len(e.ctx.includeStack) >= maxIncludeDepth {
		return nil, e.errorAt("include depth limit (16) exceeded", node.Span())
	}
	for _, active := range e.ctx.includeStack {
		if active == resolved {
			return nil, e.errorAt("circular include detected: "+filename, node.Span())
		}
	}

	content, err := e.ctx.readFile(path)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return nil, e.errorAt("included file not found: "+filename, node.Span())
		}
		return nil, e.errorAt("cannot read included file "+filename+": "+err.Error(), node.Span())
	}

	doc, err := parser.Parse(string(content), path)
	if err != nil {
		return nil, err
	}

	prevDir, prevFile, prevSource := e.ctx.sourceDir, e.ctx.filename, e.ctx.source
	e.ctx.includeStack = append(e.ctx.includeStack, resolved)
	e.ctx.sourceDir = filepath.Dir(path)
	e.ctx.filename = path
	e.ctx.source = string(content)

	result, expandErr := e.expandTopLevel(doc.Children)

	e.ctx.sourceDir, e.ctx.filename, e.ctx.source = prevDir, prevFile, prevSource
	e.ctx.includeStack = e.ctx.includeStack[:len(e.ctx.includeStack)-1]

	return result, expandErr
}

// --- user macros ---

func (e *evaluator) expandUserMacro(node, defn *parser.MacroCall, name string) ([]parser.Inline, error) {
	if len(e.ctx.callStack) >= maxCallDepth {
		return nil, e.errorAt("macro call depth limit exceeded", node.Span())
	}

	// Bind declared parameters in the caller's scope before pushing
	// the new frame, so defaults and reference values resolve against
	// the environment at the call site.
	frame := map[string]*parser.MacroCall{}
	for _, param := range defn.Args {
		if param.Name == "name" {
			continue
		}
		if strings.HasPrefix(param.Name, "env.") {
			return nil, e.errorAt("cannot shadow environment variable", node.Span())
		}
		_, required := param.Value.(*parser.RequiredMarker)

		var bound parser.BodyNode
		switch {
		case node.Arg(param.Name) != nil:
			bound = e.textBody(e.resolveValue(node.Arg(param.Name)), node.Span())
		case param.Name == "body" && node.Body != nil:
			bound = node.Body
		case !required:
			bound = e.textBody(e.resolveValue(param.Value), node.Span())
		default:
			return nil, e.errorAt("missing required argument: "+param.Name, node.Span())
		}
		frame[param.Name] = parser.NewMacroCall("set", nil, bound, false, node.Span())
	}

	e.ctx.pushCall(name)
	e.ctx.pushScope(frame)
	defer func() {
		e.ctx.popScope()
		e.ctx.popCall()
	}()

	switch body := defn.Body.(type) {
	case *parser.Body:
		return e.expandBodyChildren(body.Children)
	case *parser.InterpString:
		return []parser.Inline{parser.NewText(e.resolveValue(body), node.Span())}, nil
	case *parser.RawString:
		return []parser.Inline{parser.NewText(body.Value, node.Span())}, nil
	}
	return nil, nil
}

func (e *evaluator) textBody(text string, span syntax.Span) *parser.Body {
	return parser.NewBody([]parser.Inline{parser.NewText(text, span)}, span)
}

// --- external filters ---

// expandFilter runs a filter executable for an unresolved call and
// expands the markup it prints, under the same depth accounting as
// user macros so a filter emitting its own call cannot loop forever.
func (e *evaluator) expandFilter(node *parser.MacroCall, path string) ([]parser.Inline, error) {
	if len(e.ctx.callStack) >= maxCallDepth {
		return nil, e.errorAt("macro call depth limit exceeded", node.Span())
	}

	args := map[string]string{}
	for _, arg := range node.Args {
		args[arg.Name] = e.resolveValue(arg.Value)
	}

	var body *string
	if node.Body != nil {
		text := e.bodyPlainText(node.Body)
		body = &text
	}

	output, err := e.ctx.filters.Invoke(node.Name, path, args, body, e.ctx.env, node.Span())
	if err != nil {
		if perr, ok := err.(*errors.Error); ok {
			return nil, e.errorAt(perr.Message, node.Span())
		}
		return nil, e.errorAt(err.Error(), node.Span())
	}

	doc, err := parser.Parse(output, e.ctx.filename)
	if err != nil {
		if perr, ok := err.(*errors.Error); ok {
			return nil, e.errorAt("filter '"+node.Name+"' produced invalid markup: "+perr.Message, node.Span())
		}
		return nil, err
	}

	e.ctx.pushCall(node.Name)
	defer e.ctx.popCall()
	return e.expandTopLevel(doc.Children)
}

// bodyPlainText flattens a call body to the text a filter receives.
func (e *evaluator) bodyPlainText(body parser.BodyNode) string {
	switch b := body.(type) {
	case *parser.Body:
		var sb strings.Builder
		for _, child := range b.Children {
			switch c := child.(type) {
			case *parser.Text:
				sb.WriteString(c.Value)
			case *parser.Escape:
				sb.WriteString(c.Value)
			}
		}
		return sb.String()
	case *parser.InterpString:
		return e.resolveValue(b)
	case *parser.RawString:
		return b.Value
	}
	return ""
}

// --- pipe delimited tables ---

func (e *evaluator) expandTable(node *parser.MacroCall) ([]parser.Inline, error) {
	body, ok := node.Body.(*parser.Body)
	if !ok {
		return []parser.Inline{node}, nil
	}

	hasPipe := false
	for _, child := range body.Children {
		if text, ok := child.(*parser.Text); ok && strings.Contains(text.Value, "|") {
			hasPipe = true
			break
		}
	}

	if !hasPipe {
		newBody, err := e.recurseBody(body)
		if err != nil {
			return nil, err
		}
		call := parser.NewMacroCall(node.Name, node.Args, newBody, node.Bracketed, node.Span())
		return []parser.Inline{call}, nil
	}

	rows, err := e.parsePipeRows(body)
	if err != nil {
		return nil, err
	}

	span := node.Span()
	var trNodes []parser.Inline
	for i, row := range rows {
		cellTag := "td"
		if i == 0 {
			cellTag = "th"
		}
		var cells []parser.Inline
		for _, cell := range row {
			cellBody := parser.NewBody(cell, span)
			cells = append(cells, parser.NewMacroCall(cellTag, nil, cellBody, true, span))
		}
		trBody := parser.NewBody(cells, span)
		trNodes = append(trNodes, parser.NewMacroCall("tr", nil, trBody, true, span))
	}

	tableBody := parser.NewBody(trNodes, span)
	table := parser.NewMacroCall("table", nil, tableBody, node.Bracketed, span)
	return []parser.Inline{table}, nil
}

// parsePipeRows splits a table body into rows of cells: text children
// split at newlines (row break) and pipes (cell break), macro children
// expand into the current cell.
func (e *evaluator) parsePipeRows(body *parser.Body) ([][][]parser.Inline, error) {
	rows := [][][]parser.Inline{{nil}}

	appendToCell := func(node parser.Inline) {
		row := rows[len(rows)-1]
		row[len(row)-1] = append(row[len(row)-1], node)
	}

	for _, child := range body.Children {
		switch c := child.(type) {
		case *parser.Text:
			rows = splitTextIntoRows(c, rows)
		case *parser.MacroCall:
			expanded, err := e.expandMacro(c)
			if err != nil {
				return nil, err
			}
			for _, n := range expanded {
				appendToCell(n)
			}
		default:
			appendToCell(child)
		}
	}

	rows = dropEmptyRows(rows)
	for _, row := range rows {
		for i, cell := range row {
			row[i] = trimCell(cell)
		}
	}
	return dropEmptyRows(rows), nil
}

func splitTextIntoRows(text *parser.Text, rows [][][]parser.Inline) [][][]parser.Inline {
	appendToCell := func(node parser.Inline) {
		row := rows[len(rows)-1]
		row[len(row)-1] = append(row[len(row)-1], node)
	}

	remaining := text.Value
	for remaining != "" {
		nl := strings.IndexByte(remaining, '\n')
		pipe := strings.IndexByte(remaining, '|')
		switch {
		case nl == -1 && pipe == -1:
			appendToCell(parser.NewText(remaining, text.Span()))
			remaining = ""
		case nl >= 0 && (pipe == -1 || nl < pipe):
			if before := remaining[:nl]; before != "" {
				appendToCell(parser.NewText(before, text.Span()))
			}
			rows = append(rows, [][]parser.Inline{nil})
			remaining = remaining[nl+1:]
		default:
			if before := remaining[:pipe]; before != "" {
				appendToCell(parser.NewText(before, text.Span()))
			}
			rows[len(rows)-1] = append(rows[len(rows)-1], nil)
			remaining = remaining[pipe+1:]
		}
	}
	return rows
}

func dropEmptyRows(rows [][][]parser.Inline) [][][]parser.Inline {
	var kept [][][]parser.Inline
	for _, row := range rows {
		for _, cell := range row {
			if len(cell) > 0 {
				kept = append(kept, row)
				break
			}
		}
	}
	return kept
}

// trimCell strips whitespace from Text nodes at cell boundaries.
func trimCell(cell []parser.Inline) []parser.Inline {
	for len(cell) > 0 {
		text, ok := cell[0].(*parser.Text)
		if !ok {
			break
		}
		stripped := strings.TrimLeftFunc(text.Value, unicode.IsSpace)
		if stripped != "" {
			cell[0] = parser.NewText(stripped, text.Span())
			break
		}
		cell = cell[1:]
	}
	for len(cell) > 0 {
		text, ok := cell[len(cell)-1].(*parser.Text)
		if !ok {
			break
		}
		stripped := strings.TrimRightFunc(text.Value, unicode.IsSpace)
		if stripped != "" {
			cell[len(cell)-1] = parser.NewText(stripped, text.Span())
			break
		}
		cell = cell[:len(cell)-1]
	}
	return cell
}
