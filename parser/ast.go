// Package parser provides parsing for PicoDoc token streams.
package parser

import (
	"github.com/picodoc/picodoc-go/syntax"
)

// Span represents a location range in source text.
type Span = syntax.Span

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
	Span() Span
}

// Inline is a node that can appear in body or paragraph content:
// Text, Escape, or MacroCall.
type Inline interface {
	Node
	inline()
}

// Value is a node that can appear as a named argument value:
// Text, InterpString, RawString, MacroCall, or RequiredMarker.
type Value interface {
	Node
	value()
}

// StringPart is a part of an interpreted string: Text or CodeSection.
type StringPart interface {
	Node
	stringPart()
}

// BodyNode is a macro body: Body, InterpString, or RawString.
type BodyNode interface {
	Node
	bodyNode()
}

// Block is a document-level node: MacroCall or Paragraph.
type Block interface {
	Node
	block()
}

// Text is coalesced literal text.
type Text struct {
	Value string
	span  Span
}

func NewText(value string, span Span) *Text { return &Text{Value: value, span: span} }

func (t *Text) node()       {}
func (t *Text) inline()     {}
func (t *Text) value()      {}
func (t *Text) stringPart() {}
func (t *Text) Span() Span  { return t.span }

// Escape is a resolved prose escape character.
type Escape struct {
	Value string
	span  Span
}

func NewEscape(value string, span Span) *Escape { return &Escape{Value: value, span: span} }

func (e *Escape) node()      {}
func (e *Escape) inline()    {}
func (e *Escape) Span() Span { return e.span }

// RawString is a raw string literal, whitespace-stripped, no escapes.
type RawString struct {
	Value string
	span  Span
}

func NewRawString(value string, span Span) *RawString { return &RawString{Value: value, span: span} }

func (r *RawString) node()     {}
func (r *RawString) value()    {}
func (r *RawString) bodyNode() {}
func (r *RawString) Span() Span { return r.span }

// RequiredMarker is the '?' value in macro parameter declarations.
type RequiredMarker struct {
	span Span
}

func NewRequiredMarker(span Span) *RequiredMarker { return &RequiredMarker{span: span} }

func (r *RequiredMarker) node()      {}
func (r *RequiredMarker) value()     {}
func (r *RequiredMarker) Span() Span { return r.span }

// CodeSection is an embedded macro region inside an interpreted string,
// opened with \[ and closed at bracket depth zero.
type CodeSection struct {
	Body []Inline
	span Span
}

func NewCodeSection(body []Inline, span Span) *CodeSection {
	return &CodeSection{Body: body, span: span}
}

func (c *CodeSection) node()       {}
func (c *CodeSection) stringPart() {}
func (c *CodeSection) Span() Span  { return c.span }

// InterpString is an interpreted string literal with possible code sections.
type InterpString struct {
	Parts []StringPart
	span  Span
}

func NewInterpString(parts []StringPart, span Span) *InterpString {
	return &InterpString{Parts: parts, span: span}
}

func (s *InterpString) node()     {}
func (s *InterpString) value()    {}
func (s *InterpString) bodyNode() {}
func (s *InterpString) Span() Span { return s.span }

// NamedArg is a name=value argument of a macro call.
type NamedArg struct {
	Name     string
	Value    Value
	NameSpan Span
	span     Span
}

func NewNamedArg(name string, value Value, nameSpan, span Span) *NamedArg {
	return &NamedArg{Name: name, Value: value, NameSpan: nameSpan, span: span}
}

func (a *NamedArg) node()      {}
func (a *NamedArg) Span() Span { return a.span }

// Body is colon-delimited macro body content.
type Body struct {
	Children []Inline
	span     Span
}

func NewBody(children []Inline, span Span) *Body { return &Body{Children: children, span: span} }

func (b *Body) node()     {}
func (b *Body) bodyNode() {}
func (b *Body) Span() Span { return b.span }

// MacroCall is a macro invocation, #name or [#name ...].
type MacroCall struct {
	Name      string
	Args      []*NamedArg
	Body      BodyNode // nil when absent
	Bracketed bool
	span      Span
}

func NewMacroCall(name string, args []*NamedArg, body BodyNode, bracketed bool, span Span) *MacroCall {
	return &MacroCall{Name: name, Args: args, Body: body, Bracketed: bracketed, span: span}
}

func (m *MacroCall) node()      {}
func (m *MacroCall) inline()    {}
func (m *MacroCall) value()     {}
func (m *MacroCall) block()     {}
func (m *MacroCall) Span() Span { return m.span }

// Arg returns the value of the named argument, or nil.
func (m *MacroCall) Arg(name string) Value {
	for _, arg := range m.Args {
		if arg.Name == name {
			return arg.Value
		}
	}
	return nil
}

// Paragraph is a bare text block; the evaluator wraps it in an implicit #p.
type Paragraph struct {
	Body []Inline
	span Span
}

func NewParagraph(body []Inline, span Span) *Paragraph { return &Paragraph{Body: body, span: span} }

func (p *Paragraph) node()      {}
func (p *Paragraph) block()     {}
func (p *Paragraph) Span() Span { return p.span }

// Document is the root node. After evaluation its children are exclusively
// MacroCall nodes.
type Document struct {
	Children []Block
	span     Span
}

func NewDocument(children []Block, span Span) *Document {
	return &Document{Children: children, span: span}
}

func (d *Document) node()      {}
func (d *Document) Span() Span { return d.span }
