package eval

import (
	"github.com/picodoc/picodoc-go/builtins"
	"github.com/picodoc/picodoc-go/parser"
)

// validateNesting checks table and list structure over the fully
// expanded tree: tr under table, td/th under tr, list items under
// ol or ul.
func (e *evaluator) validateNesting(doc *parser.Document) error {
	for _, child := range doc.Children {
		if call, ok := child.(*parser.MacroCall); ok {
			if err := e.validateCall(call, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *evaluator) validateCall(node *parser.MacroCall, parent string) error {
	name := builtins.ResolveName(node.Name)

	switch name {
	case "tr":
		if parent != "table" {
			return e.errorAt("#tr must appear inside #table", node.Span())
		}
	case "td":
		if parent != "tr" {
			return e.errorAt("#td must appear inside #tr", node.Span())
		}
	case "th":
		if parent != "tr" {
			return e.errorAt("#th must appear inside #tr", node.Span())
		}
	case "*":
		if parent != "ul" && parent != "ol" {
			return e.errorAt("#* must appear inside #ol or #ul", node.Span())
		}
	}

	if body, ok := node.Body.(*parser.Body); ok {
		for _, child := range body.Children {
			if call, ok := child.(*parser.MacroCall); ok {
				if err := e.validateCall(call, name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
