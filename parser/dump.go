package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes a human readable AST tree to w. It is used by the CLI's
// --debug-ast flag and is handy when working on the parser itself.
func Dump(w io.Writer, doc *Document) {
	dumpDocument(w, doc, 0)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func dumpDocument(w io.Writer, doc *Document, depth int) {
	fmt.Fprintf(w, "%sDocument\n", indent(depth))
	for _, child := range doc.Children {
		switch node := child.(type) {
		case *MacroCall:
			dumpMacro(w, node, depth+1)
		case *Paragraph:
			dumpParagraph(w, node, depth+1)
		}
	}
}

func dumpMacro(w io.Writer, node *MacroCall, depth int) {
	bracket := "#"
	if node.Bracketed {
		bracket = "[#...]"
	}
	fmt.Fprintf(w, "%sMacroCall %s%s\n", indent(depth), bracket, node.Name)
	for _, arg := range node.Args {
		dumpArg(w, arg, depth+1)
	}
	if node.Body != nil {
		dumpBody(w, node.Body, depth+1)
	}
}

func dumpArg(w io.Writer, arg *NamedArg, depth int) {
	fmt.Fprintf(w, "%sArg %s=", indent(depth), arg.Name)
	dumpValueInline(w, arg.Value)
	io.WriteString(w, "\n")
}

func dumpValueInline(w io.Writer, value Value) {
	switch v := value.(type) {
	case *Text:
		fmt.Fprintf(w, "Text(%s)", strconv.Quote(v.Value))
	case *RawString:
		fmt.Fprintf(w, "RawString(%s)", strconv.Quote(v.Value))
	case *InterpString:
		io.WriteString(w, "InterpString(")
		for _, part := range v.Parts {
			switch p := part.(type) {
			case *Text:
				fmt.Fprintf(w, "Text(%s)", strconv.Quote(p.Value))
			case *CodeSection:
				io.WriteString(w, "Code[...]")
			}
		}
		io.WriteString(w, ")")
	case *MacroCall:
		fmt.Fprintf(w, "MacroCall(#%s)", v.Name)
	case *RequiredMarker:
		io.WriteString(w, "?")
	}
}

func dumpBody(w io.Writer, body BodyNode, depth int) {
	switch b := body.(type) {
	case *Body:
		fmt.Fprintf(w, "%sBody\n", indent(depth))
		for _, child := range b.Children {
			dumpChild(w, child, depth+1)
		}
	case *InterpString:
		fmt.Fprintf(w, "%sInterpString\n", indent(depth))
		for _, part := range b.Parts {
			switch p := part.(type) {
			case *Text:
				fmt.Fprintf(w, "%sText(%s)\n", indent(depth+1), strconv.Quote(p.Value))
			case *CodeSection:
				fmt.Fprintf(w, "%sCodeSection\n", indent(depth+1))
				for _, child := range p.Body {
					dumpChild(w, child, depth+2)
				}
			}
		}
	case *RawString:
		fmt.Fprintf(w, "%sRawString(%s)\n", indent(depth), strconv.Quote(b.Value))
	}
}

func dumpChild(w io.Writer, child Inline, depth int) {
	switch c := child.(type) {
	case *Text:
		fmt.Fprintf(w, "%sText(%s)\n", indent(depth), strconv.Quote(c.Value))
	case *Escape:
		fmt.Fprintf(w, "%sEscape(%s)\n", indent(depth), strconv.Quote(c.Value))
	case *MacroCall:
		dumpMacro(w, c, depth)
	}
}

func dumpParagraph(w io.Writer, para *Paragraph, depth int) {
	fmt.Fprintf(w, "%sParagraph\n", indent(depth))
	for _, child := range para.Body {
		dumpChild(w, child, depth+1)
	}
}
