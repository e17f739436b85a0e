package render

import (
	"github.com/picodoc/picodoc-go/parser"
	"github.com/picodoc/picodoc-go/syntax"
)

// MetaTag is a name/content pair injected as a <meta> element.
type MetaTag struct {
	Name    string
	Content string
}

var cliSpan = syntax.Span{}

// InjectHeadItems prepends #link, #script, and #meta nodes synthesized
// from CLI options to a document. The document is returned unchanged
// when there is nothing to inject.
func InjectHeadItems(doc *parser.Document, cssFiles, jsFiles []string, metaTags []MetaTag) *parser.Document {
	if len(cssFiles) == 0 && len(jsFiles) == 0 && len(metaTags) == 0 {
		return doc
	}

	var items []parser.Block

	for _, path := range cssFiles {
		items = append(items, parser.NewMacroCall("link", []*parser.NamedArg{
			synthArg("rel", "stylesheet"),
			synthArg("href", path),
		}, nil, true, cliSpan))
	}

	for _, path := range jsFiles {
		items = append(items, parser.NewMacroCall("script", []*parser.NamedArg{
			synthArg("src", path),
		}, nil, true, cliSpan))
	}

	for _, tag := range metaTags {
		items = append(items, parser.NewMacroCall("meta", []*parser.NamedArg{
			synthArg("name", tag.Name),
			synthArg("content", tag.Content),
		}, nil, true, cliSpan))
	}

	children := make([]parser.Block, 0, len(items)+len(doc.Children))
	children = append(children, items...)
	children = append(children, doc.Children...)
	return parser.NewDocument(children, doc.Span())
}

func synthArg(name, value string) *parser.NamedArg {
	return parser.NewNamedArg(name, parser.NewText(value, cliSpan), cliSpan, cliSpan)
}
