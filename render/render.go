// Package render converts an expanded document to HTML. It consumes
// the evaluator's output, whose children are exclusively macro calls;
// unknown macro names render their body only.
package render

import (
	"fmt"
	"strings"

	"github.com/picodoc/picodoc-go/builtins"
	"github.com/picodoc/picodoc-go/parser"
)

// Document renders an expanded AST to a complete HTML document.
func Document(doc *parser.Document) string {
	lang := ""
	var headItems []*parser.MacroCall
	var bodyItems []*parser.MacroCall

	for _, child := range doc.Children {
		call, ok := child.(*parser.MacroCall)
		if !ok {
			continue
		}
		switch builtins.ResolveName(call.Name) {
		case "lang":
			lang = bodyText(call.Body)
		case "meta", "link", "script":
			headItems = append(headItems, call)
		default:
			bodyItems = append(bodyItems, call)
		}
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	if lang != "" {
		sb.WriteString(`<html lang="` + escapeAttr(lang) + "\">\n")
	} else {
		sb.WriteString("<html>\n")
	}
	sb.WriteString("<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	for _, item := range headItems {
		sb.WriteString(renderHeadItem(item))
		sb.WriteString("\n")
	}
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	for _, item := range bodyItems {
		if rendered := renderNode(item); rendered != "" {
			sb.WriteString(rendered)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return sb.String()
}

// Fragment renders only the body content, without the surrounding
// document scaffolding. Head items (#lang, #meta, #link, #script) are
// skipped.
func Fragment(doc *parser.Document) string {
	var sb strings.Builder
	for _, child := range doc.Children {
		call, ok := child.(*parser.MacroCall)
		if !ok {
			continue
		}
		switch builtins.ResolveName(call.Name) {
		case "lang", "meta", "link", "script":
			continue
		}
		if rendered := renderNode(call); rendered != "" {
			sb.WriteString(rendered)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// --- HTML escaping ---

// escapeHTML escapes text for HTML body content. Non-ASCII runes are
// encoded as numeric entities.
func escapeHTML(text string) string {
	var sb strings.Builder
	for _, ch := range text {
		switch {
		case ch == '&':
			sb.WriteString("&amp;")
		case ch == '<':
			sb.WriteString("&lt;")
		case ch == '>':
			sb.WriteString("&gt;")
		case ch > 0x7F:
			fmt.Fprintf(&sb, "&#x%X;", ch)
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

func escapeAttr(text string) string {
	var sb strings.Builder
	for _, ch := range text {
		switch {
		case ch == '&':
			sb.WriteString("&amp;")
		case ch == '<':
			sb.WriteString("&lt;")
		case ch == '>':
			sb.WriteString("&gt;")
		case ch == '"':
			sb.WriteString("&quot;")
		case ch > 0x7F:
			fmt.Fprintf(&sb, "&#x%X;", ch)
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// --- body helpers ---

// bodyText extracts plain text from a body, for #lang and friends.
func bodyText(body parser.BodyNode) string {
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
		var sb strings.Builder
		for _, part := range b.Parts {
			if text, ok := part.(*parser.Text); ok {
				sb.WriteString(text.Value)
			}
		}
		return sb.String()
	case *parser.RawString:
		return b.Value
	}
	return ""
}

func renderBody(body parser.BodyNode) string {
	switch b := body.(type) {
	case *parser.Body:
		var sb strings.Builder
		for _, child := range b.Children {
			sb.WriteString(renderChild(child))
		}
		return sb.String()
	case *parser.InterpString:
		return renderInterpString(b)
	case *parser.RawString:
		return escapeHTML(b.Value)
	}
	return ""
}

func renderInterpString(str *parser.InterpString) string {
	var sb strings.Builder
	for _, part := range str.Parts {
		switch p := part.(type) {
		case *parser.Text:
			sb.WriteString(escapeHTML(p.Value))
		case *parser.CodeSection:
			for _, child := range p.Body {
				sb.WriteString(renderChild(child))
			}
		}
	}
	return sb.String()
}

func renderChild(child parser.Inline) string {
	switch c := child.(type) {
	case *parser.Text:
		return escapeHTML(c.Value)
	case *parser.Escape:
		return renderEscape(c)
	case *parser.MacroCall:
		return renderNode(c)
	}
	return ""
}

func renderEscape(esc *parser.Escape) string {
	runes := []rune(esc.Value)
	if len(runes) == 1 && runes[0] > 0x7F {
		return fmt.Sprintf("&#x%X;", runes[0])
	}
	return escapeHTML(esc.Value)
}

// argText returns a named argument's text value, and whether the
// argument is present.
func argText(node *parser.MacroCall, name string) (string, bool) {
	value := node.Arg(name)
	if value == nil {
		return "", false
	}
	switch v := value.(type) {
	case *parser.Text:
		return v.Value, true
	case *parser.InterpString:
		var sb strings.Builder
		for _, part := range v.Parts {
			if text, ok := part.(*parser.Text); ok {
				sb.WriteString(text.Value)
			}
		}
		return sb.String(), true
	case *parser.RawString:
		return v.Value, true
	}
	return "", true
}

// --- node dispatch ---

func renderNode(node *parser.MacroCall) string {
	switch builtins.ResolveName(node.Name) {
	case "title":
		return "<h1>" + renderBody(node.Body) + "</h1>"
	case "h2":
		return "<h2>" + renderBody(node.Body) + "</h2>"
	case "h3":
		return "<h3>" + renderBody(node.Body) + "</h3>"
	case "h4":
		return "<h4>" + renderBody(node.Body) + "</h4>"
	case "h5":
		return "<h5>" + renderBody(node.Body) + "</h5>"
	case "h6":
		return "<h6>" + renderBody(node.Body) + "</h6>"
	case "p":
		return "<p>" + renderBody(node.Body) + "</p>"
	case "hr":
		return "<hr>"
	case "b":
		return "<strong>" + renderBody(node.Body) + "</strong>"
	case "i":
		return "<em>" + renderBody(node.Body) + "</em>"
	case "url":
		return renderURL(node)
	case "code":
		return renderCode(node)
	case "literal":
		return renderLiteral(node)
	case "ul":
		return renderList(node, "ul")
	case "ol":
		return renderList(node, "ol")
	case "*":
		return renderListItem(node)
	case "table":
		return renderTable(node)
	case "tr":
		return renderTableRow(node)
	case "td":
		return renderTableCell(node, "td")
	case "th":
		return renderTableCell(node, "th")
	default:
		return renderBody(node.Body)
	}
}

// --- render-time builtins ---

func renderURL(node *parser.MacroCall) string {
	link, _ := argText(node, "link")
	text, hasText := argText(node, "text")

	var bodyHTML string
	switch {
	case hasText:
		bodyHTML = escapeHTML(text)
	case node.Body != nil:
		bodyHTML = renderBody(node.Body)
	default:
		bodyHTML = escapeHTML(link)
	}

	return `<a href="` + escapeAttr(link) + `">` + bodyHTML + "</a>"
}

func renderCode(node *parser.MacroCall) string {
	lang, _ := argText(node, "language")
	cls := ""
	if lang != "" {
		cls = ` class="language-` + escapeAttr(lang) + `"`
	}

	if raw, ok := node.Body.(*parser.RawString); ok {
		return "<pre><code" + cls + ">" + escapeHTML(raw.Value) + "</code></pre>"
	}
	return "<code" + cls + ">" + renderBody(node.Body) + "</code>"
}

func renderLiteral(node *parser.MacroCall) string {
	// Raw string bodies pass through unescaped.
	if raw, ok := node.Body.(*parser.RawString); ok {
		return raw.Value
	}
	return renderBody(node.Body)
}

func renderList(node *parser.MacroCall, tag string) string {
	var sb strings.Builder
	sb.WriteString("<" + tag + ">\n")
	if body, ok := node.Body.(*parser.Body); ok {
		for _, child := range body.Children {
			if call, ok := child.(*parser.MacroCall); ok {
				sb.WriteString(renderNode(call))
				sb.WriteString("\n")
			}
		}
	}
	sb.WriteString("</" + tag + ">")
	return sb.String()
}

func renderListItem(node *parser.MacroCall) string {
	body, ok := node.Body.(*parser.Body)
	if !ok {
		return "<li>" + renderBody(node.Body) + "</li>"
	}

	// Inline content comes first, nested lists become block children.
	var inline []parser.Inline
	var blocks []*parser.MacroCall
	seenBlock := false

	for _, child := range body.Children {
		if call, ok := child.(*parser.MacroCall); ok {
			name := builtins.ResolveName(call.Name)
			if name == "ul" || name == "ol" {
				blocks = append(blocks, call)
				seenBlock = true
				continue
			}
		}
		if !seenBlock {
			inline = append(inline, child)
		}
	}

	var sb strings.Builder
	for _, child := range inline {
		sb.WriteString(renderChild(child))
	}
	inlineHTML := strings.TrimSpace(sb.String())

	if len(blocks) > 0 {
		rendered := make([]string, len(blocks))
		for i, block := range blocks {
			rendered[i] = renderNode(block)
		}
		return "<li>" + inlineHTML + "\n" + strings.Join(rendered, "\n") + "\n</li>"
	}
	return "<li>" + inlineHTML + "</li>"
}

func renderTable(node *parser.MacroCall) string {
	var sb strings.Builder
	sb.WriteString("<table>\n")
	if body, ok := node.Body.(*parser.Body); ok {
		for _, child := range body.Children {
			if call, ok := child.(*parser.MacroCall); ok {
				sb.WriteString(renderNode(call))
				sb.WriteString("\n")
			}
		}
	}
	sb.WriteString("</table>")
	return sb.String()
}

func renderTableRow(node *parser.MacroCall) string {
	var sb strings.Builder
	sb.WriteString("<tr>")
	if body, ok := node.Body.(*parser.Body); ok {
		for _, child := range body.Children {
			if call, ok := child.(*parser.MacroCall); ok {
				sb.WriteString(renderNode(call))
			}
		}
	}
	sb.WriteString("</tr>")
	return sb.String()
}

func renderTableCell(node *parser.MacroCall, tag string) string {
	span, _ := argText(node, "span")
	bodyHTML := renderBody(node.Body)
	if span != "" {
		return "<" + tag + ` colspan="` + escapeAttr(span) + `">` + bodyHTML + "</" + tag + ">"
	}
	return "<" + tag + ">" + bodyHTML + "</" + tag + ">"
}

// --- head items ---

func renderHeadItem(node *parser.MacroCall) string {
	switch builtins.ResolveName(node.Name) {
	case "meta":
		metaName, _ := argText(node, "name")
		property, _ := argText(node, "property")
		content, _ := argText(node, "content")
		if property != "" {
			return `<meta property="` + escapeAttr(property) + `" content="` + escapeAttr(content) + `">`
		}
		if metaName != "" {
			return `<meta name="` + escapeAttr(metaName) + `" content="` + escapeAttr(content) + `">`
		}
		return ""
	case "link":
		rel, _ := argText(node, "rel")
		href, _ := argText(node, "href")
		return `<link rel="` + escapeAttr(rel) + `" href="` + escapeAttr(href) + `">`
	case "script":
		src, _ := argText(node, "src")
		if src != "" {
			return `<script src="` + escapeAttr(src) + `"></script>`
		}
		if raw, ok := node.Body.(*parser.RawString); ok {
			return "<script>\n" + raw.Value + "\n</script>"
		}
		if node.Body != nil {
			return "<script>\n" + renderBody(node.Body) + "\n</script>"
		}
		return "<script></script>"
	}
	return ""
}
