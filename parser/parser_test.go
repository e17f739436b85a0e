package parser

import (
	"strings"
	"testing"

	goerrors "errors"

	"github.com/picodoc/picodoc-go/internal/errors"
)

func mustParse(t *testing.T, source string) *Document {
	t.Helper()
	doc, err := Parse(source, "test.pd")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", source, err)
	}
	return doc
}

func onlyCall(t *testing.T, source string) *MacroCall {
	t.Helper()
	doc := mustParse(t, source)
	if len(doc.Children) != 1 {
		t.Fatalf("Parse(%q) = %d blocks, want 1", source, len(doc.Children))
	}
	call, ok := doc.Children[0].(*MacroCall)
	if !ok {
		t.Fatalf("Parse(%q) block is %T, want *MacroCall", source, doc.Children[0])
	}
	return call
}

func bodyText(t *testing.T, body BodyNode) string {
	t.Helper()
	b, ok := body.(*Body)
	if !ok {
		t.Fatalf("body is %T, want *Body", body)
	}
	var sb strings.Builder
	for _, child := range b.Children {
		switch c := child.(type) {
		case *Text:
			sb.WriteString(c.Value)
		case *Escape:
			sb.WriteString(c.Value)
		default:
			t.Fatalf("unexpected body child %T", child)
		}
	}
	return sb.String()
}

func TestSimpleCall(t *testing.T) {
	call := onlyCall(t, "#title: Hello World\n")
	if call.Name != "title" {
		t.Errorf("name = %q, want title", call.Name)
	}
	if call.Bracketed {
		t.Error("unbracketed call marked bracketed")
	}
	if got := bodyText(t, call.Body); got != "Hello World" {
		t.Errorf("body = %q, want %q", got, "Hello World")
	}
}

func TestCallWithoutBody(t *testing.T) {
	call := onlyCall(t, "#hr\n")
	if call.Name != "hr" || call.Body != nil || len(call.Args) != 0 {
		t.Errorf("unexpected call %+v", call)
	}
}

func TestBracketedCall(t *testing.T) {
	call := onlyCall(t, `[#url link="https://example.com" text=click]`)
	if call.Name != "url" || !call.Bracketed {
		t.Fatalf("unexpected call %+v", call)
	}
	if len(call.Args) != 2 {
		t.Fatalf("args = %d, want 2", len(call.Args))
	}
	link, ok := call.Arg("link").(*InterpString)
	if !ok {
		t.Fatalf("link arg is %T, want *InterpString", call.Arg("link"))
	}
	if len(link.Parts) != 1 {
		t.Fatalf("link parts = %d, want 1", len(link.Parts))
	}
	if text, ok := link.Parts[0].(*Text); !ok || text.Value != "https://example.com" {
		t.Errorf("link value = %v, want https://example.com", link.Parts[0])
	}
	if text, ok := call.Arg("text").(*Text); !ok || text.Value != "click" {
		t.Errorf("text arg = %v, want bareword click", call.Arg("text"))
	}
}

func TestArgValueKinds(t *testing.T) {
	call := onlyCall(t, `[#m a=word b="interp" c="""raw""" d=#ref e=? f=[#inner x=1]]`)
	if _, ok := call.Arg("a").(*Text); !ok {
		t.Errorf("a is %T, want *Text", call.Arg("a"))
	}
	if _, ok := call.Arg("b").(*InterpString); !ok {
		t.Errorf("b is %T, want *InterpString", call.Arg("b"))
	}
	if raw, ok := call.Arg("c").(*RawString); !ok || raw.Value != "raw" {
		t.Errorf("c = %v, want RawString(raw)", call.Arg("c"))
	}
	if ref, ok := call.Arg("d").(*MacroCall); !ok || ref.Name != "ref" {
		t.Errorf("d = %v, want macro ref #ref", call.Arg("d"))
	}
	if _, ok := call.Arg("e").(*RequiredMarker); !ok {
		t.Errorf("e is %T, want *RequiredMarker", call.Arg("e"))
	}
	inner, ok := call.Arg("f").(*MacroCall)
	if !ok || inner.Name != "inner" || !inner.Bracketed {
		t.Errorf("f = %v, want bracketed call #inner", call.Arg("f"))
	}
}

func TestStringBodyNoWhitespace(t *testing.T) {
	call := onlyCall(t, `#b"bold"`)
	if call.Name != "b" {
		t.Fatalf("name = %q, want b", call.Name)
	}
	s, ok := call.Body.(*InterpString)
	if !ok {
		t.Fatalf("body is %T, want *InterpString", call.Body)
	}
	if text, ok := s.Parts[0].(*Text); !ok || text.Value != "bold" {
		t.Errorf("body = %v, want bold", s.Parts[0])
	}
}

func TestRawStringBody(t *testing.T) {
	call := onlyCall(t, "#code: \"\"\"\n  x := 1\n  \"\"\"")
	raw, ok := call.Body.(*RawString)
	if !ok {
		t.Fatalf("body is %T, want *RawString", call.Body)
	}
	if raw.Value != "x := 1" {
		t.Errorf("body = %q, want stripped content", raw.Value)
	}
}

func TestMultiLineBody(t *testing.T) {
	call := onlyCall(t, "#p:\nline one\nline two\n\n")
	if got := bodyText(t, call.Body); got != "line one\nline two" {
		t.Errorf("body = %q, want joined lines", got)
	}
}

func TestBracketedMultiLineBody(t *testing.T) {
	call := onlyCall(t, "[#p: line one\nline two]")
	if got := bodyText(t, call.Body); got != "line one\nline two" {
		t.Errorf("body = %q, want joined lines", got)
	}
}

func TestNestedCalls(t *testing.T) {
	call := onlyCall(t, "#p: start [#b: bold] end\n")
	body := call.Body.(*Body)
	if len(body.Children) != 3 {
		t.Fatalf("children = %d, want 3: %v", len(body.Children), body.Children)
	}
	if text := body.Children[0].(*Text); text.Value != "start " {
		t.Errorf("first = %q, want %q", text.Value, "start ")
	}
	inner, ok := body.Children[1].(*MacroCall)
	if !ok || inner.Name != "b" {
		t.Fatalf("second = %v, want #b", body.Children[1])
	}
	if got := bodyText(t, inner.Body); got != "bold" {
		t.Errorf("inner body = %q, want bold", got)
	}
	if text := body.Children[2].(*Text); text.Value != " end" {
		t.Errorf("third = %q, want %q", text.Value, " end")
	}
}

func TestParagraph(t *testing.T) {
	doc := mustParse(t, "line one\nline two\n\nsecond paragraph\n")
	if len(doc.Children) != 2 {
		t.Fatalf("blocks = %d, want 2", len(doc.Children))
	}
	first, ok := doc.Children[0].(*Paragraph)
	if !ok {
		t.Fatalf("first block is %T, want *Paragraph", doc.Children[0])
	}
	if len(first.Body) != 1 {
		t.Fatalf("paragraph children = %v, want one coalesced text", first.Body)
	}
	if text := first.Body[0].(*Text); text.Value != "line one\nline two" {
		t.Errorf("paragraph text = %q, want newline-joined lines", text.Value)
	}
}

func TestParagraphEndsAtMacroBlock(t *testing.T) {
	doc := mustParse(t, "some text\n#hr\n")
	if len(doc.Children) != 2 {
		t.Fatalf("blocks = %d, want 2: %v", len(doc.Children), doc.Children)
	}
	if _, ok := doc.Children[0].(*Paragraph); !ok {
		t.Errorf("first block is %T, want *Paragraph", doc.Children[0])
	}
	if call, ok := doc.Children[1].(*MacroCall); !ok || call.Name != "hr" {
		t.Errorf("second block = %v, want #hr", doc.Children[1])
	}
}

func TestParagraphWithInlineCall(t *testing.T) {
	doc := mustParse(t, "see [#b: this] here\n")
	para := doc.Children[0].(*Paragraph)
	if len(para.Body) != 3 {
		t.Fatalf("children = %v, want text, call, text", para.Body)
	}
	if call, ok := para.Body[1].(*MacroCall); !ok || call.Name != "b" {
		t.Errorf("middle = %v, want #b", para.Body[1])
	}
}

func TestEscapesInParagraph(t *testing.T) {
	doc := mustParse(t, `a \# b \[ c`)
	para := doc.Children[0].(*Paragraph)
	// Escapes stay separate nodes between coalesced text runs.
	want := []string{"a ", "#", " b ", "[", " c"}
	if len(para.Body) != len(want) {
		t.Fatalf("children = %v, want %d nodes", para.Body, len(want))
	}
	for i, w := range want {
		var got string
		switch node := para.Body[i].(type) {
		case *Text:
			got = node.Value
		case *Escape:
			got = node.Value
		}
		if got != w {
			t.Errorf("child %d = %q, want %q", i, got, w)
		}
	}
}

func TestLooseStringStaysText(t *testing.T) {
	doc := mustParse(t, `say "hi" now`)
	para := doc.Children[0].(*Paragraph)
	if len(para.Body) != 1 {
		t.Fatalf("children = %v, want one text node", para.Body)
	}
	if text := para.Body[0].(*Text); text.Value != `say "hi" now` {
		t.Errorf("text = %q, want quotes preserved", text.Value)
	}
}

func TestInterpStringCodeSection(t *testing.T) {
	call := onlyCall(t, `#set name=greeting: "Hello \[#target]!"`)
	s, ok := call.Body.(*InterpString)
	if !ok {
		t.Fatalf("body is %T, want *InterpString", call.Body)
	}
	if len(s.Parts) != 3 {
		t.Fatalf("parts = %d, want text, code, text", len(s.Parts))
	}
	code, ok := s.Parts[1].(*CodeSection)
	if !ok {
		t.Fatalf("middle part is %T, want *CodeSection", s.Parts[1])
	}
	if len(code.Body) != 1 {
		t.Fatalf("code body = %v, want one call", code.Body)
	}
	if ref, ok := code.Body[0].(*MacroCall); !ok || ref.Name != "target" {
		t.Errorf("code call = %v, want #target", code.Body[0])
	}
}

func TestArgsThenBody(t *testing.T) {
	call := onlyCall(t, "#set name=x: the value\n")
	if len(call.Args) != 1 || call.Args[0].Name != "name" {
		t.Fatalf("args = %v, want name=x", call.Args)
	}
	if text, ok := call.Args[0].Value.(*Text); !ok || text.Value != "x" {
		t.Errorf("arg value = %v, want x", call.Args[0].Value)
	}
	if got := bodyText(t, call.Body); got != "the value" {
		t.Errorf("body = %q, want %q", got, "the value")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{"#", "expected macro name after '#'"},
		{"[#", "expected macro name after '#'"},
		{"[#m a=]", "expected argument value"},
		{"[#m a", "expected argument, ':' body, string body, or ']'"},
		{"[#m a=1", "expected closing ']'"},
		{"#hr trailing\n", "unexpected text after macro call"},
		{"text with [ bracket", `bare '[' in text; use \[ for a literal bracket`},
		{"text with ] bracket", `bare ']' in text; use \] for a literal bracket`},
	}
	for _, tc := range tests {
		_, err := Parse(tc.source, "test.pd")
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error %q", tc.source, tc.msg)
			continue
		}
		var parseErr *errors.Error
		if !goerrors.As(err, &parseErr) {
			t.Errorf("Parse(%q) error is %T, want *errors.Error", tc.source, err)
			continue
		}
		if parseErr.Kind != errors.KindParse {
			t.Errorf("Parse(%q) error kind = %v, want KindParse", tc.source, parseErr.Kind)
		}
		if parseErr.Message != tc.msg {
			t.Errorf("Parse(%q) error = %q, want %q", tc.source, parseErr.Message, tc.msg)
		}
	}
}

func TestTrailingDotName(t *testing.T) {
	// The dot is an identifier character, so #x. parses with the dot in
	// the name. The evaluator strips it when resolving user macros.
	call := onlyCall(t, "#greeting.\n")
	if call.Name != "greeting." {
		t.Errorf("name = %q, want greeting.", call.Name)
	}
}

func TestBlankLinesBetweenBlocks(t *testing.T) {
	doc := mustParse(t, "\n\n#hr\n\n\n#hr\n\n")
	if len(doc.Children) != 2 {
		t.Fatalf("blocks = %d, want 2", len(doc.Children))
	}
}

func TestDump(t *testing.T) {
	doc := mustParse(t, "[#url link=\"https://x\" text=go: body]\npara\n")
	var sb strings.Builder
	Dump(&sb, doc)
	want := `Document
  MacroCall [#...]url
    Arg link=InterpString(Text("https://x"))
    Arg text=Text("go")
    Body
      Text("body")
  Paragraph
    Text("para")
`
	if sb.String() != want {
		t.Errorf("Dump output:\n%s\nwant:\n%s", sb.String(), want)
	}
}
