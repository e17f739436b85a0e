package lexer

import (
	"strings"
	"testing"

	goerrors "errors"

	"github.com/picodoc/picodoc-go/internal/errors"
)

type tok struct {
	typ   TokenType
	value string
}

func mustTokenize(t *testing.T, source string) []Token {
	t.Helper()
	tokens, err := Tokenize(source, "test.pd")
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", source, err)
	}
	return tokens
}

func checkTokens(t *testing.T, source string, want []tok) {
	t.Helper()
	tokens := mustTokenize(t, source)
	if tokens[len(tokens)-1].Type != TokenEOF {
		t.Fatalf("token stream does not end with EOF: %v", tokens)
	}
	got := tokens[:len(tokens)-1]
	if len(got) != len(want) {
		t.Fatalf("Tokenize(%q) = %v, want %d tokens", source, got, len(want))
	}
	for i, w := range want {
		if got[i].Type != w.typ || got[i].Value != w.value {
			t.Errorf("token %d of %q = %s(%q), want %s(%q)",
				i, source, got[i].Type, got[i].Value, w.typ, w.value)
		}
	}
}

func TestStructuralTokens(t *testing.T) {
	checkTokens(t, "#[]:=?", []tok{
		{TokenHash, "#"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenColon, ":"},
		{TokenEquals, "="},
		{TokenQuestion, "?"},
	})
}

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		source string
		want   []tok
	}{
		{"#title", []tok{{TokenHash, "#"}, {TokenIdentifier, "title"}}},
		{"#h2", []tok{{TokenHash, "#"}, {TokenIdentifier, "h2"}}},
		{"#*", []tok{{TokenHash, "#"}, {TokenIdentifier, "*"}}},
		{"#--", []tok{{TokenHash, "#"}, {TokenIdentifier, "--"}}},
		{"env.HOME", []tok{{TokenIdentifier, "env.HOME"}}},
		{"set!", []tok{{TokenIdentifier, "set!"}}},
		{"café", []tok{{TokenIdentifier, "café"}}},
	}
	for _, tc := range tests {
		checkTokens(t, tc.source, tc.want)
	}
}

func TestTextAndWhitespace(t *testing.T) {
	checkTokens(t, "hello, world", []tok{
		{TokenIdentifier, "hello"},
		{TokenText, ","},
		{TokenWS, " "},
		{TokenIdentifier, "world"},
	})
	checkTokens(t, "a  \tb", []tok{
		{TokenIdentifier, "a"},
		{TokenWS, "  \t"},
		{TokenIdentifier, "b"},
	})
}

func TestNewlines(t *testing.T) {
	checkTokens(t, "a\nb", []tok{
		{TokenIdentifier, "a"},
		{TokenNewline, "\n"},
		{TokenIdentifier, "b"},
	})
	// CRLF collapses to a single newline token.
	checkTokens(t, "a\r\nb", []tok{
		{TokenIdentifier, "a"},
		{TokenNewline, "\n"},
		{TokenIdentifier, "b"},
	})
	// A lone carriage return is plain text.
	checkTokens(t, "a\rb", []tok{
		{TokenIdentifier, "a"},
		{TokenText, "\r"},
		{TokenIdentifier, "b"},
	})
}

func TestProseEscapes(t *testing.T) {
	tests := []struct {
		source string
		value  string
	}{
		{`\\`, `\`},
		{`\#`, "#"},
		{`\[`, "["},
		{`\]`, "]"},
		{`\:`, ":"},
		{`\=`, "="},
		{`\x41`, "A"},
		{`\x7e`, "~"},
		{`\U0001F600`, "\U0001F600"},
	}
	for _, tc := range tests {
		tokens := mustTokenize(t, tc.source)
		if tokens[0].Type != TokenEscape || tokens[0].Value != tc.value {
			t.Errorf("Tokenize(%q)[0] = %s(%q), want Escape(%q)",
				tc.source, tokens[0].Type, tokens[0].Value, tc.value)
		}
		if tokens[0].Raw != tc.source {
			t.Errorf("Tokenize(%q)[0].Raw = %q, want the source text", tc.source, tokens[0].Raw)
		}
	}
}

func TestEscapeErrors(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{`\q`, `invalid escape sequence '\q'`},
		{`\`, `unexpected end of input after '\'`},
		{`\x4`, "incomplete escape: expected 2 hex digits, got 1"},
		{`\xZZ`, "invalid hex digit 'Z' in escape sequence"},
		{`\U00110000`, "Unicode codepoint U+00110000 is out of range"},
	}
	for _, tc := range tests {
		_, err := Tokenize(tc.source, "test.pd")
		if err == nil {
			t.Errorf("Tokenize(%q) succeeded, want error %q", tc.source, tc.msg)
			continue
		}
		var lexErr *errors.Error
		if !goerrors.As(err, &lexErr) {
			t.Errorf("Tokenize(%q) error is %T, want *errors.Error", tc.source, err)
			continue
		}
		if lexErr.Kind != errors.KindLex {
			t.Errorf("Tokenize(%q) error kind = %v, want KindLex", tc.source, lexErr.Kind)
		}
		if lexErr.Message != tc.msg {
			t.Errorf("Tokenize(%q) error = %q, want %q", tc.source, lexErr.Message, tc.msg)
		}
	}
}

func TestNULAlwaysFails(t *testing.T) {
	for _, source := range []string{"a\x00b", "\"a\x00b\"", "\"\\[#x \x00]\"", "\"\"\"a\x00b\"\"\""} {
		_, err := Tokenize(source, "test.pd")
		if err == nil {
			t.Errorf("Tokenize(%q) succeeded, want NUL error", source)
			continue
		}
		if !strings.Contains(err.Error(), "NUL character in source") {
			t.Errorf("Tokenize(%q) error = %q, want NUL message", source, err)
		}
	}
}

func TestInterpretedString(t *testing.T) {
	checkTokens(t, `"hello"`, []tok{
		{TokenStringStart, `"`},
		{TokenStringText, "hello"},
		{TokenStringEnd, `"`},
	})
	// Two quotes are an empty string, not a raw string opener.
	checkTokens(t, `""`, []tok{
		{TokenStringStart, `"`},
		{TokenStringEnd, `"`},
	})
}

func TestStringEscapes(t *testing.T) {
	checkTokens(t, `"a\nb\t\"\\c"`, []tok{
		{TokenStringStart, `"`},
		{TokenStringText, "a"},
		{TokenStringEscape, "\n"},
		{TokenStringText, "b"},
		{TokenStringEscape, "\t"},
		{TokenStringEscape, `"`},
		{TokenStringEscape, `\`},
		{TokenStringText, "c"},
		{TokenStringEnd, `"`},
	})
	checkTokens(t, `"\x41\U0001F600"`, []tok{
		{TokenStringStart, `"`},
		{TokenStringEscape, "A"},
		{TokenStringEscape, "\U0001F600"},
		{TokenStringEnd, `"`},
	})
}

func TestStringErrors(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{`"abc`, "unterminated interpreted string"},
		{`"a\qb"`, `invalid string escape sequence '\q'`},
		{`"\[#x`, "unterminated code mode in string"},
	}
	for _, tc := range tests {
		_, err := Tokenize(tc.source, "test.pd")
		if err == nil {
			t.Errorf("Tokenize(%q) succeeded, want error %q", tc.source, tc.msg)
			continue
		}
		if !strings.Contains(err.Error(), tc.msg) {
			t.Errorf("Tokenize(%q) error = %q, want %q", tc.source, err, tc.msg)
		}
	}
}

func TestCodeSection(t *testing.T) {
	checkTokens(t, `"a\[#b]c"`, []tok{
		{TokenStringStart, `"`},
		{TokenStringText, "a"},
		{TokenCodeOpen, `\[`},
		{TokenHash, "#"},
		{TokenIdentifier, "b"},
		{TokenCodeClose, "]"},
		{TokenStringText, "c"},
		{TokenStringEnd, `"`},
	})
}

func TestCodeSectionNestedBrackets(t *testing.T) {
	// Inner bracketed calls keep the code section open until the
	// matching close bracket.
	checkTokens(t, `"\[[#b x=1]]"`, []tok{
		{TokenStringStart, `"`},
		{TokenCodeOpen, `\[`},
		{TokenLBracket, "["},
		{TokenHash, "#"},
		{TokenIdentifier, "b"},
		{TokenWS, " "},
		{TokenIdentifier, "x"},
		{TokenEquals, "="},
		{TokenIdentifier, "1"},
		{TokenRBracket, "]"},
		{TokenCodeClose, "]"},
		{TokenStringEnd, `"`},
	})
}

func TestCodeSectionNestedString(t *testing.T) {
	// Strings nest inside code sections through the mode stack.
	checkTokens(t, `"\[#b "x"]"`, []tok{
		{TokenStringStart, `"`},
		{TokenCodeOpen, `\[`},
		{TokenHash, "#"},
		{TokenIdentifier, "b"},
		{TokenWS, " "},
		{TokenStringStart, `"`},
		{TokenStringText, "x"},
		{TokenStringEnd, `"`},
		{TokenCodeClose, "]"},
		{TokenStringEnd, `"`},
	})
}

func TestRawStrings(t *testing.T) {
	tests := []struct {
		name   string
		source string
		value  string
	}{
		{"simple", `"""abc"""`, "abc"},
		{"embedded quote", `"""a"b"""`, `a"b`},
		{"embedded pair", `"""a""b"""`, `a""b`},
		{"four quotes", `""""a"""b""""`, `a"""b`},
		{"no escapes", `"""a\nb"""`, `a\nb`},
		{"leading newline stripped", "\"\"\"\nabc\"\"\"", "abc"},
		{
			"indentation stripped",
			"\"\"\"\n  line1\n  line2\n  \"\"\"",
			"line1\nline2",
		},
		{
			"blank interior line kept",
			"\"\"\"\n  a\n\n  b\n  \"\"\"",
			"a\n\nb",
		},
		{
			"mismatched indent not stripped",
			"\"\"\"\n  a\nb\n  \"\"\"",
			"  a\nb",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tokens := mustTokenize(t, tc.source)
			if tokens[0].Type != TokenRawString {
				t.Fatalf("Tokenize(%q)[0] = %s, want RawString", tc.source, tokens[0].Type)
			}
			if tokens[0].Value != tc.value {
				t.Errorf("raw string value = %q, want %q", tokens[0].Value, tc.value)
			}
			if tokens[0].Raw != tc.source {
				t.Errorf("raw string Raw = %q, want full source", tokens[0].Raw)
			}
		})
	}
}

func TestUnterminatedRawString(t *testing.T) {
	_, err := Tokenize(`"""abc`, "test.pd")
	if err == nil {
		t.Fatal("Tokenize on unterminated raw string succeeded")
	}
	want := "unterminated raw string (expected 3 closing quotes)"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want %q", err, want)
	}
}

// Concatenating every token's raw text must reproduce the source byte
// for byte. Newline tokens keep the original CRLF in Raw even though
// Value is normalized.
func TestRawRoundTrip(t *testing.T) {
	sources := []string{
		"#title: Hello\n\nSome text with \\# escapes.\n",
		`[#url link="https://example.com": click]`,
		`"interp \[#b: x] tail"`,
		"\"\"\"\n  raw body\n  \"\"\"",
		"[#table:\n  a | b\n  c | d\n]",
		"line one\r\nline two\r\n",
		"#set name=x: value\n#x.\n",
	}
	for _, source := range sources {
		tokens := mustTokenize(t, source)
		var sb strings.Builder
		for _, token := range tokens {
			sb.WriteString(token.Raw)
		}
		if sb.String() != source {
			t.Errorf("raw concatenation = %q, want %q", sb.String(), source)
		}
	}
}

func TestSpans(t *testing.T) {
	tokens := mustTokenize(t, "ab\ncd")
	// "cd" starts at line 2, column 1, byte offset 3.
	last := tokens[len(tokens)-2]
	if last.Value != "cd" {
		t.Fatalf("unexpected token %v", last)
	}
	sp := last.Span
	if sp.StartLine != 2 || sp.StartCol != 1 || sp.StartOffset != 3 {
		t.Errorf("span start = %d:%d offset %d, want 2:1 offset 3",
			sp.StartLine, sp.StartCol, sp.StartOffset)
	}
	if sp.EndLine != 2 || sp.EndCol != 3 || sp.EndOffset != 5 {
		t.Errorf("span end = %d:%d offset %d, want 2:3 offset 5",
			sp.EndLine, sp.EndCol, sp.EndOffset)
	}
}

func TestErrorPosition(t *testing.T) {
	_, err := Tokenize("ok\n\\q", "test.pd")
	var lexErr *errors.Error
	if !goerrors.As(err, &lexErr) {
		t.Fatalf("error is %T, want *errors.Error", err)
	}
	if lexErr.Span.StartLine != 2 || lexErr.Span.StartCol != 1 {
		t.Errorf("error position = %d:%d, want 2:1", lexErr.Span.StartLine, lexErr.Span.StartCol)
	}
	if lexErr.File != "test.pd" {
		t.Errorf("error file = %q, want test.pd", lexErr.File)
	}
}
