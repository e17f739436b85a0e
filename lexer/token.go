// Package lexer provides tokenization for PicoDoc source text.
package lexer

import (
	"fmt"
	"unicode"

	"github.com/picodoc/picodoc-go/syntax"
)

// TokenType represents the type of a token.
type TokenType int

const (
	// Structural (single-character)
	TokenHash     TokenType = iota // #
	TokenLBracket                  // [
	TokenRBracket                  // ]
	TokenColon                     // :
	TokenEquals                    // =
	TokenQuestion                  // ?

	// Content
	TokenIdentifier // letters, digits, . and !$%&*+-/@^_~
	TokenText       // runs of anything else
	TokenEscape     // prose escape, value holds the resolved character

	// Interpreted string sub-tokens
	TokenStringStart  // opening "
	TokenStringEnd    // closing "
	TokenStringText   // literal segment inside a string
	TokenStringEscape // string escape, value holds the resolved character
	TokenCodeOpen     // \[ entering code mode
	TokenCodeClose    // ] leaving code mode at depth zero

	// Raw string (one token, value holds stripped content)
	TokenRawString

	// Whitespace
	TokenWS      // spaces and tabs
	TokenNewline // \n or \r\n

	TokenEOF
)

// Token is a single lexer token. Value holds the resolved text (escapes
// decoded, raw strings stripped), Raw the exact source text.
type Token struct {
	Type  TokenType
	Value string
	Raw   string
	Span  Span
}

// Span represents a location range in source text.
type Span = syntax.Span

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}

var tokenTypeNames = map[TokenType]string{
	TokenHash:         "Hash",
	TokenLBracket:     "LBracket",
	TokenRBracket:     "RBracket",
	TokenColon:        "Colon",
	TokenEquals:       "Equals",
	TokenQuestion:     "Question",
	TokenIdentifier:   "Identifier",
	TokenText:         "Text",
	TokenEscape:       "Escape",
	TokenStringStart:  "StringStart",
	TokenStringEnd:    "StringEnd",
	TokenStringText:   "StringText",
	TokenStringEscape: "StringEscape",
	TokenCodeOpen:     "CodeOpen",
	TokenCodeClose:    "CodeClose",
	TokenRawString:    "RawString",
	TokenWS:           "WS",
	TokenNewline:      "Newline",
	TokenEOF:          "EOF",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// identSpecial holds the punctuation characters allowed in identifiers.
const identSpecial = "!$%&*+-/@^_~"

// isIdentRune reports whether r may appear in an identifier.
func isIdentRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	if r == '.' {
		return true
	}
	for _, s := range identSpecial {
		if r == s {
			return true
		}
	}
	return r > 0x7F && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
