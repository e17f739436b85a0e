package lexer

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/syntax"
)

// Lexer tokenizes PicoDoc source text. It keeps a stack of lexical modes so
// that interpreted strings can re-enter prose lexing through code sections
// and vice versa.
type Lexer struct {
	source   string
	filename string
	pos      int    // byte offset into source
	line     uint32 // 1-based
	col      uint32 // 1-based, counted in runes
	tokens   []Token

	stack        []lexerState
	mode         mode
	bracketDepth int // private depth while in code mode
}

type mode int

const (
	modeNormal mode = iota
	modeInterpString
	modeCode
)

type lexerState struct {
	mode         mode
	bracketDepth int
}

type position struct {
	line   uint32
	col    uint32
	offset int
}

// New creates a new Lexer for the given source text.
func New(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		line:     1,
		col:      1,
		mode:     modeNormal,
	}
}

// Tokenize tokenizes source text and returns the full token list, ending
// with exactly one EOF token.
func Tokenize(source, filename string) ([]Token, error) {
	return New(source, filename).All()
}

// All runs the lexer to completion and returns all tokens.
func (l *Lexer) All() ([]Token, error) {
	for l.pos < len(l.source) {
		var err error
		switch l.mode {
		case modeNormal:
			err = l.lexNormal()
		case modeInterpString:
			err = l.lexInterpString()
		case modeCode:
			err = l.lexCodeMode()
		}
		if err != nil {
			return nil, err
		}
	}

	if l.mode == modeInterpString {
		return nil, l.errorAt("unterminated interpreted string", l.here())
	}
	if l.mode == modeCode {
		return nil, l.errorAt("unterminated code mode in string", l.here())
	}

	l.emit(TokenEOF, "", "", l.here())
	return l.tokens, nil
}

// --- position and emission helpers ---

func (l *Lexer) here() position {
	return position{line: l.line, col: l.col, offset: l.pos}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.source) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekByteAt(offset int) byte {
	idx := l.pos + offset
	if idx >= len(l.source) {
		return 0
	}
	return l.source[idx]
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) emit(tt TokenType, value, raw string, start position) {
	end := l.here()
	l.tokens = append(l.tokens, Token{
		Type:  tt,
		Value: value,
		Raw:   raw,
		Span:  makeSpan(start, end),
	})
}

func makeSpan(start, end position) Span {
	return Span{
		StartLine:   start.line,
		StartCol:    start.col,
		StartOffset: uint32(start.offset),
		EndLine:     end.line,
		EndCol:      end.col,
		EndOffset:   uint32(end.offset),
	}
}

func (l *Lexer) errorAt(msg string, pos position) error {
	return errors.New(errors.KindLex, msg).
		WithSpan(syntax.Point(pos.line, pos.col, uint32(pos.offset))).
		WithFile(l.filename).
		WithSource(l.source)
}

// --- mode stack ---

func (l *Lexer) pushMode(m mode, bracketDepth int) {
	l.stack = append(l.stack, lexerState{l.mode, l.bracketDepth})
	l.mode = m
	l.bracketDepth = bracketDepth
}

func (l *Lexer) popMode() {
	st := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	l.mode = st.mode
	l.bracketDepth = st.bracketDepth
}

// --- normal mode ---

func (l *Lexer) lexNormal() error {
	ch := l.peek()

	if ch == 0 {
		return l.errorAt("NUL character in source", l.here())
	}

	switch ch {
	case '#':
		l.emitSingle(TokenHash, "#")
		return nil
	case '[':
		l.emitSingle(TokenLBracket, "[")
		return nil
	case ']':
		l.emitSingle(TokenRBracket, "]")
		return nil
	case ':':
		l.emitSingle(TokenColon, ":")
		return nil
	case '=':
		l.emitSingle(TokenEquals, "=")
		return nil
	case '?':
		l.emitSingle(TokenQuestion, "?")
		return nil
	case '\\':
		return l.lexProseEscape()
	case '"':
		return l.lexStringOpen()
	case '\n':
		start := l.here()
		l.advance()
		l.emit(TokenNewline, "\n", "\n", start)
		return nil
	case '\r':
		if l.peekByteAt(1) == '\n' {
			start := l.here()
			l.advance()
			l.advance()
			l.emit(TokenNewline, "\n", "\r\n", start)
			return nil
		}
		start := l.here()
		l.advance()
		l.emit(TokenText, "\r", "\r", start)
		return nil
	case ' ', '\t':
		l.lexWS()
		return nil
	}

	if isIdentRune(ch) {
		l.lexIdentifier()
		return nil
	}

	l.lexText()
	return nil
}

func (l *Lexer) emitSingle(tt TokenType, text string) {
	start := l.here()
	l.advance()
	l.emit(tt, text, text, start)
}

func (l *Lexer) lexWS() {
	start := l.here()
	for l.pos < len(l.source) {
		if ch := l.peek(); ch != ' ' && ch != '\t' {
			break
		}
		l.advance()
	}
	text := l.source[start.offset:l.pos]
	l.emit(TokenWS, text, text, start)
}

func (l *Lexer) lexIdentifier() {
	start := l.here()
	for l.pos < len(l.source) && isIdentRune(l.peek()) {
		l.advance()
	}
	text := l.source[start.offset:l.pos]
	l.emit(TokenIdentifier, text, text, start)
}

func (l *Lexer) lexText() {
	start := l.here()
	for l.pos < len(l.source) {
		ch := l.peek()
		if isTextStop(ch) || isIdentRune(ch) {
			break
		}
		l.advance()
	}
	if l.pos > start.offset {
		text := l.source[start.offset:l.pos]
		l.emit(TokenText, text, text, start)
	}
}

func isTextStop(ch rune) bool {
	switch ch {
	case '#', '[', ']', '\\', ':', '=', '?', '"', ' ', '\t', '\n', '\r', 0:
		return true
	}
	return false
}

// --- prose escapes ---

func (l *Lexer) lexProseEscape() error {
	start := l.here()
	l.advance() // backslash

	if l.pos >= len(l.source) {
		return l.errorAt(`unexpected end of input after '\'`, start)
	}

	ch := l.peek()
	switch ch {
	case '\\', '#', '[', ']', ':', '=':
		l.advance()
		l.emit(TokenEscape, string(ch), l.source[start.offset:l.pos], start)
		return nil
	case 'x':
		l.advance()
		value, raw, err := l.lexHexEscape(2, start)
		if err != nil {
			return err
		}
		l.emit(TokenEscape, value, raw, start)
		return nil
	case 'U':
		l.advance()
		value, raw, err := l.lexHexEscape(8, start)
		if err != nil {
			return err
		}
		l.emit(TokenEscape, value, raw, start)
		return nil
	}
	return l.errorAt(fmt.Sprintf("invalid escape sequence '\\%c'", ch), start)
}

// lexHexEscape reads count hex digits and returns the resolved character
// and the raw escape text.
func (l *Lexer) lexHexEscape(count int, start position) (string, string, error) {
	digitStart := l.pos
	for i := 0; i < count; i++ {
		if l.pos >= len(l.source) {
			return "", "", l.errorAt(
				fmt.Sprintf("incomplete escape: expected %d hex digits, got %d", count, i), start)
		}
		ch := l.peek()
		if !isHexDigit(ch) {
			return "", "", l.errorAt(
				fmt.Sprintf("invalid hex digit '%c' in escape sequence", ch), start)
		}
		l.advance()
	}
	hexStr := l.source[digitStart:l.pos]
	codepoint, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return "", "", l.errorAt(fmt.Sprintf("invalid hex escape '%s'", hexStr), start)
	}
	if codepoint > 0x10FFFF {
		return "", "", l.errorAt(
			fmt.Sprintf("Unicode codepoint U+%s is out of range", hexStr), start)
	}
	return string(rune(codepoint)), l.source[start.offset:l.pos], nil
}

// --- string opening ---

func (l *Lexer) lexStringOpen() error {
	start := l.here()
	quoteCount := 0
	for l.pos < len(l.source) && l.peek() == '"' {
		l.advance()
		quoteCount++
	}

	switch {
	case quoteCount == 1:
		l.emit(TokenStringStart, `"`, `"`, start)
		l.pushMode(modeInterpString, 0)
		return nil
	case quoteCount == 2:
		// Empty string: emit the token pair immediately.
		l.emit(TokenStringStart, `"`, `"`, start)
		l.emit(TokenStringEnd, `"`, `"`, start)
		return nil
	}
	return l.lexRawString(quoteCount, start)
}

// --- interpreted string mode ---

func (l *Lexer) lexInterpString() error {
	ch := l.peek()

	if ch == '"' {
		start := l.here()
		l.advance()
		l.emit(TokenStringEnd, `"`, `"`, start)
		l.popMode()
		return nil
	}

	if ch == '\\' {
		return l.lexStringEscape()
	}

	start := l.here()
	for l.pos < len(l.source) {
		c := l.peek()
		if c == '"' || c == '\\' {
			break
		}
		if c == 0 {
			return l.errorAt("NUL character in source", l.here())
		}
		l.advance()
	}
	if l.pos > start.offset {
		text := l.source[start.offset:l.pos]
		l.emit(TokenStringText, text, text, start)
	}
	return nil
}

func (l *Lexer) lexStringEscape() error {
	start := l.here()
	l.advance() // backslash

	if l.pos >= len(l.source) {
		return l.errorAt("unexpected end of input in string escape", start)
	}

	ch := l.peek()

	// \[ opens a code section
	if ch == '[' {
		l.advance()
		l.emit(TokenCodeOpen, `\[`, `\[`, start)
		l.pushMode(modeCode, 1)
		return nil
	}

	var resolved string
	switch ch {
	case '\\':
		resolved = `\`
	case '"':
		resolved = `"`
	case 'n':
		resolved = "\n"
	case 't':
		resolved = "\t"
	case 'x':
		l.advance()
		value, raw, err := l.lexHexEscape(2, start)
		if err != nil {
			return err
		}
		l.emit(TokenStringEscape, value, raw, start)
		return nil
	case 'U':
		l.advance()
		value, raw, err := l.lexHexEscape(8, start)
		if err != nil {
			return err
		}
		l.emit(TokenStringEscape, value, raw, start)
		return nil
	default:
		return l.errorAt(fmt.Sprintf("invalid string escape sequence '\\%c'", ch), start)
	}

	l.advance()
	l.emit(TokenStringEscape, resolved, l.source[start.offset:l.pos], start)
	return nil
}

// --- code mode ---

func (l *Lexer) lexCodeMode() error {
	ch := l.peek()

	if ch == '[' {
		start := l.here()
		l.advance()
		l.bracketDepth++
		l.emit(TokenLBracket, "[", "[", start)
		return nil
	}

	if ch == ']' {
		start := l.here()
		l.advance()
		l.bracketDepth--
		if l.bracketDepth == 0 {
			l.emit(TokenCodeClose, "]", "]", start)
			l.popMode()
		} else {
			l.emit(TokenRBracket, "]", "]", start)
		}
		return nil
	}

	// Everything else dispatches like normal mode, including nested strings.
	return l.lexNormal()
}

// --- raw strings ---

func (l *Lexer) lexRawString(delimiterCount int, start position) error {
	contentStart := l.pos

	for l.pos < len(l.source) {
		if l.peek() == 0 {
			return l.errorAt("NUL character in source", l.here())
		}
		if l.peek() != '"' {
			l.advance()
			continue
		}
		runStart := l.pos
		runCount := 0
		for l.pos < len(l.source) && l.peek() == '"' {
			l.advance()
			runCount++
		}
		if runCount == delimiterCount {
			content := l.source[contentStart:runStart]
			stripped := stripStringWhitespace(content)
			rawText := l.source[start.offset:l.pos]
			l.emit(TokenRawString, stripped, rawText, start)
			return nil
		}
		// Shorter or longer runs are literal content, keep scanning.
	}

	return l.errorAt(
		fmt.Sprintf("unterminated raw string (expected %d closing quotes)", delimiterCount), start)
}
