package parser

import (
	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/lexer"
	"github.com/picodoc/picodoc-go/syntax"
)

// stopSet is a bitmask over token types used to terminate inline content.
type stopSet uint32

func (s stopSet) has(t lexer.TokenType) bool {
	return s&(1<<uint(t)) != 0
}

const (
	stopNewlineEOF         stopSet = 1<<lexer.TokenNewline | 1<<lexer.TokenEOF
	stopNewlineRBracketEOF stopSet = 1<<lexer.TokenNewline | 1<<lexer.TokenRBracket | 1<<lexer.TokenEOF
	stopRBracketEOF        stopSet = 1<<lexer.TokenRBracket | 1<<lexer.TokenEOF
	stopCodeCloseEOF       stopSet = 1<<lexer.TokenCodeClose | 1<<lexer.TokenEOF

	// Token types that contribute to plain text runs in body position.
	textTokens stopSet = 1<<lexer.TokenIdentifier | 1<<lexer.TokenText | 1<<lexer.TokenWS |
		1<<lexer.TokenColon | 1<<lexer.TokenEquals | 1<<lexer.TokenQuestion
)

// Parser is a recursive descent parser over a PicoDoc token stream.
type Parser struct {
	tokens       []lexer.Token
	source       string
	filename     string
	pos          int
	bracketDepth int
}

// Parse tokenizes and parses source text into a Document.
func Parse(source, filename string) (*Document, error) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens, source, filename).ParseDocument()
}

// NewParser creates a parser over an already tokenized stream.
func NewParser(tokens []lexer.Token, source, filename string) *Parser {
	return &Parser{tokens: tokens, source: source, filename: filename}
}

// --- navigation ---

func (p *Parser) peek() lexer.Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) lexer.Token {
	idx := p.pos + offset
	if idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) at(types ...lexer.TokenType) bool {
	t := p.peek().Type
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (p *Parser) atEOF() bool {
	return p.peek().Type == lexer.TokenEOF
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt lexer.TokenType, message string) (lexer.Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.errorAt(message, tok.Span)
	}
	return p.advance(), nil
}

func (p *Parser) skipWS() {
	if p.at(lexer.TokenWS) {
		p.advance()
	}
}

// prevSpan returns the span of the previously consumed token.
func (p *Parser) prevSpan() Span {
	if p.pos > 0 {
		return p.tokens[p.pos-1].Span
	}
	return p.tokens[0].Span
}

func (p *Parser) errorAt(message string, span Span) error {
	return errors.New(errors.KindParse, message).
		WithSpan(span).
		WithFile(p.filename).
		WithSource(p.source)
}

// unbrBodyStop returns the stop set for unbracketed colon body content.
func (p *Parser) unbrBodyStop() stopSet {
	if p.bracketDepth > 0 {
		return stopNewlineRBracketEOF
	}
	return stopNewlineEOF
}

// --- document level ---

// ParseDocument parses the full token stream into a Document.
func (p *Parser) ParseDocument() (*Document, error) {
	var children []Block
	start := p.peek().Span

	for !p.atEOF() {
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if block != nil {
			children = append(children, block)
		}
	}

	return NewDocument(children, syntax.Join(start, p.peek().Span)), nil
}

func (p *Parser) parseBlock() (Block, error) {
	for !p.atEOF() && p.isBlankLine() {
		p.skipBlankLine()
	}

	if p.atEOF() {
		return nil, nil
	}

	if p.atBlockStart() {
		return p.parseMacroBlock()
	}
	return p.parseParagraph()
}

func (p *Parser) parseMacroBlock() (*MacroCall, error) {
	var call *MacroCall
	var err error
	if p.at(lexer.TokenLBracket) {
		call, err = p.parseBracketedCall()
	} else {
		call, err = p.parseUnbracketedCall()
	}
	if err != nil {
		return nil, err
	}

	p.skipWS()

	if !p.at(lexer.TokenNewline, lexer.TokenEOF) {
		return nil, p.errorAt("unexpected text after macro call", p.peek().Span)
	}
	if p.at(lexer.TokenNewline) {
		p.advance()
	}
	return call, nil
}

func (p *Parser) parseParagraph() (*Paragraph, error) {
	var children []Inline
	start := p.peek().Span

	for !p.atEOF() && !p.isBlankLine() && !p.atBlockStart() {
		line, err := p.parseInlineContent(stopNewlineEOF)
		if err != nil {
			return nil, err
		}
		children = append(children, line...)

		if p.at(lexer.TokenNewline) {
			nl := p.advance()
			// A continued paragraph keeps the line break as text.
			if !p.atEOF() && !p.isBlankLine() && !p.atBlockStart() {
				children = append(children, NewText("\n", nl.Span))
			}
		}
	}

	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span()
	}
	return NewParagraph(children, syntax.Join(start, end)), nil
}

// --- macro calls ---

func (p *Parser) parseUnbracketedCall() (*MacroCall, error) {
	start := p.peek().Span
	p.advance() // HASH

	nameTok, err := p.expect(lexer.TokenIdentifier, "expected macro name after '#'")
	if err != nil {
		return nil, err
	}
	name := nameTok.Value

	var args []*NamedArg
	var body BodyNode

	switch {
	case p.at(lexer.TokenStringStart, lexer.TokenRawString):
		// String body without whitespace: #b"bold"
		body, err = p.parseStringBody()
	case p.at(lexer.TokenColon):
		body, err = p.parseColonUnbrBody()
	case p.at(lexer.TokenWS):
		savedPos := p.pos
		p.advance() // WS

		if p.isNamedArgStart() {
			args, err = p.parseNamedArgs()
			if err == nil {
				// The arg loop consumed any trailing whitespace.
				if p.at(lexer.TokenColon) {
					body, err = p.parseColonUnbrBody()
				} else if p.at(lexer.TokenStringStart, lexer.TokenRawString) {
					body, err = p.parseStringBody()
				}
			}
		} else if p.at(lexer.TokenColon) {
			body, err = p.parseColonUnbrBody()
		} else if p.at(lexer.TokenStringStart, lexer.TokenRawString) {
			body, err = p.parseStringBody()
		} else {
			// Nothing useful after the whitespace, back up.
			p.pos = savedPos
		}
	}
	if err != nil {
		return nil, err
	}

	return NewMacroCall(name, args, body, false, syntax.Join(start, p.prevSpan())), nil
}

func (p *Parser) parseBracketedCall() (*MacroCall, error) {
	start := p.peek().Span
	p.advance() // LBRACKET
	if _, err := p.expect(lexer.TokenHash, "expected '#' after '['"); err != nil {
		return nil, err
	}

	nameTok, err := p.expect(lexer.TokenIdentifier, "expected macro name after '#'")
	if err != nil {
		return nil, err
	}
	name := nameTok.Value

	p.bracketDepth++

	var args []*NamedArg
	var body BodyNode

	switch {
	case p.at(lexer.TokenStringStart, lexer.TokenRawString):
		// No whitespace, like [#**"Yes"]
		body, err = p.parseStringBody()
	case p.at(lexer.TokenColon):
		body, err = p.parseColonBracketBody()
	case p.at(lexer.TokenWS):
		p.advance() // WS

		if p.isNamedArgStart() {
			args, err = p.parseNamedArgs()
			if err == nil {
				if p.at(lexer.TokenColon) {
					body, err = p.parseColonBracketBody()
				} else if p.at(lexer.TokenStringStart, lexer.TokenRawString) {
					body, err = p.parseStringBody()
				}
			}
		} else if p.at(lexer.TokenColon) {
			body, err = p.parseColonBracketBody()
		} else if p.at(lexer.TokenStringStart, lexer.TokenRawString) {
			body, err = p.parseStringBody()
		} else if !p.at(lexer.TokenRBracket) {
			err = p.errorAt("expected argument, ':' body, string body, or ']'", p.peek().Span)
		}
	}

	p.bracketDepth--
	if err != nil {
		return nil, err
	}

	endTok, err := p.expect(lexer.TokenRBracket, "expected closing ']'")
	if err != nil {
		return nil, err
	}
	return NewMacroCall(name, args, body, true, syntax.Join(start, endTok.Span)), nil
}

// --- arguments ---

func (p *Parser) isNamedArgStart() bool {
	return p.at(lexer.TokenIdentifier) && p.peekAt(1).Type == lexer.TokenEquals
}

func (p *Parser) parseNamedArgs() ([]*NamedArg, error) {
	arg, err := p.parseNamedArg()
	if err != nil {
		return nil, err
	}
	args := []*NamedArg{arg}
	for p.at(lexer.TokenWS) {
		p.advance() // WS
		if !p.isNamedArgStart() {
			break
		}
		arg, err = p.parseNamedArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func (p *Parser) parseNamedArg() (*NamedArg, error) {
	nameTok, err := p.expect(lexer.TokenIdentifier, "expected argument name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenEquals, "expected '=' after argument name"); err != nil {
		return nil, err
	}
	p.skipWS()
	value, err := p.parseArgValue()
	if err != nil {
		return nil, err
	}
	return NewNamedArg(nameTok.Value, value, nameTok.Span,
		syntax.Join(nameTok.Span, value.Span())), nil
}

func (p *Parser) parseArgValue() (Value, error) {
	switch {
	case p.at(lexer.TokenStringStart):
		return p.parseInterpString()
	case p.at(lexer.TokenRawString):
		return p.parseRawString()
	case p.at(lexer.TokenLBracket) && p.peekAt(1).Type == lexer.TokenHash:
		return p.parseBracketedCall()
	case p.at(lexer.TokenHash):
		return p.parseMacroRef()
	case p.at(lexer.TokenQuestion):
		tok := p.advance()
		return NewRequiredMarker(tok.Span), nil
	}
	return p.parseBareword()
}

func (p *Parser) parseBareword() (*Text, error) {
	if !p.at(lexer.TokenIdentifier, lexer.TokenText) {
		return nil, p.errorAt("expected argument value", p.peek().Span)
	}
	start := p.peek().Span
	value := ""
	for p.at(lexer.TokenIdentifier, lexer.TokenText) {
		value += p.advance().Value
	}
	return NewText(value, syntax.Join(start, p.prevSpan())), nil
}

// parseMacroRef parses a bare #name reference in value position.
func (p *Parser) parseMacroRef() (*MacroCall, error) {
	start := p.peek().Span
	p.advance() // HASH
	nameTok, err := p.expect(lexer.TokenIdentifier, "expected macro name after '#'")
	if err != nil {
		return nil, err
	}
	return NewMacroCall(nameTok.Value, nil, nil, false, syntax.Join(start, nameTok.Span)), nil
}

// --- bodies ---

func (p *Parser) parseColonUnbrBody() (BodyNode, error) {
	p.advance() // COLON
	p.skipWS()

	if p.at(lexer.TokenStringStart) {
		return p.parseInterpString()
	}
	if p.at(lexer.TokenRawString) {
		return p.parseRawString()
	}

	// A colon at end of line opens a multi-line paragraph body.
	if p.at(lexer.TokenNewline, lexer.TokenEOF) {
		if p.at(lexer.TokenNewline) {
			p.advance()
		}
		return p.parseBodyParagraph()
	}

	start := p.peek().Span
	children, err := p.parseInlineContent(p.unbrBodyStop())
	if err != nil {
		return nil, err
	}
	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span()
	}
	return NewBody(children, syntax.Join(start, end)), nil
}

func (p *Parser) parseColonBracketBody() (BodyNode, error) {
	p.advance() // COLON
	p.skipWS()

	if p.at(lexer.TokenStringStart) {
		return p.parseInterpString()
	}
	if p.at(lexer.TokenRawString) {
		return p.parseRawString()
	}

	start := p.peek().Span
	children, err := p.parseInlineContent(stopRBracketEOF)
	if err != nil {
		return nil, err
	}
	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span()
	}
	return NewBody(children, syntax.Join(start, end)), nil
}

func (p *Parser) parseStringBody() (BodyNode, error) {
	if p.at(lexer.TokenStringStart) {
		return p.parseInterpString()
	}
	if p.at(lexer.TokenRawString) {
		return p.parseRawString()
	}
	return nil, p.errorAt("expected string literal", p.peek().Span)
}

func (p *Parser) parseBodyParagraph() (*Body, error) {
	var children []Inline
	start := p.peek().Span

	for !p.atEOF() && !p.isBlankLine() {
		line, err := p.parseInlineContent(p.unbrBodyStop())
		if err != nil {
			return nil, err
		}
		children = append(children, line...)

		if !p.at(lexer.TokenNewline) {
			// Stopped by RBRACKET or EOF.
			break
		}
		nl := p.advance()
		if !p.atEOF() && !p.isBlankLine() {
			children = append(children, NewText("\n", nl.Span))
		}
	}

	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span()
	}
	return NewBody(children, syntax.Join(start, end)), nil
}

// --- inline content ---

// parseInlineContent scans to the caller's stop set, collecting text runs,
// escapes, and nested macro calls.
func (p *Parser) parseInlineContent(stop stopSet) ([]Inline, error) {
	var result []Inline
	text := newTextRun()

	for !p.atEOF() {
		tok := p.peek()

		if stop.has(tok.Type) {
			break
		}

		switch {
		case tok.Type == lexer.TokenHash:
			text.flush(&result)
			call, err := p.parseUnbracketedCall()
			if err != nil {
				return nil, err
			}
			result = append(result, call)

		case tok.Type == lexer.TokenLBracket && p.peekAt(1).Type == lexer.TokenHash:
			text.flush(&result)
			call, err := p.parseBracketedCall()
			if err != nil {
				return nil, err
			}
			result = append(result, call)

		case tok.Type == lexer.TokenLBracket:
			return nil, p.errorAt(`bare '[' in text; use \[ for a literal bracket`, tok.Span)

		case tok.Type == lexer.TokenRBracket && !stop.has(lexer.TokenRBracket):
			return nil, p.errorAt(`bare ']' in text; use \] for a literal bracket`, tok.Span)

		case tok.Type == lexer.TokenEscape:
			text.flush(&result)
			t := p.advance()
			result = append(result, NewEscape(t.Value, t.Span))

		case textTokens.has(tok.Type):
			text.add(tok.Value, tok.Span)
			p.advance()

		case tok.Type == lexer.TokenNewline && !stop.has(lexer.TokenNewline):
			// Inside a bracketed body, newlines become text.
			text.add("\n", tok.Span)
			p.advance()

		case tok.Type == lexer.TokenStringStart:
			// A string loose in body position is reconstructed verbatim,
			// quotes included; strings only carry meaning in value position.
			p.reconstructLooseString(text)

		case tok.Type == lexer.TokenRawString:
			text.add(tok.Value, tok.Span)
			p.advance()

		default:
			text.flush(&result)
			return result, nil
		}
	}

	text.flush(&result)
	return result, nil
}

func (p *Parser) reconstructLooseString(text *textRun) {
	tok := p.peek()
	text.add(`"`, tok.Span)
	p.advance()
	for !p.at(lexer.TokenStringEnd, lexer.TokenEOF) {
		inner := p.peek()
		switch inner.Type {
		case lexer.TokenStringText, lexer.TokenStringEscape:
			text.add(inner.Value, inner.Span)
			p.advance()
		case lexer.TokenCodeOpen:
			text.add(inner.Raw, inner.Span)
			p.advance()
			for !p.at(lexer.TokenCodeClose, lexer.TokenStringEnd, lexer.TokenEOF) {
				ct := p.advance()
				text.add(ct.Raw, ct.Span)
			}
			if p.at(lexer.TokenCodeClose) {
				ct := p.advance()
				text.add(ct.Raw, ct.Span)
			}
		default:
			return
		}
	}
	if p.at(lexer.TokenStringEnd) {
		end := p.advance()
		text.add(`"`, end.Span)
	}
}

// --- strings ---

func (p *Parser) parseInterpString() (*InterpString, error) {
	startTok := p.advance() // STRING_START

	var parts []StringPart
	text := newTextRun()

	for !p.at(lexer.TokenStringEnd, lexer.TokenEOF) {
		tok := p.peek()

		switch tok.Type {
		case lexer.TokenStringText, lexer.TokenStringEscape:
			text.add(tok.Value, tok.Span)
			p.advance()

		case lexer.TokenCodeOpen:
			text.flushParts(&parts)
			section, err := p.parseCodeSection()
			if err != nil {
				return nil, err
			}
			parts = append(parts, section)

		default:
			return nil, p.errorAt("unexpected token in string", tok.Span)
		}
	}

	text.flushParts(&parts)

	endTok, err := p.expect(lexer.TokenStringEnd, `expected closing '"'`)
	if err != nil {
		return nil, err
	}
	return NewInterpString(parts, syntax.Join(startTok.Span, endTok.Span)), nil
}

func (p *Parser) parseRawString() (*RawString, error) {
	tok, err := p.expect(lexer.TokenRawString, "expected raw string")
	if err != nil {
		return nil, err
	}
	return NewRawString(tok.Value, tok.Span), nil
}

func (p *Parser) parseCodeSection() (*CodeSection, error) {
	start := p.peek().Span
	p.advance() // CODE_OPEN

	children, err := p.parseInlineContent(stopCodeCloseEOF)
	if err != nil {
		return nil, err
	}

	endTok, err := p.expect(lexer.TokenCodeClose, "expected closing ']' for code section")
	if err != nil {
		return nil, err
	}
	return NewCodeSection(children, syntax.Join(start, endTok.Span)), nil
}

// --- helpers ---

func (p *Parser) isBlankLine() bool {
	if p.at(lexer.TokenNewline) {
		return true
	}
	if p.at(lexer.TokenWS) {
		next := p.peekAt(1).Type
		return next == lexer.TokenNewline || next == lexer.TokenEOF
	}
	return false
}

func (p *Parser) skipBlankLine() {
	if p.at(lexer.TokenWS) {
		p.advance()
	}
	if p.at(lexer.TokenNewline) {
		p.advance()
	}
}

// atBlockStart reports whether the current position starts a macro block.
func (p *Parser) atBlockStart() bool {
	if p.at(lexer.TokenHash) {
		return true
	}
	return p.at(lexer.TokenLBracket) && p.peekAt(1).Type == lexer.TokenHash
}

// textRun accumulates adjacent literal text into a single Text node.
type textRun struct {
	parts   []string
	started bool
	start   Span
	end     Span
}

func newTextRun() *textRun {
	return &textRun{}
}

func (t *textRun) add(value string, span Span) {
	if !t.started {
		t.started = true
		t.start = span
	}
	t.parts = append(t.parts, value)
	t.end = span
}

func (t *textRun) take() *Text {
	if !t.started {
		return nil
	}
	value := ""
	for _, part := range t.parts {
		value += part
	}
	node := NewText(value, syntax.Join(t.start, t.end))
	t.parts = t.parts[:0]
	t.started = false
	return node
}

func (t *textRun) flush(result *[]Inline) {
	if node := t.take(); node != nil {
		*result = append(*result, node)
	}
}

func (t *textRun) flushParts(parts *[]StringPart) {
	if node := t.take(); node != nil {
		*parts = append(*parts, node)
	}
}

// coalesceText merges adjacent Text nodes.
func coalesceText(nodes []Inline) []Inline {
	if len(nodes) == 0 {
		return nodes
	}
	result := make([]Inline, 0, len(nodes))
	for _, node := range nodes {
		text, ok := node.(*Text)
		if ok && len(result) > 0 {
			if prev, ok := result[len(result)-1].(*Text); ok {
				result[len(result)-1] = NewText(prev.Value+text.Value,
					syntax.Join(prev.Span(), text.Span()))
				continue
			}
		}
		result = append(result, node)
	}
	return result
}
