// Minimal Language Server Protocol server for PicoDoc, diagnostics
// only. Documents are re-validated on every open and change; problems
// from the lexer and parser publish as errors, evaluation problems as
// warnings.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/picodoc/picodoc-go/diagnostics"
)

// --- LSP wire types (trimmed to what this server speaks) ---

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type contentChangeEvent struct {
	Text string `json:"text"`
}

type serverCapabilities struct {
	// 1 = full document sync; the pipeline reparses from scratch
	// anyway, so incremental sync buys nothing.
	TextDocumentSync int `json:"textDocumentSync"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   serverInfo         `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type publishDiagnosticsParams struct {
	URI         string                   `json:"uri"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

// --- server state ---

type server struct {
	mu   sync.Mutex
	docs map[string]string // uri -> text
	out  io.Writer
}

func newServer() *server {
	return &server{docs: map[string]string{}, out: os.Stdout}
}

// --- transport (stdio, Content-Length framing) ---

func readMsg(r *bufio.Reader) ([]byte, error) {
	var contentLen int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			fmt.Sscanf(line, "Content-Length: %d", &contentLen)
		}
	}
	if contentLen <= 0 {
		return nil, io.EOF
	}
	buf := make([]byte, contentLen)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

func (s *server) writeMsg(v any) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.Write(body)
	s.out.Write(b.Bytes())
}

func (s *server) respond(id json.RawMessage, result any, respErr *responseError) {
	s.writeMsg(response{JSONRPC: "2.0", ID: id, Result: result, Error: respErr})
}

func (s *server) notify(method string, params any) {
	s.writeMsg(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

// --- handlers ---

func (s *server) onInitialize(id json.RawMessage) {
	s.respond(id, initializeResult{
		Capabilities: serverCapabilities{TextDocumentSync: 1},
		ServerInfo:   serverInfo{Name: "picodoc-lsp", Version: "0.1.0"},
	}, nil)
}

func (s *server) onDidOpen(raw json.RawMessage) {
	var params struct {
		TextDocument textDocumentItem `json:"textDocument"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	s.mu.Lock()
	s.docs[params.TextDocument.URI] = params.TextDocument.Text
	s.mu.Unlock()
	s.validate(params.TextDocument.URI, params.TextDocument.Text)
}

func (s *server) onDidChange(raw json.RawMessage) {
	var params struct {
		TextDocument struct {
			URI string `json:"uri"`
		} `json:"textDocument"`
		ContentChanges []contentChangeEvent `json:"contentChanges"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	if len(params.ContentChanges) == 0 {
		return
	}
	// Full sync: the last change carries the whole document.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	s.mu.Lock()
	s.docs[params.TextDocument.URI] = text
	s.mu.Unlock()
	s.validate(params.TextDocument.URI, text)
}

func (s *server) onDidClose(raw json.RawMessage) {
	var params struct {
		TextDocument struct {
			URI string `json:"uri"`
		} `json:"textDocument"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	s.mu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()
	// Clear stale diagnostics for the closed buffer.
	s.notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []diagnostics.Diagnostic{},
	})
}

func (s *server) validate(uri, text string) {
	filename := uri
	if idx := strings.LastIndexByte(uri, '/'); idx >= 0 {
		filename = uri[idx+1:]
	}
	diags := diagnostics.Collect(text, filename)
	if diags == nil {
		diags = []diagnostics.Diagnostic{}
	}
	s.notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

// --- main loop ---

func main() {
	s := newServer()
	in := bufio.NewReader(os.Stdin)

	for {
		msg, err := readMsg(in)
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, "read error:", err)
			}
			return
		}
		var req request
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}

		switch req.Method {
		case "initialize":
			s.onInitialize(req.ID)
		case "initialized":
			// notification, nothing to do
		case "shutdown":
			s.respond(req.ID, nil, nil)
		case "exit":
			return

		case "textDocument/didOpen":
			s.onDidOpen(req.Params)
		case "textDocument/didChange":
			s.onDidChange(req.Params)
		case "textDocument/didClose":
			s.onDidClose(req.Params)

		default:
			if len(req.ID) > 0 {
				s.respond(req.ID, nil, &responseError{Code: -32601, Message: "method not found"})
			}
		}
	}
}
