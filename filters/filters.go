// Package filters discovers and invokes external filter executables.
// A filter receives a JSON object on stdin (resolved arguments, an
// optional body, and the env map) and prints replacement PicoDoc
// markup on stdout. Discovery is three tiered: a filters/ directory
// next to the document, configured extra directories, and
// picodoc-<name> on PATH.
package filters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/picodoc/picodoc-go/internal/errors"
	"github.com/picodoc/picodoc-go/syntax"
)

// DefaultTimeout bounds a filter subprocess run.
const DefaultTimeout = 5 * time.Second

// Registry locates and runs filter executables. Lookups are cached
// for the registry's lifetime.
type Registry struct {
	DocumentDir string
	ExtraPaths  []string
	Timeout     time.Duration

	cache map[string]string
}

// NewRegistry creates a registry rooted at the document's directory.
func NewRegistry(documentDir string) *Registry {
	return &Registry{
		DocumentDir: documentDir,
		Timeout:     DefaultTimeout,
		cache:       map[string]string{},
	}
}

// Find looks up a filter executable by name. It returns the empty
// string when no executable is found.
func (r *Registry) Find(name string) string {
	if r.cache == nil {
		r.cache = map[string]string{}
	}
	if path, ok := r.cache[name]; ok {
		return path
	}
	path := r.discover(name)
	r.cache[name] = path
	return path
}

func (r *Registry) discover(name string) string {
	local := filepath.Join(r.DocumentDir, "filters", name)
	if isExecutable(local) {
		return local
	}

	for _, dir := range r.ExtraPaths {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate
		}
	}

	if onPath, err := exec.LookPath("picodoc-" + name); err == nil {
		return onPath
	}
	return ""
}

// Invoke runs a filter executable and returns its stdout, which is
// expected to be PicoDoc markup. The span names the call site for
// error reporting.
func (r *Registry) Invoke(name, path string, args map[string]string, body *string, env map[string]string, span syntax.Span) (string, error) {
	payload := map[string]any{}
	for k, v := range args {
		payload[k] = v
	}
	if body != nil {
		payload["body"] = *body
	}
	if env == nil {
		env = map[string]string{}
	}
	payload["env"] = env

	input, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		msg := fmt.Sprintf("filter '%s' timed out after %gs", name, timeout.Seconds())
		return "", errors.New(errors.KindEval, msg).WithSpan(span)
	}

	if runErr != nil {
		exitCode := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		msg := fmt.Sprintf("filter '%s' failed (exit %d)", name, exitCode)
		if errText := strings.TrimSpace(stderr.String()); errText != "" {
			msg += ": " + errText
		}
		return "", errors.New(errors.KindEval, msg).WithSpan(span)
	}

	return stdout.String(), nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
