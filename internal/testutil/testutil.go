// Package testutil provides small helpers shared by package tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteTree writes a set of files into dir, creating parent
// directories as needed. Keys are slash-separated relative paths.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// DiffLines reports the first line where got and want differ, or ""
// if they are equal. Useful for multi-line HTML comparisons where a
// plain %q dump is unreadable.
func DiffLines(got, want string) string {
	if got == want {
		return ""
	}
	gotLines := strings.Split(got, "\n")
	wantLines := strings.Split(want, "\n")
	n := len(gotLines)
	if len(wantLines) < n {
		n = len(wantLines)
	}
	for i := 0; i < n; i++ {
		if gotLines[i] != wantLines[i] {
			return fmt.Sprintf("line %d:\n  got:  %s\n  want: %s", i+1, gotLines[i], wantLines[i])
		}
	}
	return fmt.Sprintf("line %d: lengths differ (got %d lines, want %d lines)",
		n+1, len(gotLines), len(wantLines))
}
