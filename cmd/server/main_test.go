package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBootstrapFailureIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: chatty\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, log, err := bootstrap(path)
	if err == nil || log != nil {
		t.Fatalf("bootstrap with bad level: log=%v err=%v", log, err)
	}
	var stderr bytes.Buffer
	fail(&stderr, err)
	if !strings.HasPrefix(stderr.String(), "server: ") || !strings.Contains(stderr.String(), "chatty") {
		t.Fatalf("stderr = %q", stderr.String())
	}

	if _, _, err := bootstrap(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("bootstrap with missing config: want error")
	}
}
