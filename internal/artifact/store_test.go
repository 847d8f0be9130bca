package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
)

func exercise(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Put(ctx, "summary_statistics.txt", strings.NewReader("hello"), PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "summary_statistics.txt", strings.NewReader("again"), PutOptions{}); !eris.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	info, err := store.Put(ctx, "summary_statistics.txt", strings.NewReader("again"), PutOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("info: %+v", info)
	}
	if _, err := store.Put(ctx, "nested/a.csv", strings.NewReader("a"), PutOptions{}); err != nil {
		t.Fatalf("put nested: %v", err)
	}

	_, rc, err := store.Get(ctx, "summary_statistics.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "again" {
		t.Fatalf("content: %q", b)
	}

	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "nested/a.csv" || list[1].Key != "summary_statistics.txt" {
		t.Fatalf("list: %+v", list)
	}

	if _, _, err := store.Get(ctx, "absent.csv"); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, bad := range []string{"", "../escape.csv", "/abs.csv"} {
		if _, err := store.Put(ctx, bad, strings.NewReader("x"), PutOptions{}); !eris.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	exercise(t, store)

	b, err := os.ReadFile(filepath.Join(root, "summary_statistics.txt"))
	if err != nil || string(b) != "again" {
		t.Fatalf("artifact should be a plain file: %q %v", b, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory: %v", err)
	}
	s, err = Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("default fs: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestContentType(t *testing.T) {
	if ContentType("a.csv") != "text/csv" || ContentType("run_manifest.json") != "application/json" {
		t.Fatalf("content types: %s %s", ContentType("a.csv"), ContentType("run_manifest.json"))
	}
}
