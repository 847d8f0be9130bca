// Package artifact stores pipeline outputs in a blob store: the local
// filesystem, an S3-compatible bucket or process memory.
package artifact

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Driver identifies a blob store backend
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

var (
	// ErrNotFound is returned for a key with no stored artifact.
	ErrNotFound = eris.New("artifact: not found")
	// ErrExists is returned when Put would replace an artifact without Overwrite.
	ErrExists = eris.New("artifact: already exists")
	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = eris.New("artifact: invalid key")
)

// PutOptions specifies optional parameters for Put
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// Overwrite replaces an existing artifact; reruns rely on it.
	Overwrite bool
}

// Info describes a stored artifact
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a thin S3-like abstraction over artifact backends
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// sanitizeKey rejects keys that are empty, absolute or contain "..".
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", eris.Wrap(ErrInvalidKey, "empty key")
	}
	if strings.Contains(key, "..") {
		return "", eris.Wrapf(ErrInvalidKey, "%q contains '..'", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", eris.Wrapf(ErrInvalidKey, "%q is absolute", key)
	}
	return path.Clean(strings.ReplaceAll(key, "\\", "/")), nil
}

// ContentType guesses a MIME type from the key's extension
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
