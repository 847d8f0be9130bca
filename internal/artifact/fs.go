package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Filesystem stores artifacts as plain files under a root directory so the
// output directory holds the CSVs themselves.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at dir, creating it if needed
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./output"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create %s", root)
	}
	return &Filesystem{root: root}, nil
}

// Driver implements Store
func (s *Filesystem) Driver() Driver { return DriverFilesystem }

// Root returns the directory artifacts are written to
func (s *Filesystem) Root() string { return s.root }

func (s *Filesystem) pathFor(key string) (string, string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put writes through a temp file and renames it into place
func (s *Filesystem) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	k, dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil && !opts.Overwrite {
		return Info{}, eris.Wrapf(ErrExists, "%s", k)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, eris.Wrapf(err, "artifact: mkdir for %s", k)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, eris.Wrapf(err, "artifact: temp file for %s", k)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(tmp, h), r)
	if copyErr != nil {
		_ = tmp.Close()
		return Info{}, eris.Wrapf(copyErr, "artifact: write %s", k)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Info{}, eris.Wrapf(err, "artifact: sync %s", k)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, eris.Wrapf(err, "artifact: close %s", k)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, eris.Wrapf(err, "artifact: move %s into place", k)
	}
	st, err := os.Stat(dataPath)
	if err != nil {
		return Info{}, eris.Wrapf(err, "artifact: stat %s", k)
	}
	return Info{
		Key:          k,
		Size:         size,
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(h.Sum(nil)),
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: st.ModTime().UTC(),
	}, nil
}

// Get implements Store
func (s *Filesystem) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	k, dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, nil, eris.Wrapf(ErrNotFound, "%s", k)
	}
	if err != nil {
		return Info{}, nil, eris.Wrapf(err, "artifact: open %s", k)
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return Info{}, nil, eris.Wrapf(err, "artifact: stat %s", k)
	}
	return Info{Key: k, Size: st.Size(), ContentType: ContentType(k), LastModified: st.ModTime().UTC()}, file, nil
}

// List walks the root; temp files are skipped
func (s *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, Info{Key: key, Size: st.Size(), ContentType: ContentType(key), LastModified: st.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: list %s", s.root)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
