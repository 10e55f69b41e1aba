package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/reroaring/internal/fs"
	"github.com/hupe1980/reroaring/internal/mmap"
)

const partialSuffix = ".partial"

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// FS is used for every write and, when Mmap is false, for reads.
	FS fs.FileSystem
	// Mmap maps blobs into memory on Open. It is ignored when FS is not
	// the local file system.
	Mmap bool
	// Perm is the mode of new blob files.
	Perm os.FileMode
}

// DefaultLocalOptions are the defaults of NewLocalStore.
var DefaultLocalOptions = LocalOptions{
	FS:   fs.Default,
	Mmap: true,
	Perm: 0o600,
}

// LocalStore keeps blobs as files in one directory. Writes go to a
// temporary file that is renamed into place, so readers never observe a
// partial blob.
type LocalStore struct {
	root string
	opts LocalOptions
}

// NewLocalStore returns a store rooted at root. The directory is created on
// the first write.
func NewLocalStore(root string, optFns ...func(o *LocalOptions)) *LocalStore {
	opts := DefaultLocalOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if _, ok := opts.FS.(fs.LocalFS); !ok {
		opts.Mmap = false
	}
	if opts.Perm == 0 {
		opts.Perm = DefaultLocalOptions.Perm
	}
	return &LocalStore{root: root, opts: opts}
}

// Root returns the store directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.root, name), nil
}

// Open opens name for reading.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if s.opts.Mmap {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}
		_ = m.Advise(mmap.AccessSequential)
		return &mappedBlob{m: m}, nil
	}

	f, err := s.opts.FS.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileBlob{f: f, size: info.Size()}, nil
}

// Create streams into a temporary file that Close renames to name.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := s.opts.FS.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}
	f, err := s.opts.FS.OpenFile(path+partialSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.opts.Perm)
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{store: s, f: f, path: path}, nil
}

// Put writes data to name atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Join(err, w.Abort())
	}
	return w.Close()
}

// Delete removes name.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := s.opts.FS.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the committed blobs starting with prefix in ascending order.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.opts.FS.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// ReadDir sorts by file name.
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, partialSuffix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

type localWritableBlob struct {
	store *LocalStore
	f     fs.File
	path  string
	done  bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrClosed
	}
	return w.f.Write(p)
}

func (w *localWritableBlob) Close() error {
	if w.done {
		return ErrClosed
	}
	w.done = true

	fsys := w.store.opts.FS
	tmp := w.path + partialSuffix
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = fsys.Remove(tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := fsys.Rename(tmp, w.path); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	return fs.SyncDir(fsys, w.store.root)
}

func (w *localWritableBlob) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return errors.Join(w.f.Close(), w.store.opts.FS.Remove(w.path+partialSuffix))
}

type mappedBlob struct {
	m *mmap.Mapping
}

func (b *mappedBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return readAt(b.m.Bytes(), p, off)
}

func (b *mappedBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(sliceRange(b.m.Bytes(), off, length))), nil
}

func (b *mappedBlob) Bytes() ([]byte, error) { return b.m.Bytes(), nil }

func (b *mappedBlob) Size() int64  { return b.m.Size() }
func (b *mappedBlob) Close() error { return b.m.Close() }

type fileBlob struct {
	f    fs.File
	size int64
}

func (b *fileBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	return b.f.ReadAt(p, off)
}

func (b *fileBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if off < 0 {
		return nil, ErrInvalidOffset
	}
	length = max(0, min(length, b.size-off))
	return io.NopCloser(io.NewSectionReader(b.f, off, length)), nil
}

func (b *fileBlob) Size() int64  { return b.size }
func (b *fileBlob) Close() error { return b.f.Close() }
