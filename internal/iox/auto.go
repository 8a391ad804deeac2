package iox

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Pushshift dumps can have very long windows
const zstdMaxWindow = 1 << 31

func ext(path string) string { return strings.ToLower(filepath.Ext(path)) }

// OpenAuto opens path for reading, decompressing .gz and .zst transparently.
func OpenAuto(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch ext(path) {
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &rc{Reader: gr, closers: []io.Closer{gr, f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f, zstd.WithDecoderMaxWindow(zstdMaxWindow))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		zrc := zr.IOReadCloser()
		return &rc{Reader: zrc, closers: []io.Closer{zrc, f}}, nil
	}
	return f, nil
}

// Exists reports whether path is an existing regular file. Errors other than
// "not found" are returned so callers don't mistake EACCES for a skip.
func Exists(path string) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return st.Mode().IsRegular(), nil
}

// AtomicFile writes to a temp sibling of the final path; Commit renames it
// into place, Abort removes it. Output named *.gz is gzip-compressed.
type AtomicFile struct {
	io.Writer
	final   string
	tmp     *os.File
	closers []io.Closer
	done    bool
}

// CreateAtomic creates the parent directory if needed and opens a temp file
// next to path.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp for %s: %w", path, err)
	}
	a := &AtomicFile{Writer: f, final: path, tmp: f}
	if ext(path) == ".gz" {
		gw := gzip.NewWriter(f)
		a.Writer = gw
		a.closers = append(a.closers, gw)
	}
	return a, nil
}

func (a *AtomicFile) closeAll() error {
	var err error
	for _, c := range a.closers {
		if e := c.Close(); err == nil && e != nil {
			err = e
		}
	}
	if e := a.tmp.Close(); err == nil && e != nil {
		err = e
	}
	return err
}

// Commit flushes, syncs and renames the temp file over the destination.
func (a *AtomicFile) Commit() error {
	if a.done {
		return errors.New("iox: commit after close")
	}
	a.done = true
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.tmp.Close()
			os.Remove(a.tmp.Name())
			return err
		}
	}
	if err := a.tmp.Sync(); err != nil {
		a.tmp.Close()
		os.Remove(a.tmp.Name())
		return fmt.Errorf("sync %s: %w", a.final, err)
	}
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return err
	}
	if err := os.Rename(a.tmp.Name(), a.final); err != nil {
		os.Remove(a.tmp.Name())
		return fmt.Errorf("publish %s: %w", a.final, err)
	}
	return nil
}

// Abort discards everything written so far. Safe to call after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	_ = a.closeAll()
	_ = os.Remove(a.tmp.Name())
}

type rc struct {
	io.Reader
	closers []io.Closer
}

func (r *rc) Close() error {
	var err error
	for i := range r.closers {
		if e := r.closers[i].Close(); err == nil && e != nil {
			err = e
		}
	}
	return err
}
