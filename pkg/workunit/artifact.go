package workunit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ArtifactWriter creates the files of a run.
//
// Names are flat file names relative to the writer's root. Create fails when
// the name already exists: a run never overwrites its own artifacts.
type ArtifactWriter interface {
	Create(name string) (io.WriteCloser, error)
	Chmod(name string, mode fs.FileMode) error
}

// WriteFile creates name, writes data, and applies mode when it is non-zero.
func WriteFile(w ArtifactWriter, name string, data []byte, mode fs.FileMode) error {
	f, err := w.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if mode != 0 {
		if err := w.Chmod(name, mode); err != nil {
			return err
		}
	}
	return nil
}

// DirWriter writes artifacts into an existing directory.
type DirWriter struct {
	Root string
}

func NewDirWriter(root string) *DirWriter {
	return &DirWriter{Root: root}
}

func (d *DirWriter) path(name string) (string, error) {
	if !filepath.IsLocal(name) || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name: %q", name)
	}
	return filepath.Join(d.Root, name), nil
}

func (d *DirWriter) Create(name string) (io.WriteCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	return f, nil
}

func (d *DirWriter) Chmod(name string, mode fs.FileMode) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Chmod(p, mode); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	return nil
}

// MemWriter keeps artifacts in memory. It backs plan output and tests.
type MemWriter struct {
	mu    sync.Mutex
	files map[string][]byte
	modes map[string]fs.FileMode
	order []string
}

func NewMemWriter() *MemWriter {
	return &MemWriter{
		files: make(map[string][]byte),
		modes: make(map[string]fs.FileMode),
	}
}

func (m *MemWriter) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		return nil, errors.New("artifact name is empty")
	}
	if _, ok := m.files[name]; ok {
		return nil, fmt.Errorf("create artifact: %s: %w", name, fs.ErrExist)
	}
	m.files[name] = nil
	m.modes[name] = 0o644
	m.order = append(m.order, name)
	return &memFile{owner: m, name: name}, nil
}

func (m *MemWriter) Chmod(name string, mode fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("chmod artifact: %s: %w", name, fs.ErrNotExist)
	}
	m.modes[name] = mode
	return nil
}

// Files returns artifact names sorted lexically.
func (m *MemWriter) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Created returns artifact names in creation order.
func (m *MemWriter) Created() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Bytes returns the closed content of name, or nil.
func (m *MemWriter) Bytes(name string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name]
}

func (m *MemWriter) Mode(name string) fs.FileMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modes[name]
}

type memFile struct {
	owner  *MemWriter
	name   string
	buf    bytes.Buffer
	closed bool
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.buf.Write(p)
}

func (f *memFile) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	f.owner.mu.Lock()
	f.owner.files[f.name] = f.buf.Bytes()
	f.owner.mu.Unlock()
	return nil
}

var (
	_ ArtifactWriter = (*DirWriter)(nil)
	_ ArtifactWriter = (*MemWriter)(nil)
)
