package counter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store hands out the running vouch number.
// Increment never fails: storage problems are logged and the caller
// still gets a usable number.
type Store interface {
	Increment() int
}

type fileContent struct {
	Count int `json:"count"`
}

// FileStore keeps the count as a JSON object in a single file.
// The file is re-read on every call, nothing is cached between invocations.
// Increments are serialized inside one process; two processes sharing
// the same file can still both read the same starting value.
type FileStore struct {
	path string
	mu   sync.Mutex

	// latency hooks, both optional
	OnRead  func(time.Duration)
	OnWrite func(time.Duration)
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Increment() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	content := f.read()
	content.Count++

	if err := f.write(content); err != nil {
		slog.Error("can't update vouch count file", "path", f.path, "error", err)
	}
	return content.Count
}

// read returns a zero count on any failure.
func (f *FileStore) read() fileContent {
	startTimer := time.Now()
	defer func() {
		if f.OnRead != nil {
			f.OnRead(time.Since(startTimer))
		}
	}()

	var content fileContent
	data, err := os.ReadFile(f.path)
	if err != nil {
		slog.Warn("can't read vouch count file", "path", f.path, "error", err)
		return fileContent{}
	}
	if err := json.Unmarshal(data, &content); err != nil {
		slog.Warn("can't parse vouch count file", "path", f.path, "error", err)
		return fileContent{}
	}
	if content.Count < 0 {
		slog.Warn("negative vouch count in file, starting over", "path", f.path, "count", content.Count)
		return fileContent{}
	}
	return content
}

// write replaces the file through a temp file + rename so readers never
// see a half-written object.
func (f *FileStore) write(content fileContent) error {
	startTimer := time.Now()
	defer func() {
		if f.OnWrite != nil {
			f.OnWrite(time.Since(startTimer))
		}
	}()

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("(*FileStore).write: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("(*FileStore).write: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("(*FileStore).write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("(*FileStore).write: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("(*FileStore).write: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store, used by tests.
type MemStore struct {
	mu    sync.Mutex
	count int
}

var _ Store = (*MemStore)(nil)

func NewMemStore(start int) *MemStore {
	return &MemStore{count: start}
}

func (m *MemStore) Increment() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return m.count
}

// Count reports the current value without changing it.
func (m *MemStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
