package engine

import (
	"fmt"
	"os"
	"sync"
)

// FileWriter keeps one open handle per destination path so a job can write
// its chunks without reopening the file every time.
type FileWriter struct {
	mu      sync.RWMutex
	handles map[string]*os.File
}

func NewFileWriter() *FileWriter {
	return &FileWriter{
		handles: make(map[string]*os.File),
	}
}

// Append writes data at the current end of path, creating (and truncating)
// the file on first access. Streams arrive in byte order, so sequential
// appends are all a job needs.
func (fw *FileWriter) Append(path string, data []byte) error {
	f, err := fw.getOrCreateFile(path)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	return err
}

func (fw *FileWriter) getOrCreateFile(path string) (*os.File, error) {
	fw.mu.RLock()
	f, ok := fw.handles[path]
	fw.mu.RUnlock()
	if ok {
		return f, nil
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	f, ok = fw.handles[path]
	if ok {
		return f, nil
	}

	// Truncate: a leftover .part from an aborted run is stale, downloads
	// always restart from byte zero.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open part file: %w", err)
	}

	fw.handles[path] = f
	return f, nil
}

// CloseFile syncs and closes the handle for path so the OS releases it for
// renaming.
func (fw *FileWriter) CloseFile(path string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	f, ok := fw.handles[path]
	if !ok {
		return nil // already closed
	}
	delete(fw.handles, path)

	f.Sync()
	return f.Close()
}

func (fw *FileWriter) CloseAll() {
	fw.mu.RLock()
	paths := make([]string, 0, len(fw.handles))
	for path := range fw.handles {
		paths = append(paths, path)
	}
	fw.mu.RUnlock()

	for _, path := range paths {
		_ = fw.CloseFile(path) // Ignore error on global cleanup
	}
}
