package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultBufferSize    = 32 * 1024
	defaultFlushInterval = 5 * time.Second
	logDirPermissions    = 0o750
	logFilePermissions   = 0o640
)

// bufferedFileWriter appends to a log file through a buffer that is flushed
// periodically and on Close.
type bufferedFileWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func newBufferedFileWriter(path string, flushInterval time.Duration) (*bufferedFileWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, logDirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w := &bufferedFileWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, defaultBufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	go w.flushLoop(flushInterval)

	return w, nil
}

func (w *bufferedFileWriter) flushLoop(interval time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}

func (w *bufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.writer.Write(p)
}

// Flush writes buffered data to the OS without fsync
func (w *bufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.writer.Flush()
}

// Close stops the flush loop, flushes, syncs and closes the file
func (w *bufferedFileWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stop)
	flushErr := w.writer.Flush()
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.mu.Unlock()

	<-w.done

	switch {
	case flushErr != nil:
		return flushErr
	case syncErr != nil:
		return syncErr
	default:
		return closeErr
	}
}
