//go:build !windows

// Package stderr captures stderr output from C libraries (ALSA, faad2)
// that write directly to file descriptor 2, bypassing Go's os.Stderr.
// Captured lines go to the log instead of corrupting the TUI layout.
package stderr

import (
	"log/slog"
	"os"
	"sync"
	"syscall"
)

var (
	mu         sync.Mutex
	origStderr = -1
	pipeRead   *os.File
	pipeWrite  *os.File
	done       chan struct{}
)

// Start begins capturing stderr output, logging each line as a warning.
// Must be called early in main(), before any C library initialization.
// Returns an error if capture cannot be set up, but the program can continue
// without stderr capture (output will just go to the original stderr).
func Start(logger *slog.Logger) error {
	mu.Lock()
	defer mu.Unlock()
	if pipeRead != nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	orig, err := syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return err
	}

	if err := syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		syscall.Close(orig)
		r.Close()
		w.Close()
		return err
	}

	origStderr = orig
	pipeRead = r
	pipeWrite = w
	done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		forward(r, logger.With("component", "stderr"))
	}(done)

	return nil
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
// Useful for fatal errors that must be visible even if the TUI is running.
func WriteOriginal(msg string) {
	mu.Lock()
	fd := origStderr
	mu.Unlock()
	if fd < 0 {
		_, _ = os.Stderr.WriteString(msg)
		return
	}
	_, _ = syscall.Write(fd, []byte(msg))
}

// Stop restores the original stderr and waits for captured output to be
// logged. Should be called on program exit.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if pipeRead == nil {
		return
	}

	_ = syscall.Dup2(origStderr, int(os.Stderr.Fd()))
	_ = syscall.Close(origStderr)
	origStderr = -1

	// fd 2 no longer references the pipe, so closing the write end ends
	// the reader.
	pipeWrite.Close()
	<-done
	pipeRead.Close()
	pipeRead, pipeWrite, done = nil, nil, nil
}
