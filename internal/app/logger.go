package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
)

// NewLogger returns the process logfmt logger writing to w.
func NewLogger(w io.Writer) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.WithPrefix(logger, "ts", log.DefaultTimestampUTC)
	logger = log.WithPrefix(logger, "caller", log.DefaultCaller)
	return logger
}

// NewFileLogger appends to path. The terminal dashboard logs here so that
// output does not land on the alternate screen.
func NewFileLogger(path string) (log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f), f, nil
}
