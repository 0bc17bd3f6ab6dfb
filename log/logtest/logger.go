/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"io"
	"os"
	"sync"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-throttledbucket/log"
)

// LoggerOpts represents options for the test logger.
type LoggerOpts struct {
	// Output receives JSON lines. os.Stderr is used if nil.
	Output io.Writer
}

// NewLogger returns a debug level logger writing JSON lines to stderr synchronously.
// It's meant for tests only.
func NewLogger() log.FieldLogger {
	return NewLoggerWithOpts(LoggerOpts{})
}

// NewLoggerWithOpts is like NewLogger but allows to redirect the output.
func NewLoggerWithOpts(opts LoggerOpts) log.FieldLogger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	w := &syncJSONWriter{
		encoder: logf.NewJSONEncoder(logf.JSONEncoderConfig{
			FieldKeyTime: "time",
			EncodeTime:   logf.RFC3339NanoTimeEncoder,
		}),
		output: opts.Output,
	}
	return &log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, w)}
}

// syncJSONWriter encodes every entry in the caller's goroutine, so the output is complete once a log call returns.
type syncJSONWriter struct {
	mu      sync.Mutex
	encoder logf.Encoder
	output  io.Writer
}

//nolint:gocritic // logf.EntryWriter passes entries by value.
func (w *syncJSONWriter) WriteEntry(e logf.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := logf.NewBuffer()
	if err := w.encoder.Encode(buf, e); err != nil {
		_, _ = io.WriteString(w.output, err.Error()+"\n")
		return
	}
	_, _ = w.output.Write(buf.Bytes())
}
