package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// WriterSink prints messages instead of delivering them (dry runs).
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutSink writes to os.Stdout.
func NewStdoutSink() *WriterSink { return NewWriterSink(os.Stdout) }

func NewWriterSink(w io.Writer) *WriterSink { return &WriterSink{w: w} }

func (s *WriterSink) Name() string { return "stdout" }

func (s *WriterSink) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] %s\n\n", m.Severity, RenderText(m))
	return err
}
