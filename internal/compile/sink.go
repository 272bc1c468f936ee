package compile

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// LogSink is the ordered, append-only destination for failure lines.
type LogSink interface {
	AppendLine(line string)
}

// WriterSink writes one line per call to w, highlighted when w is a terminal.
type WriterSink struct {
	mu    sync.Mutex
	w     io.Writer
	color *color.Color
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, color: color.New(color.FgRed)}
}

func (s *WriterSink) AppendLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.color.Fprintln(s.w, line)
}

// MemorySink keeps lines in memory.
type MemorySink struct {
	mu    sync.Mutex
	lines []string
}

func (s *MemorySink) AppendLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

// Lines returns a copy of the collected lines.
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// discardSink drops everything.
type discardSink struct{}

func (discardSink) AppendLine(string) {}

func failureLine(file string, err error) string {
	return fmt.Sprintf("%s: %s", file, describe(err))
}
