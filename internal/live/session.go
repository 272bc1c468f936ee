// Package live recompiles an in-memory buffer on every edit and follows the
// editor cursor into the generated CSS.
package live

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/logfields"
)

// Display receives what a live session produces.
type Display interface {
	ShowResult(res compile.Result)
	ShowPosition(pos Position)
}

// Session holds the latest compile of one buffer.
type Session struct {
	unit     *compile.Unit
	indented *bool
	display  Display
	logger   *slog.Logger

	mu      sync.Mutex
	last    compile.Result
	hasLast bool
	index   *positionIndex
	indexed bool
}

// NewSession creates a session. indented fixes the buffer syntax; nil uses
// the unit default.
func NewSession(unit *compile.Unit, indented *bool, display Display, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{unit: unit, indented: indented, display: display, logger: logger}
}

// Edit recompiles text and reports the result.
func (s *Session) Edit(ctx context.Context, text string) compile.Result {
	res := s.unit.CompileText(ctx, text, s.indented)

	s.mu.Lock()
	s.last, s.hasLast = res, true
	s.index, s.indexed = nil, false
	s.mu.Unlock()

	if s.display != nil {
		s.display.ShowResult(res)
	}
	return res
}

// Cursor maps an editor cursor (0-based line and column) to the generated
// position. It reports false when the last compile failed or produced no map.
func (s *Session) Cursor(line, column int) (Position, bool) {
	s.mu.Lock()
	idx := s.positionIndexLocked()
	s.mu.Unlock()
	if idx == nil {
		return Position{}, false
	}

	pos, ok := idx.generatedFor(line+1, column)
	if !ok {
		return Position{}, false
	}
	if s.display != nil {
		s.display.ShowPosition(pos)
	}
	return pos, true
}

// Last returns the latest result, if any edit happened.
func (s *Session) Last() (compile.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

func (s *Session) positionIndexLocked() *positionIndex {
	if s.indexed {
		return s.index
	}
	s.indexed = true
	if !s.hasLast || !s.last.OK() || len(s.last.Map()) == 0 {
		return nil
	}
	idx, err := newPositionIndex(s.last.CSS(), s.last.Map())
	if err != nil {
		s.logger.Warn("Unusable source map", logfields.Error(err))
		return nil
	}
	s.index = idx
	return idx
}
