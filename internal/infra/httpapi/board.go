package httpapi

import (
	"log/slog"
	"sync"
	"time"

	"agrivoice/internal/application"
	"agrivoice/internal/domain"
)

const historySize = 20

type StatusEntry struct {
	Level   application.StatusLevel `json:"level"`
	Message string                  `json:"message"`
	At      time.Time               `json:"at"`
}

// Board is the presenter behind the control API. It keeps the latest
// status line, a short history and whether the preview is visible.
type Board struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	history []StatusEntry
	preview bool
}

func NewBoard(logger *slog.Logger) *Board {
	return &Board{
		logger: logger,
		now:    time.Now,
	}
}

func (b *Board) ShowStatus(s application.Status) {
	entry := StatusEntry{Level: s.Level, Message: s.Message, At: b.now()}

	b.mu.Lock()
	b.history = append(b.history, entry)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}
	b.mu.Unlock()

	if s.Level == application.StatusError {
		b.logger.Warn("status", "level", s.Level, "message", s.Message)
	} else {
		b.logger.Debug("status", "level", s.Level, "message", s.Message)
	}
}

func (b *Board) ShowPreview(_ domain.TranscriptionResult, _ domain.ProductDraft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preview = true
}

func (b *Board) HidePreview() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preview = false
}

func (b *Board) Latest() (StatusEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.history) == 0 {
		return StatusEntry{}, false
	}
	return b.history[len(b.history)-1], true
}

func (b *Board) History() []StatusEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StatusEntry, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Board) PreviewVisible() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.preview
}
