package application

import (
	"context"

	"agrivoice/internal/domain"
)

type StatusLevel string

const (
	StatusReady      StatusLevel = "ready"
	StatusRecording  StatusLevel = "recording"
	StatusProcessing StatusLevel = "processing"
	StatusSuccess    StatusLevel = "success"
	StatusError      StatusLevel = "error"
)

type Status struct {
	Level   StatusLevel
	Message string
}

// Presenter renders controller output. Calls are made without the
// controller lock held.
type Presenter interface {
	ShowStatus(status Status)
	ShowPreview(result domain.TranscriptionResult, draft domain.ProductDraft)
	HidePreview()
}

type NoopPresenter struct{}

func (NoopPresenter) ShowStatus(Status)                                           {}
func (NoopPresenter) ShowPreview(domain.TranscriptionResult, domain.ProductDraft) {}
func (NoopPresenter) HidePreview()                                                {}

// Notifier tells the farmer a listing went live.
type Notifier interface {
	ListingSaved(ctx context.Context, sub domain.Submission) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) ListingSaved(_ context.Context, _ domain.Submission) error {
	return nil
}

// PreferenceStore persists the selected language between runs.
type PreferenceStore interface {
	LoadLanguage() (domain.Language, error)
	SaveLanguage(lang domain.Language) error
}
