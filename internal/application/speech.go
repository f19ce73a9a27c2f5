package application

import (
	"context"

	"agrivoice/internal/domain"
)

type TranscribeRequest struct {
	Audio        []byte
	Language     domain.Language
	FarmerMobile string
}

// Transcriber turns one recording into a TranscriptionResult. Every
// endpoint variant reports failures as *domain.Error.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (*domain.TranscriptionResult, error)
}

// SpeechRecognizer is a bare speech-to-text step without listing extraction.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, audio []byte, lang domain.Language) (string, error)
}

type DescriptionGenerator interface {
	GenerateDescription(ctx context.Context, text string, lang domain.Language) (string, error)
}

type ProductStore interface {
	StoreProduct(ctx context.Context, sub domain.Submission) error
}
