package application

import (
	"context"

	"agrivoice/internal/domain"
)

// TwoStepTranscriber recognizes speech first and then asks for a listing
// description of the text. Product fields are left for the user to fill.
type TwoStepTranscriber struct {
	recognizer SpeechRecognizer
	describer  DescriptionGenerator
}

func NewTwoStepTranscriber(recognizer SpeechRecognizer, describer DescriptionGenerator) *TwoStepTranscriber {
	return &TwoStepTranscriber{
		recognizer: recognizer,
		describer:  describer,
	}
}

func (t *TwoStepTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) (*domain.TranscriptionResult, error) {
	text, err := t.recognizer.Recognize(ctx, req.Audio, req.Language)
	if err != nil {
		return nil, err
	}

	description, err := t.describer.GenerateDescription(ctx, text, req.Language)
	if err != nil {
		return nil, err
	}

	return &domain.TranscriptionResult{
		TranscribedText: text,
		Description:     description,
	}, nil
}
