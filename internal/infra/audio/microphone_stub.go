//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"agrivoice/internal/application"
	"agrivoice/internal/domain"
)

// MicrophoneSource stub when portaudio is not available
type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(sampleRate, maxSeconds int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Supported() bool {
	return false
}

func (m *MicrophoneSource) Open(_ context.Context) (application.CaptureStream, error) {
	return nil, fmt.Errorf("microphone source not available, rebuild with -tags portaudio: %w", domain.ErrCaptureUnsupported)
}
