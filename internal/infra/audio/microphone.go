//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"agrivoice/internal/application"
)

const framesPerBuffer = 1024

// MicrophoneSource records from the default input device via PortAudio.
type MicrophoneSource struct {
	sampleRate int
	maxSeconds int
	logger     *slog.Logger
}

func NewMicrophoneSource(sampleRate, maxSeconds int, logger *slog.Logger) *MicrophoneSource {
	if sampleRate == 0 {
		sampleRate = application.DefaultAudioFormat().SampleRate
	}
	return &MicrophoneSource{
		sampleRate: sampleRate,
		maxSeconds: maxSeconds,
		logger:     logger,
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Supported() bool {
	if err := portaudio.Initialize(); err != nil {
		m.logger.Warn("initializing portaudio", "error", err)
		return false
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	return err == nil && dev != nil && dev.MaxInputChannels > 0
}

func (m *MicrophoneSource) Open(ctx context.Context) (application.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, framesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	s := &micStream{
		stream:     stream,
		buffer:     buffer,
		sampleRate: m.sampleRate,
		maxChunks:  m.maxSeconds * m.sampleRate / framesPerBuffer,
		logger:     m.logger,
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	go s.readLoop()

	m.logger.Info("microphone started", "sampleRate", m.sampleRate)
	return s, nil
}

type micStream struct {
	stream     *portaudio.Stream
	buffer     []int16
	sampleRate int
	maxChunks  int
	logger     *slog.Logger

	mu      sync.Mutex
	chunks  [][]byte
	readErr error

	done      chan struct{}
	finished  chan struct{}
	haltOnce  sync.Once
	closeOnce sync.Once
}

func (s *micStream) readLoop() {
	defer close(s.finished)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			s.mu.Lock()
			s.readErr = fmt.Errorf("reading from stream: %w", err)
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		if s.maxChunks <= 0 || len(s.chunks) < s.maxChunks {
			s.chunks = append(s.chunks, pcm16Bytes(s.buffer))
		}
		s.mu.Unlock()
	}
}

func (s *micStream) halt() {
	s.haltOnce.Do(func() {
		close(s.done)
		<-s.finished
		if err := s.stream.Stop(); err != nil {
			s.logger.Warn("stopping microphone stream", "error", err)
		}
	})
}

func (s *micStream) Stop() ([][]byte, error) {
	s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil && len(s.chunks) == 0 {
		return nil, s.readErr
	}
	chunks := s.chunks
	s.chunks = nil
	return recordedAudio(chunks, s.sampleRate), nil
}

func (s *micStream) Close() error {
	s.halt()

	var err error
	s.closeOnce.Do(func() {
		if cerr := s.stream.Close(); cerr != nil {
			err = fmt.Errorf("closing stream: %w", cerr)
		}
		portaudio.Terminate()
		s.logger.Info("microphone released")
	})
	return err
}
