package application

import "context"

// CaptureSource is a device that can record one clip at a time.
type CaptureSource interface {
	Name() string
	// Supported reports whether the capability exists at all on this host.
	Supported() bool
	// Open requests the device and starts capturing. It blocks while
	// permission is pending and returns domain.ErrPermissionDenied on refusal.
	Open(ctx context.Context) (CaptureStream, error)
}

// CaptureStream is an open device handle.
type CaptureStream interface {
	// Stop halts capture and returns the buffered fragments in order.
	Stop() ([][]byte, error)
	// Close releases the device. Safe to call more than once.
	Close() error
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}
