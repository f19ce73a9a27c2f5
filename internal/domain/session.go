package domain

import (
	"bytes"
	"time"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Busy reports whether the state is waiting on capture teardown or the network.
func (s State) Busy() bool {
	return s == StateStopping || s == StateUploading
}

// CaptureSession is one recording attempt and the audio it produced.
// Chunks stay empty until capture has stopped.
type CaptureSession struct {
	ID         string
	Generation uint64
	State      State
	Chunks     [][]byte
	Language   Language
	StartedAt  time.Time
	LastError  error
}

// Audio concatenates the collected fragments in capture order.
func (s *CaptureSession) Audio() []byte {
	return bytes.Join(s.Chunks, nil)
}

func (s *CaptureSession) AudioSize() int {
	n := 0
	for _, c := range s.Chunks {
		n += len(c)
	}
	return n
}
