package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSource_OpenAndStop(t *testing.T) {
	tmpDir := t.TempDir()

	clip := bytes.Repeat([]byte("RIFF....WAVEfmt audio data "), 4000)
	if err := os.WriteFile(filepath.Join(tmpDir, "command1.wav"), clip, 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	source := NewFileSource(tmpDir, 16000)
	if !source.Supported() {
		t.Fatal("existing directory should be supported")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := source.Open(ctx)
	if err != nil {
		t.Fatalf("opening source: %v", err)
	}
	defer stream.Close()

	chunks, err := stream.Stop()
	if err != nil {
		t.Fatalf("stopping stream: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected clip split into fragments, got %d", len(chunks))
	}
	if !bytes.Equal(bytes.Join(chunks, nil), clip) {
		t.Error("fragments do not reassemble into the clip")
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "command1.wav.processed")); err != nil {
		t.Errorf("clip not marked processed: %v", err)
	}
}

func TestFileSource_TakesClipsInOrder(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"b.wav", "a.webm", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(name), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}
	}

	source := NewFileSource(tmpDir, 16000)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, want := range []string{"a.webm", "b.wav"} {
		stream, err := source.Open(ctx)
		if err != nil {
			t.Fatalf("opening source: %v", err)
		}
		chunks, _ := stream.Stop()
		stream.Close()
		if got := string(bytes.Join(chunks, nil)); got != want {
			t.Errorf("clip: got %q, want %q", got, want)
		}
	}
}

func TestFileSource_WrapsPCM(t *testing.T) {
	tmpDir := t.TempDir()

	pcm := pcm16Bytes([]int16{0, 100, -100, 32767})
	if err := os.WriteFile(filepath.Join(tmpDir, "clip.pcm"), pcm, 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	source := NewFileSource(tmpDir, 8000)
	stream, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("opening source: %v", err)
	}
	chunks, _ := stream.Stop()
	data := bytes.Join(chunks, nil)

	if len(data) != wavHeaderSize+len(pcm) {
		t.Fatalf("size: got %d, want %d", len(data), wavHeaderSize+len(pcm))
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 8000 {
		t.Errorf("sample rate: got %d, want 8000", rate)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); int(size) != len(pcm) {
		t.Errorf("data size: got %d, want %d", size, len(pcm))
	}
}

func TestFileSource_OpenWaitsForClip(t *testing.T) {
	tmpDir := t.TempDir()
	source := NewFileSource(tmpDir, 16000)
	source.poll = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := source.Open(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestFileSource_CancelledOpenLeavesClip(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "001.wav"), []byte("RIFF"), 0644); err != nil {
		t.Fatalf("writing clip: %v", err)
	}
	source := NewFileSource(tmpDir, 16000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context canceled", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "001.wav")); err != nil {
		t.Errorf("clip should be left for the next request: %v", err)
	}
}

func TestFileSource_MissingDirUnsupported(t *testing.T) {
	source := NewFileSource(filepath.Join(t.TempDir(), "missing"), 16000)
	if source.Supported() {
		t.Error("missing directory should not be supported")
	}
}

func TestFileStream_StopAfterClose(t *testing.T) {
	s := &fileStream{chunks: [][]byte{[]byte("a")}}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := s.Stop(); err == nil {
		t.Error("stop after close should fail")
	}
}

func TestSplitChunks(t *testing.T) {
	chunks := splitChunks([]byte("abcdefg"), 3)
	if len(chunks) != 3 || string(chunks[2]) != "g" {
		t.Errorf("chunks: got %q", chunks)
	}
	if len(splitChunks(nil, 3)) != 0 {
		t.Error("empty input should produce no chunks")
	}
}

func TestRecordedAudio(t *testing.T) {
	if got := recordedAudio(nil, 16000); got != nil {
		t.Errorf("no chunks: got %d fragments, want nil", len(got))
	}
	if got := recordedAudio([][]byte{{}, {}}, 16000); got != nil {
		t.Errorf("empty chunks: got %d fragments, want nil", len(got))
	}

	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	got := recordedAudio([][]byte{pcm}, 16000)
	if len(got) != 2 || len(got[0]) != wavHeaderSize {
		t.Fatalf("fragments: got %d, want header + data", len(got))
	}
	if size := binary.LittleEndian.Uint32(got[0][40:44]); size != uint32(len(pcm)) {
		t.Errorf("data size: got %d, want %d", size, len(pcm))
	}
}

func TestMicrophoneSource_Name(t *testing.T) {
	m := NewMicrophoneSource(16000, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Name() != "microphone" {
		t.Errorf("name: got %s", m.Name())
	}
}
