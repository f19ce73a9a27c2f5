package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"agrivoice/internal/application"
)

const defaultChunkSize = 32 * 1024

// FileSource replays recorded clips dropped into a directory. Each Open
// takes the oldest unprocessed clip; raw .pcm clips are wrapped as WAV.
type FileSource struct {
	dir        string
	sampleRate int
	chunkSize  int
	poll       time.Duration

	mu sync.Mutex
}

func NewFileSource(dir string, sampleRate int) *FileSource {
	if sampleRate == 0 {
		sampleRate = application.DefaultAudioFormat().SampleRate
	}
	return &FileSource{
		dir:        dir,
		sampleRate: sampleRate,
		chunkSize:  defaultChunkSize,
		poll:       500 * time.Millisecond,
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Supported() bool {
	info, err := os.Stat(f.dir)
	return err == nil && info.IsDir()
}

// Open waits until a clip is available or ctx is done.
func (f *FileSource) Open(ctx context.Context) (application.CaptureStream, error) {
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		// An abandoned request must not consume the next clip.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("waiting for clip in %s: %w", f.dir, err)
		}

		data, err := f.takeNextClip()
		if err != nil {
			return nil, err
		}
		if data != nil {
			return &fileStream{chunks: splitChunks(data, f.chunkSize)}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for clip in %s: %w", f.dir, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (f *FileSource) takeNextClip() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("reading dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isClip(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(f.dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", path, err)
		}

		if err := os.Rename(path, path+".processed"); err != nil {
			return nil, fmt.Errorf("marking %s processed: %w", path, err)
		}

		if strings.EqualFold(filepath.Ext(name), ".pcm") {
			return joinChunks(withWAVHeader([][]byte{data}, f.sampleRate)), nil
		}
		return data, nil
	}

	return nil, nil
}

func isClip(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".mp3", ".m4a", ".webm", ".ogg", ".pcm":
		return true
	}
	return false
}

func joinChunks(chunks [][]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

type fileStream struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

func (s *fileStream) Stop() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("stream already closed")
	}
	chunks := s.chunks
	s.chunks = nil
	return chunks, nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.chunks = nil
	return nil
}
