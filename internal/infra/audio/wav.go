package audio

import (
	"bytes"
	"encoding/binary"
)

const wavHeaderSize = 44

// wavHeader returns the RIFF header for dataSize bytes of mono 16-bit PCM.
func wavHeader(dataSize, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, int16(2))
	binary.Write(&buf, binary.LittleEndian, int16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(dataSize))

	return buf.Bytes()
}

func pcm16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// withWAVHeader prepends a header sized for the fragments that follow it.
func withWAVHeader(chunks [][]byte, sampleRate int) [][]byte {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	out := make([][]byte, 0, len(chunks)+1)
	out = append(out, wavHeader(size, sampleRate))
	return append(out, chunks...)
}

// recordedAudio wraps captured PCM as WAV, or returns nil when nothing was
// captured so a header alone is never mistaken for a recording.
func recordedAudio(chunks [][]byte, sampleRate int) [][]byte {
	for _, c := range chunks {
		if len(c) > 0 {
			return withWAVHeader(chunks, sampleRate)
		}
	}
	return nil
}

// splitChunks cuts data into fragments of at most size bytes.
func splitChunks(data []byte, size int) [][]byte {
	if size <= 0 {
		size = len(data)
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n:n])
		data = data[n:]
	}
	return chunks
}
