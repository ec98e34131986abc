package media

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// SampleRate is the normalized rate every extracted window uses.
	SampleRate = 16000
	// Channels is the normalized channel count.
	Channels = 1
	// BitDepth is the PCM depth ffmpeg writes and the engines read.
	BitDepth = 16
)

// ErrUnexpectedFormat is returned when a WAV file is not mono 16 kHz PCM.
var ErrUnexpectedFormat = errors.New("unexpected wav format")

// ReadSamplesFile decodes a normalized WAV file into float32 samples.
func ReadSamplesFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSamples(f)
}

// DecodeSamples decodes mono 16 kHz PCM WAV data into samples in [-1, 1].
func DecodeSamples(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav stream", ErrUnexpectedFormat)
	}
	if int(dec.NumChans) != Channels || int(dec.SampleRate) != SampleRate {
		return nil, fmt.Errorf("%w: %d ch @ %d Hz", ErrUnexpectedFormat, dec.NumChans, dec.SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = BitDepth
	}
	scale := float32(int64(1) << (depth - 1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return samples, nil
}

// EncodeSamples writes samples as a mono 16 kHz 16-bit PCM WAV stream.
func EncodeSamples(w io.WriteSeeker, samples []float32) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: Channels,
			SampleRate:  SampleRate,
		},
		Data:           data,
		SourceBitDepth: BitDepth,
	}

	enc := wav.NewEncoder(w, SampleRate, BitDepth, Channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// WriteSamplesFile encodes samples into a WAV file at path.
func WriteSamplesFile(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeSamples(f, samples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// MemBuffer is an in-memory io.WriteSeeker for building WAV payloads.
type MemBuffer struct {
	buf []byte
	pos int64
}

func (m *MemBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *MemBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.pos + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = next
	return next, nil
}

// Bytes returns the written content.
func (m *MemBuffer) Bytes() []byte {
	return m.buf
}
