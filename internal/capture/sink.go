// Package capture records system playback and microphone input to WAV files.
package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// fileSink accumulates s16le PCM into one WAV file. It is the only capture
// object touched from outside the coordination context: the Pulse callback
// goroutine writes while the owner reads counters or closes, so every member
// is guarded by the mutex. Sample conversion happens before the lock is
// taken.
type fileSink struct {
	path string

	// half-sample carry between writes; only the stream callback
	// goroutine touches these, so they live outside the mutex.
	pending     byte
	havePending bool

	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	format *audio.Format
	frames int64
	peak   int
	closed bool
	err    error
}

func newFileSink(path string, sampleRate, channels int) (*fileSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrFileIO, path, err)
	}
	return &fileSink{
		path: path,
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, 16, channels, 1),
		format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
	}, nil
}

// Path returns the destination file path.
func (s *fileSink) Path() string {
	return s.path
}

// WritePCM appends raw s16le bytes to the file. After Close it reports
// io.EOF so the feeding stream shuts down instead of erroring. Fragments
// arrive frame aligned from the server; if one ever splits a sample, the
// stray byte is carried into the next call rather than dropped.
func (s *fileSink) WritePCM(buf []byte) (int, error) {
	data := buf
	if s.havePending {
		data = make([]byte, 0, 1+len(buf))
		data = append(data, s.pending)
		data = append(data, buf...)
		s.havePending = false
	}
	if len(data)%2 != 0 {
		s.pending = data[len(data)-1]
		s.havePending = true
		data = data[:len(data)-1]
	}

	if len(data) == 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return 0, io.EOF
		}
		return len(buf), nil
	}

	samples := make([]int, len(data)/2)
	peak := 0
	for i := range samples {
		v := int(int16(binary.LittleEndian.Uint16(data[2*i:])))
		samples[i] = v
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	if s.err != nil {
		return 0, s.err
	}

	err := s.enc.Write(&audio.IntBuffer{
		Format:         s.format,
		Data:           samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		s.err = fmt.Errorf("%w: write %s: %v", ErrFileIO, s.path, err)
		return 0, s.err
	}

	s.frames += int64(len(samples) / s.format.NumChannels)
	if peak > s.peak {
		s.peak = peak
	}
	return len(buf), nil
}

// Frames returns the number of sample frames written so far.
func (s *fileSink) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Peak returns the largest absolute sample value seen so far.
func (s *fileSink) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Err returns the first write failure, if any.
func (s *fileSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close finalizes the WAV header and closes the file. A sink closed with
// zero frames still produces a decodable file. Idempotent.
func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.frames == 0 && s.err == nil {
		// The encoder emits the RIFF header on the first write, so a
		// session stopped before any audio arrived needs an empty write
		// to produce a decodable file.
		if err := s.enc.Write(&audio.IntBuffer{Format: s.format, SourceBitDepth: 16}); err != nil {
			firstErr = fmt.Errorf("%w: finalize %s: %v", ErrFileIO, s.path, err)
		}
	}
	if err := s.enc.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: finalize %s: %v", ErrFileIO, s.path, err)
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: close %s: %v", ErrFileIO, s.path, err)
	}
	if firstErr != nil {
		return firstErr
	}
	return s.err
}

// discard removes the destination file after closing; used to roll back a
// session that never produced usable audio.
func (s *fileSink) discard() {
	_ = s.Close()
	_ = os.Remove(s.path)
}
