package capture

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := newFileSink(path, 44100, 1)
	require.NoError(t, err)

	n, err := sink.WritePCM(pcmBytes(100, -200, 300))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	n, err = sink.WritePCM(pcmBytes(-32000, 5))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	require.Equal(t, int64(5), sink.Frames())
	require.Equal(t, 32000, sink.Peak())
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, []int{100, -200, 300, -32000, 5}, buf.Data)
	require.Equal(t, 1, buf.Format.NumChannels)
	require.Equal(t, 44100, buf.Format.SampleRate)
}

func TestFileSinkZeroSamplesStillDecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	sink, err := newFileSink(path, 48000, 2)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
}

func TestFileSinkCarriesSplitSampleAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.wav")
	sink, err := newFileSink(path, 44100, 1)
	require.NoError(t, err)

	// split the byte stream mid sample; nothing may be dropped
	raw := pcmBytes(100, -200, 300)
	n, err := sink.WritePCM(raw[:3])
	require.NoError(t, err)
	require.Equal(t, 3, n)
	n, err = sink.WritePCM(raw[3:])
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.Equal(t, int64(3), sink.Frames())
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, []int{100, -200, 300}, buf.Data)
}

func TestFileSinkWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")
	sink, err := newFileSink(path, 44100, 1)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	_, err = sink.WritePCM(pcmBytes(1, 2))
	require.Equal(t, io.EOF, err)
	require.NoError(t, sink.Close(), "close is idempotent")
}

func TestFileSinkFramesCountFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	sink, err := newFileSink(path, 48000, 2)
	require.NoError(t, err)

	// four samples interleaved over two channels is two frames
	_, err = sink.WritePCM(pcmBytes(1, 2, 3, 4))
	require.NoError(t, err)
	require.Equal(t, int64(2), sink.Frames())
	require.NoError(t, sink.Close())
}

func TestFileSinkDiscardRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.wav")
	sink, err := newFileSink(path, 44100, 1)
	require.NoError(t, err)

	sink.discard()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
