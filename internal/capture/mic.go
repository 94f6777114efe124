package capture

import (
	"fmt"
	"log/slog"

	"github.com/jfreymuth/pulse"
)

// MicRecorder records the default input source as mono PCM.
type MicRecorder struct {
	*pcmStream
}

// StartMicRecorder opens path and begins capturing the default microphone
// into it at the requested rate.
func StartMicRecorder(logger *slog.Logger, path string, sampleRate int) (*MicRecorder, error) {
	sink, err := newFileSink(path, sampleRate, 1)
	if err != nil {
		return nil, err
	}

	stream, err := startStream(logger, sink,
		func(client *pulse.Client) (*pulse.Source, error) {
			source, err := client.DefaultSource()
			if err != nil {
				return nil, fmt.Errorf("%w: read default source: %v", ErrDeviceResolution, err)
			}
			return source, nil
		},
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordMediaName("earshot microphone"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("microphone capture started", "path", path, "rate", sampleRate)
	return &MicRecorder{pcmStream: stream}, nil
}
