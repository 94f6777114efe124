package capture

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const fragmentBytes = 3840 // 20ms @ 48kHz stereo s16

// pcmStream couples one Pulse record stream to a file sink. The Pulse
// library invokes the writer from its own goroutine; everything it touches
// is either immutable after construction or guarded inside the sink.
type pcmStream struct {
	logger *slog.Logger
	sink   *fileSink

	client *pulse.Client
	stream *pulse.RecordStream

	stopCh chan struct{}

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

// startStream connects, resolves the requested source, and begins recording
// into sink. On any failure the partially created file is removed.
func startStream(logger *slog.Logger, sink *fileSink, resolve func(*pulse.Client) (*pulse.Source, error), opts ...pulse.RecordOption) (*pcmStream, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("earshot"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		sink.discard()
		return nil, fmt.Errorf("%w: connect pulse server: %v", ErrStreamStart, err)
	}

	source, err := resolve(client)
	if err != nil {
		client.Close()
		sink.discard()
		return nil, err
	}

	ps := &pcmStream{
		logger: logger,
		sink:   sink,
		client: client,
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(ps.onPCM), pulseproto.FormatInt16LE)
	recordOpts := append([]pulse.RecordOption{
		pulse.RecordSource(source),
		pulse.RecordBufferFragmentSize(fragmentBytes),
	}, opts...)

	stream, err := client.NewRecord(writer, recordOpts...)
	if err != nil {
		client.Close()
		sink.discard()
		return nil, fmt.Errorf("%w: create record stream: %v", ErrStreamStart, err)
	}

	ps.stream = stream
	stream.Start()
	return ps, nil
}

// Path returns the destination file path.
func (p *pcmStream) Path() string {
	return p.sink.Path()
}

// Frames returns frames written so far; safe during capture.
func (p *pcmStream) Frames() int64 {
	return p.sink.Frames()
}

// Err reports a mid-stream write failure without stopping the stream.
func (p *pcmStream) Err() error {
	return p.sink.Err()
}

// Stop halts the stream, waits out in-flight writes, and finalizes the WAV
// file exactly once. Idempotent.
func (p *pcmStream) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
	}
	if p.client != nil {
		p.client.Close()
	}

	p.inflight.Wait()

	if err := p.sink.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamStop, err)
	}
	return nil
}

func (p *pcmStream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-p.stopCh:
		return 0, io.EOF
	default:
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as p.stopped to avoid Add/Wait races.
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	n, err := p.sink.WritePCM(buffer)
	if err != nil && err != io.EOF {
		p.logger.Error("capture write failed", "path", p.sink.Path(), "error", err.Error())
	}
	return n, err
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
