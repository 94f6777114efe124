package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/earshot/earshot/internal/config"
)

// pipeline is the slice of a running capture stream the orchestrator needs.
// Both SystemTap and MicRecorder satisfy it; tests substitute fakes.
type pipeline interface {
	Path() string
	Frames() int64
	Err() error
	Stop() error
}

// Session identifies one dual-stream recording.
type Session struct {
	ID              uuid.UUID
	SystemAudioPath string
	MicrophonePath  string
	StartedAt       time.Time
}

// StartRequest carries per-session overrides for Start. Empty paths use
// generated names under the configured output directory.
type StartRequest struct {
	SystemPath string
	MicPath    string
	Target     Target
	Granted    bool
}

// Orchestrator owns the paired system-tap and microphone streams of one
// recording session. All methods run on the coordination context; only the
// underlying streams cross goroutines.
type Orchestrator struct {
	logger *slog.Logger
	cfg    config.CaptureConfig

	startSystem func(path string, target Target) (pipeline, error)
	startMic    func(path string) (pipeline, error)

	recording bool
	session   Session
	system    pipeline
	mic       pipeline
}

// NewOrchestrator wires the real Pulse-backed streams.
func NewOrchestrator(logger *slog.Logger, cfg config.CaptureConfig) *Orchestrator {
	return &Orchestrator{
		logger: logger,
		cfg:    cfg,
		startSystem: func(path string, target Target) (pipeline, error) {
			return StartSystemTap(logger, path, cfg.SystemRate, cfg.SystemChannels, target)
		},
		startMic: func(path string) (pipeline, error) {
			return StartMicRecorder(logger, path, cfg.MicRate)
		},
	}
}

// IsRecording reports whether a session is live.
func (o *Orchestrator) IsRecording() bool {
	return o.recording
}

// Current returns the live session; meaningful only while IsRecording.
func (o *Orchestrator) Current() Session {
	return o.session
}

// Start begins a dual-stream session. Both streams must come up or neither
// does: a microphone failure tears the already-running system tap back down
// and removes its partial file.
func (o *Orchestrator) Start(req StartRequest, now time.Time) (Session, error) {
	if o.recording {
		return Session{}, ErrAlreadyRecording
	}
	if !req.Granted {
		return Session{}, ErrPermissionDenied
	}

	id := uuid.New()
	systemPath, micPath, err := o.resolvePaths(req, id, now)
	if err != nil {
		return Session{}, err
	}

	system, err := o.startSystem(systemPath, req.Target)
	if err != nil {
		return Session{}, err
	}

	mic, err := o.startMic(micPath)
	if err != nil {
		if stopErr := system.Stop(); stopErr != nil {
			o.logger.Error("system tap rollback failed", "error", stopErr.Error())
		}
		_ = os.Remove(system.Path())
		return Session{}, err
	}

	o.system = system
	o.mic = mic
	o.session = Session{
		ID:              id,
		SystemAudioPath: systemPath,
		MicrophonePath:  micPath,
		StartedAt:       now,
	}
	o.recording = true

	o.logger.Info("recording started",
		"session", id.String(),
		"system_path", systemPath,
		"mic_path", micPath)
	return o.session, nil
}

// Stop ends the live session. The recording flag drops before teardown so a
// concurrent status read never reports a half-stopped session as live. Both
// streams are always stopped; their errors are joined. Stopping while idle
// is a no-op.
func (o *Orchestrator) Stop() (Session, error) {
	if !o.recording {
		return Session{}, nil
	}
	o.recording = false

	done := o.session
	systemErr := o.system.Stop()
	micErr := o.mic.Stop()
	o.system = nil
	o.mic = nil
	o.session = Session{}

	if err := errors.Join(systemErr, micErr); err != nil {
		o.logger.Error("recording stop incomplete", "session", done.ID.String(), "error", err.Error())
		return done, err
	}

	o.logger.Info("recording stopped", "session", done.ID.String())
	return done, nil
}

// StreamErr surfaces a mid-stream write failure from either live stream.
func (o *Orchestrator) StreamErr() error {
	if !o.recording {
		return nil
	}
	if err := o.system.Err(); err != nil {
		return err
	}
	return o.mic.Err()
}

// Frames reports frames written per stream for status output.
func (o *Orchestrator) Frames() (system, mic int64) {
	if !o.recording {
		return 0, 0
	}
	return o.system.Frames(), o.mic.Frames()
}

func (o *Orchestrator) resolvePaths(req StartRequest, id uuid.UUID, now time.Time) (string, string, error) {
	systemPath := req.SystemPath
	micPath := req.MicPath
	if systemPath != "" && micPath != "" {
		return systemPath, micPath, nil
	}

	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("%w: create output dir %s: %v", ErrFileIO, o.cfg.OutputDir, err)
	}
	base := now.Format("20060102-150405") + "-" + id.String()[:8]
	if systemPath == "" {
		systemPath = filepath.Join(o.cfg.OutputDir, base+"-system.wav")
	}
	if micPath == "" {
		micPath = filepath.Join(o.cfg.OutputDir, base+"-mic.wav")
	}
	return systemPath, micPath, nil
}
