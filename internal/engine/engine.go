// Package engine runs the coordination loop that owns all detection and
// capture state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/earshot/earshot/internal/capture"
	"github.com/earshot/earshot/internal/config"
	"github.com/earshot/earshot/internal/detect"
	"github.com/earshot/earshot/internal/ipc"
	"github.com/earshot/earshot/internal/notify"
	"github.com/earshot/earshot/internal/procaudio"
	"github.com/earshot/earshot/internal/pulsemon"
)

// activityMonitor is the device-activity surface the engine drives.
type activityMonitor interface {
	Start() error
	Stop()
	Active() bool
	OnDefaultInputChanged() (bool, bool)
	OnRunningStateChanged() (bool, bool)
}

// sourceSelector is the active-process surface the engine drives.
type sourceSelector interface {
	Current() procaudio.Snapshot
	SetRecording(recording bool)
	Refresh(now time.Time) (procaudio.Snapshot, bool)
}

// sourceLister enumerates audio processes for the sources command.
type sourceLister interface {
	Snapshot() ([]procaudio.Descriptor, error)
}

// recorder is the capture surface the engine drives.
type recorder interface {
	IsRecording() bool
	Current() capture.Session
	Start(req capture.StartRequest, now time.Time) (capture.Session, error)
	Stop() (capture.Session, error)
	StreamErr() error
	Frames() (system, mic int64)
}

type commandEnvelope struct {
	req   ipc.Request
	reply chan ipc.Response
}

// Engine owns the monitor, selector, detector, and orchestrator. Everything
// mutable lives on the Run goroutine; Pulse events, timer expiries, and IPC
// commands all enter through channels.
type Engine struct {
	logger *slog.Logger
	cfg    config.Config

	events   <-chan pulsemon.Event
	monitor  activityMonitor
	selector sourceSelector
	lister   sourceLister
	detector *detect.Detector
	recorder recorder
	notifier notify.Notifier

	commands chan commandEnvelope

	settleCh    chan int
	settleGen   int
	settleTimer *time.Timer
	paused      bool

	promptNotified bool
	lastError      string
}

// New assembles an engine around already-constructed parts.
func New(
	logger *slog.Logger,
	cfg config.Config,
	events <-chan pulsemon.Event,
	monitor activityMonitor,
	selector sourceSelector,
	lister sourceLister,
	detector *detect.Detector,
	rec recorder,
	notifier notify.Notifier,
) *Engine {
	return &Engine{
		logger:   logger,
		cfg:      cfg,
		events:   events,
		monitor:  monitor,
		selector: selector,
		lister:   lister,
		detector: detector,
		recorder: rec,
		notifier: notifier,
		commands: make(chan commandEnvelope),
		settleCh: make(chan int, 4),
	}
}

// Handle forwards one IPC request into the coordination loop and waits for
// its reply. Safe to call from any goroutine.
func (e *Engine) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	reply := make(chan ipc.Response, 1)
	select {
	case e.commands <- commandEnvelope{req: req, reply: reply}:
	case <-ctx.Done():
		return ipc.Response{OK: false, Error: "engine unavailable"}
	}
	select {
	case resp := <-reply:
		return resp
	case <-ctx.Done():
		return ipc.Response{OK: false, Error: "engine unavailable"}
	}
}

// Run is the coordination loop. It blocks until ctx is cancelled; a live
// recording is stopped on the way out.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.monitor.Start(); err != nil {
		return fmt.Errorf("start device monitor: %w", err)
	}
	defer e.monitor.Stop()

	now := time.Now()
	e.detector.SetMicActive(e.monitor.Active(), now)
	e.refreshSources(now)

	ticker := time.NewTicker(e.cfg.Monitor.PollInterval())
	defer ticker.Stop()

	e.logger.Info("engine running",
		"poll_interval", e.cfg.Monitor.PollInterval().String(),
		"confirm_delay", e.cfg.Detect.ConfirmDelay().String(),
		"cooldown", e.cfg.Detect.Cooldown().String())

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case ev, ok := <-e.events:
			if !ok {
				return fmt.Errorf("pulse event stream closed")
			}
			e.onPulseEvent(ev, time.Now())

		case <-ticker.C:
			now := time.Now()
			e.checkStreams(now)
			e.refreshSources(now)

		case gen := <-e.detector.ConfirmElapsed():
			e.detector.OnConfirmElapsed(gen, time.Now())
			e.maybePrompt()

		case gen := <-e.settleCh:
			e.onSettleElapsed(gen, time.Now())

		case env := <-e.commands:
			env.reply <- e.handle(env.req, time.Now())
		}
	}
}

func (e *Engine) onPulseEvent(ev pulsemon.Event, now time.Time) {
	switch ev.Kind {
	case pulsemon.DefaultInputChanged:
		active, changed := e.monitor.OnDefaultInputChanged()
		if changed && !e.paused {
			e.detector.SetMicActive(active, now)
			e.maybePrompt()
		}
	case pulsemon.DeviceRunningStateChanged:
		active, changed := e.monitor.OnRunningStateChanged()
		if changed && !e.paused {
			e.detector.SetMicActive(active, now)
			e.maybePrompt()
		}
	case pulsemon.ApplicationListChanged:
		e.refreshSources(now)
	}
}

// refreshSources re-derives the active playback process and feeds the
// system-audio signal to the detector. Suppressed during the post-recording
// settle window.
func (e *Engine) refreshSources(now time.Time) {
	if e.paused {
		return
	}
	snapshot, changed := e.selector.Refresh(now)
	if changed {
		e.logger.Info("active source changed",
			"process", snapshotName(snapshot),
			"any_audio", snapshot.AnyAudioPlaying)
	}
	e.detector.SetSystemAudioActive(snapshot.AnyAudioPlaying, now)
	e.maybePrompt()
}

// checkStreams surfaces a mid-stream capture failure and ends the session.
func (e *Engine) checkStreams(now time.Time) {
	err := e.recorder.StreamErr()
	if err == nil {
		return
	}
	e.lastError = err.Error()
	e.logger.Error("capture stream failed, stopping session", "error", err.Error())
	if _, stopErr := e.recorder.Stop(); stopErr != nil {
		e.logger.Error("session teardown after stream failure", "error", stopErr.Error())
	}
	e.endSession(now)
}

// maybePrompt delivers the desktop notification once per raised prompt. The
// prompt signal itself stays up until prompt-ack or the condition drops.
func (e *Engine) maybePrompt() {
	if !e.detector.ShouldPrompt() {
		e.promptNotified = false
		return
	}
	if e.promptNotified {
		return
	}
	e.promptNotified = true
	name := snapshotName(e.selector.Current())
	if err := e.notifier.PromptRecord(name); err != nil {
		e.logger.Error("prompt notification failed", "error", err.Error())
	}
}

func (e *Engine) handle(req ipc.Request, now time.Time) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: e.stateString(), Signals: e.signals()}

	case "start":
		return e.handleStart(req, now)

	case "stop":
		return e.handleStop(now)

	case "prompt-ack":
		e.detector.MarkPromptHandled()
		e.promptNotified = false
		return ipc.Response{OK: true, State: e.stateString(), Message: "prompt acknowledged"}

	case "sources":
		return e.handleSources()

	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (e *Engine) handleStart(req ipc.Request, now time.Time) ipc.Response {
	granted := true
	if req.Granted != nil {
		granted = *req.Granted
	}

	session, err := e.recorder.Start(capture.StartRequest{
		SystemPath: req.SystemPath,
		MicPath:    req.MicPath,
		Granted:    granted,
	}, now)
	if err != nil {
		return ipc.Response{OK: false, State: e.stateString(), Error: err.Error()}
	}

	e.detector.RecordingStarted()
	e.selector.SetRecording(true)
	e.cancelSettle()
	e.paused = false
	e.promptNotified = false
	e.lastError = ""

	return ipc.Response{
		OK:      true,
		State:   e.stateString(),
		Message: fmt.Sprintf("recording session %s", session.ID),
		Signals: e.signals(),
	}
}

func (e *Engine) handleStop(now time.Time) ipc.Response {
	if !e.recorder.IsRecording() {
		return ipc.Response{OK: true, State: e.stateString(), Message: "no active recording"}
	}

	session, err := e.recorder.Stop()
	e.endSession(now)
	if err != nil {
		return ipc.Response{OK: false, State: e.stateString(), Error: err.Error()}
	}

	return ipc.Response{
		OK:    true,
		State: e.stateString(),
		Message: fmt.Sprintf("saved %s and %s",
			session.SystemAudioPath, session.MicrophonePath),
	}
}

func (e *Engine) handleSources() ipc.Response {
	descriptors, err := e.lister.Snapshot()
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	sources := make([]ipc.Source, 0, len(descriptors))
	for _, d := range descriptors {
		sources = append(sources, ipc.Source{
			ID:     d.ID,
			Kind:   string(d.Kind),
			Name:   d.DisplayName,
			Active: d.AudioActive,
		})
	}
	return ipc.Response{OK: true, State: e.stateString(), Sources: sources}
}

// endSession is the shared post-recording path: detection resumes after the
// settle delay so our own teardown noise is not mistaken for a call.
func (e *Engine) endSession(now time.Time) {
	e.detector.RecordingStopped(now)
	e.selector.SetRecording(false)
	e.scheduleSettle()
}

func (e *Engine) scheduleSettle() {
	e.cancelSettle()
	e.paused = true
	e.settleGen++
	gen := e.settleGen
	e.settleTimer = time.AfterFunc(e.cfg.Detect.SettleDelay(), func() {
		select {
		case e.settleCh <- gen:
		default:
		}
	})
}

func (e *Engine) cancelSettle() {
	e.settleGen++
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}

func (e *Engine) onSettleElapsed(gen int, now time.Time) {
	if gen != e.settleGen {
		return
	}
	e.paused = false
	e.settleTimer = nil
	e.detector.SetMicActive(e.monitor.Active(), now)
	e.refreshSources(now)
	e.logger.Info("monitoring resumed after settle delay")
}

func (e *Engine) shutdown() {
	if e.recorder.IsRecording() {
		if _, err := e.recorder.Stop(); err != nil {
			e.logger.Error("stop recording on shutdown", "error", err.Error())
		}
	}
	e.cancelSettle()
}

func (e *Engine) signals() *ipc.Signals {
	signals := &ipc.Signals{
		MicActive:         e.monitor.Active(),
		SystemAudioActive: e.selector.Current().AnyAudioPlaying,
		CallActive:        e.detector.CallActive(),
		PromptPending:     e.detector.ShouldPrompt(),
		Recording:         e.recorder.IsRecording(),
		ActiveProcess:     snapshotName(e.selector.Current()),
		StreamError:       e.lastError,
	}
	if signals.Recording {
		session := e.recorder.Current()
		signals.SystemAudioPath = session.SystemAudioPath
		signals.MicrophonePath = session.MicrophonePath
	}
	return signals
}

func (e *Engine) stateString() string {
	switch {
	case e.recorder.IsRecording():
		return "recording"
	case e.detector.CallActive():
		return "call-detected"
	default:
		return "idle"
	}
}

func snapshotName(s procaudio.Snapshot) string {
	if s.ActiveProcess == nil {
		return ""
	}
	return s.ActiveProcess.DisplayName
}
