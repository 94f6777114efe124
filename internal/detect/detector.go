// Package detect decides when simultaneous microphone and playback activity
// should prompt the user to record.
package detect

import (
	"log/slog"
	"time"

	"github.com/earshot/earshot/internal/fsm"
)

// Detector is the call-detection state machine. It is level-triggered: every
// input change re-derives the state from the current signal values, so the
// interleaving of the two independent sources does not matter.
//
// All methods must be called from the coordination context. The only
// concurrency is the confirmation timer, which hands its expiry back through
// ConfirmElapsed for the owner to apply.
type Detector struct {
	logger       *slog.Logger
	confirmDelay time.Duration
	cooldown     time.Duration

	state        fsm.State
	micActive    bool
	systemActive bool
	recording    bool

	prompted       bool
	shouldPrompt   bool
	lastPromptAt   time.Time
	haveLastPrompt bool

	confirmGen   int
	confirmTimer *time.Timer
	confirmCh    chan int
}

// New constructs an idle detector.
func New(logger *slog.Logger, confirmDelay, cooldown time.Duration) *Detector {
	return &Detector{
		logger:       logger,
		confirmDelay: confirmDelay,
		cooldown:     cooldown,
		state:        fsm.StateIdle,
		confirmCh:    make(chan int, 4),
	}
}

// State returns the current detection state.
func (d *Detector) State() fsm.State {
	return d.state
}

// CallActive reports whether a call-like situation is currently tracked.
func (d *Detector) CallActive() bool {
	return d.state != fsm.StateIdle
}

// ShouldPrompt reports whether an unconsumed record prompt is pending.
func (d *Detector) ShouldPrompt() bool {
	return d.shouldPrompt
}

// ConfirmElapsed delivers confirmation-timer expiries; the owner must feed
// each value back through OnConfirmElapsed.
func (d *Detector) ConfirmElapsed() <-chan int {
	return d.confirmCh
}

// SetMicActive applies a microphone-activity reading.
func (d *Detector) SetMicActive(active bool, now time.Time) {
	d.micActive = active
	d.evaluate(now)
}

// SetSystemAudioActive applies a system-playback reading.
func (d *Detector) SetSystemAudioActive(active bool, now time.Time) {
	d.systemActive = active
	d.evaluate(now)
}

// evaluate re-derives the state from current values. Recording suppresses
// everything; the combined condition going false resets the machine and
// clears an undelivered prompt.
func (d *Detector) evaluate(now time.Time) {
	if d.recording {
		return
	}

	if d.micActive && d.systemActive {
		if d.state != fsm.StateIdle {
			return
		}
		d.transition(fsm.EventConditionMet)
		d.transition(fsm.EventArm)
		d.scheduleConfirm()
		return
	}

	if d.state == fsm.StateIdle {
		return
	}
	d.cancelConfirm()
	d.shouldPrompt = false
	d.prompted = false
	d.transition(fsm.EventConditionLost)
}

// OnConfirmElapsed applies one confirmation-timer expiry. Stale generations
// are ignored: a cancelled confirmation performs no side effect.
func (d *Detector) OnConfirmElapsed(gen int, now time.Time) {
	if gen != d.confirmGen {
		return
	}
	if d.state != fsm.StatePromptPending || d.recording {
		return
	}
	if !d.micActive || !d.systemActive {
		return
	}

	d.transition(fsm.EventConfirm)

	if d.prompted || d.inCooldown(now) {
		return
	}
	d.shouldPrompt = true
	d.prompted = true
	d.lastPromptAt = now
	d.haveLastPrompt = true
	d.logger.Info("record prompt raised")
}

// RecordingStarted suppresses detection for the duration of the session: the
// pending confirmation is cancelled and the current call is marked prompted
// so nothing fires mid-recording.
func (d *Detector) RecordingStarted() {
	d.cancelConfirm()
	d.recording = true
	d.prompted = true
	d.shouldPrompt = false
	if d.state != fsm.StateIdle {
		d.transition(fsm.EventConditionLost)
	}
}

// RecordingStopped resumes detection and re-anchors the cooldown at the stop
// instant so the just-finished call cannot immediately re-prompt.
func (d *Detector) RecordingStopped(now time.Time) {
	d.recording = false
	d.lastPromptAt = now
	d.haveLastPrompt = true
}

// MarkPromptHandled clears the prompt output once displayed; idempotent.
func (d *Detector) MarkPromptHandled() {
	d.shouldPrompt = false
}

func (d *Detector) inCooldown(now time.Time) bool {
	return d.haveLastPrompt && now.Sub(d.lastPromptAt) < d.cooldown
}

func (d *Detector) scheduleConfirm() {
	d.confirmGen++
	gen := d.confirmGen
	d.confirmTimer = time.AfterFunc(d.confirmDelay, func() {
		select {
		case d.confirmCh <- gen:
		default:
		}
	})
}

// cancelConfirm invalidates any scheduled confirmation; bumping the
// generation also defeats an expiry already in flight on the channel.
func (d *Detector) cancelConfirm() {
	d.confirmGen++
	if d.confirmTimer != nil {
		d.confirmTimer.Stop()
		d.confirmTimer = nil
	}
}

func (d *Detector) transition(event fsm.Event) {
	next, err := fsm.Transition(d.state, event)
	if err != nil {
		d.logger.Error("detector transition rejected", "state", string(d.state), "event", string(event), "error", err.Error())
		return
	}
	d.state = next
}
