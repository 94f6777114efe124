// Package device watches the default input source and reports microphone
// activity as a deduplicated boolean signal.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jfreymuth/pulse/proto"
)

// ErrMonitorStart indicates the monitor could not resolve or subscribe the
// default input device; the monitor stays inactive.
var ErrMonitorStart = errors.New("device monitor failed to start")

// Pulse source states; RUNNING means at least one stream is reading from it.
const sourceStateRunning = 0

// introspector is the request surface the monitor needs from the shared
// server connection.
type introspector interface {
	Request(req proto.RequestArgs, rep proto.Reply) error
}

// Monitor tracks whether the default input source is actively receiving
// audio. All methods must be called from the coordination context; change
// notifications arrive there as typed events, never as direct callbacks.
type Monitor struct {
	logger *slog.Logger
	conn   introspector

	started bool
	watched string
	active  bool
}

// NewMonitor constructs an idle monitor on a shared server connection.
func NewMonitor(logger *slog.Logger, conn introspector) *Monitor {
	return &Monitor{logger: logger, conn: conn}
}

// Start resolves the default source and performs the initial activity read.
// Calling Start while started is a no-op.
func (m *Monitor) Start() error {
	if m.started {
		return nil
	}

	name, err := m.resolveDefaultSource()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMonitorStart, err)
	}

	active, err := m.readActivity(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMonitorStart, err)
	}

	m.watched = name
	m.active = active
	m.started = true
	return nil
}

// Stop drops the cached device identity; idempotent.
func (m *Monitor) Stop() {
	m.started = false
	m.watched = ""
	m.active = false
}

// Active returns the last evaluated microphone-activity value.
func (m *Monitor) Active() bool {
	return m.active
}

// Watched returns the source name currently under observation.
func (m *Monitor) Watched() string {
	return m.watched
}

// OnDefaultInputChanged re-resolves the default source before evaluating so
// the reading never reflects the replaced device. The watched identity is
// replaced, never stacked. Returns the current value and whether it changed.
func (m *Monitor) OnDefaultInputChanged() (bool, bool) {
	if !m.started {
		return false, false
	}

	name, err := m.resolveDefaultSource()
	if err != nil {
		m.logger.Error("re-resolve default source failed", "error", err.Error())
		return m.setActive(false)
	}
	m.watched = name

	return m.evaluate()
}

// OnRunningStateChanged re-reads activity for the watched source. Returns
// the current value and whether it changed.
func (m *Monitor) OnRunningStateChanged() (bool, bool) {
	if !m.started {
		return false, false
	}
	return m.evaluate()
}

func (m *Monitor) evaluate() (bool, bool) {
	active, err := m.readActivity(m.watched)
	if err != nil {
		// Expected to be transient; clear to the safe default and let the
		// next notification or poll recover.
		m.logger.Error("read input activity failed", "source", m.watched, "error", err.Error())
		return m.setActive(false)
	}
	return m.setActive(active)
}

// setActive stores the value, reporting a change only when it flipped.
func (m *Monitor) setActive(active bool) (bool, bool) {
	if active == m.active {
		return m.active, false
	}
	m.active = active
	return m.active, true
}

func (m *Monitor) resolveDefaultSource() (string, error) {
	var info proto.GetServerInfoReply
	if err := m.conn.Request(&proto.GetServerInfo{}, &info); err != nil {
		return "", fmt.Errorf("read server info: %w", err)
	}
	if strings.TrimSpace(info.DefaultSourceName) == "" {
		return "", errors.New("server reports no default source")
	}
	return info.DefaultSourceName, nil
}

func (m *Monitor) readActivity(sourceName string) (bool, error) {
	var sources proto.GetSourceInfoListReply
	if err := m.conn.Request(&proto.GetSourceInfoList{}, &sources); err != nil {
		return false, fmt.Errorf("list sources: %w", err)
	}

	var source *proto.GetSourceInfoReply
	for _, s := range sources {
		if s != nil && s.SourceName == sourceName {
			source = s
			break
		}
	}
	if source == nil {
		return false, fmt.Errorf("default source %q not found", sourceName)
	}

	var outputs proto.GetSourceOutputInfoListReply
	if err := m.conn.Request(&proto.GetSourceOutputInfoList{}, &outputs); err != nil {
		return false, fmt.Errorf("list source outputs: %w", err)
	}

	return sourceActive(source, outputs), nil
}

// sourceActive reports whether a source is receiving audio: either the
// source itself is RUNNING or an uncorked recording stream is attached.
func sourceActive(source *proto.GetSourceInfoReply, outputs proto.GetSourceOutputInfoListReply) bool {
	if source == nil {
		return false
	}
	if source.State == sourceStateRunning {
		return true
	}
	for _, out := range outputs {
		if out == nil {
			continue
		}
		if out.SourceIndex == source.SourceIndex && !out.Corked {
			return true
		}
	}
	return false
}
