package procaudio

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Snapshot is the selector output: the single most relevant active playback
// stream, if any, and whether anything is playing at all. It is replaced
// wholesale on every refresh; consumers receive copies, never shared state.
type Snapshot struct {
	ActiveProcess   *Descriptor
	AnyAudioPlaying bool
}

// snapshotSource abstracts the registry for testing.
type snapshotSource interface {
	Snapshot() ([]Descriptor, error)
}

// Selector recomputes the active playback source on demand, debounced, and
// reports only meaningful changes. All methods run on the coordination
// context.
type Selector struct {
	logger   *slog.Logger
	registry snapshotSource
	collator *collate.Collator
	debounce time.Duration

	recording   bool
	current     Snapshot
	lastRefresh time.Time
	refreshed   bool
}

// NewSelector constructs a selector over a registry with the given refresh
// coalescing window.
func NewSelector(logger *slog.Logger, registry snapshotSource, debounce time.Duration) *Selector {
	return &Selector{
		logger:   logger,
		registry: registry,
		collator: collate.New(language.Und, collate.IgnoreCase),
		debounce: debounce,
	}
}

// Current returns the latest snapshot.
func (s *Selector) Current() Snapshot {
	return s.current
}

// SetRecording guards refreshes: while a session is live the selection shown
// to consumers must not be invalidated.
func (s *Selector) SetRecording(recording bool) {
	s.recording = recording
}

// Refresh recomputes the snapshot unless recording or inside the debounce
// window. It reports whether the active identity or the playing flag
// changed.
func (s *Selector) Refresh(now time.Time) (Snapshot, bool) {
	if s.recording {
		return s.current, false
	}
	if s.refreshed && now.Sub(s.lastRefresh) < s.debounce {
		return s.current, false
	}
	s.lastRefresh = now
	s.refreshed = true

	descriptors, err := s.registry.Snapshot()
	if err != nil {
		// Transient by assumption: clear rather than keep a stale pick, and
		// wait for the next scheduled refresh.
		s.logger.Error("process enumeration failed", "error", err.Error())
		return s.replace(Snapshot{})
	}

	return s.replace(s.selectFrom(descriptors))
}

// selectFrom applies the selection policy: active streams only,
// Applications before bare Processes, then collated name order.
func (s *Selector) selectFrom(descriptors []Descriptor) Snapshot {
	active := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.AudioActive {
			active = append(active, d)
		}
	}
	if len(active) == 0 {
		return Snapshot{}
	}

	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Kind != b.Kind {
			return a.Kind == KindApplication
		}
		cmp := s.collator.CompareString(a.DisplayName, b.DisplayName)
		if cmp != 0 {
			return cmp < 0
		}
		return strings.Compare(a.DisplayName, b.DisplayName) < 0
	})

	top := active[0]
	return Snapshot{ActiveProcess: &top, AnyAudioPlaying: true}
}

// replace installs the new snapshot and reports whether consumers should be
// notified: only on identity change or a playing flip, not on every tick.
func (s *Selector) replace(next Snapshot) (Snapshot, bool) {
	changed := next.AnyAudioPlaying != s.current.AnyAudioPlaying ||
		!sameIdentity(s.current.ActiveProcess, next.ActiveProcess)
	s.current = next
	return s.current, changed
}

func sameIdentity(a, b *Descriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
