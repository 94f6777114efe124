package device

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	server  proto.GetServerInfoReply
	sources proto.GetSourceInfoListReply
	outputs proto.GetSourceOutputInfoListReply

	failServer  bool
	failSources bool
	failOutputs bool
}

func (f *fakeConn) Request(_ proto.RequestArgs, rep proto.Reply) error {
	switch r := rep.(type) {
	case *proto.GetServerInfoReply:
		if f.failServer {
			return errors.New("server info unavailable")
		}
		*r = f.server
	case *proto.GetSourceInfoListReply:
		if f.failSources {
			return errors.New("source list unavailable")
		}
		*r = f.sources
	case *proto.GetSourceOutputInfoListReply:
		if f.failOutputs {
			return errors.New("source output list unavailable")
		}
		*r = f.outputs
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func idleConn(defaultSource string) *fakeConn {
	return &fakeConn{
		server: proto.GetServerInfoReply{DefaultSourceName: defaultSource},
		sources: proto.GetSourceInfoListReply{
			{SourceIndex: 7, SourceName: defaultSource, State: 1},
		},
	}
}

func TestStartReadsInitialState(t *testing.T) {
	conn := idleConn("mic0")
	m := NewMonitor(testLogger(), conn)

	require.NoError(t, m.Start())
	require.Equal(t, "mic0", m.Watched())
	require.False(t, m.Active())

	// idempotent
	require.NoError(t, m.Start())
}

func TestStartFailsWithoutPartialState(t *testing.T) {
	conn := idleConn("mic0")
	conn.failServer = true
	m := NewMonitor(testLogger(), conn)

	err := m.Start()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMonitorStart)
	require.Empty(t, m.Watched())
	require.False(t, m.Active())
}

func TestRunningStateFlipsAndDeduplicates(t *testing.T) {
	conn := idleConn("mic0")
	m := NewMonitor(testLogger(), conn)
	require.NoError(t, m.Start())

	conn.sources[0].State = sourceStateRunning
	active, changed := m.OnRunningStateChanged()
	require.True(t, active)
	require.True(t, changed)

	// unchanged notification is deduplicated
	active, changed = m.OnRunningStateChanged()
	require.True(t, active)
	require.False(t, changed)

	conn.sources[0].State = 2
	active, changed = m.OnRunningStateChanged()
	require.False(t, active)
	require.True(t, changed)
}

func TestUncorkedSourceOutputCountsAsActive(t *testing.T) {
	conn := idleConn("mic0")
	conn.outputs = proto.GetSourceOutputInfoListReply{
		{SourceIndex: 7, Corked: false},
	}
	m := NewMonitor(testLogger(), conn)
	require.NoError(t, m.Start())
	require.True(t, m.Active())

	conn.outputs[0].Corked = true
	conn.sources[0].State = 1
	active, changed := m.OnRunningStateChanged()
	require.False(t, active)
	require.True(t, changed)
}

func TestDefaultInputChangeReResolvesBeforeEvaluating(t *testing.T) {
	conn := idleConn("mic0")
	m := NewMonitor(testLogger(), conn)
	require.NoError(t, m.Start())

	// The new default is running; the old device identity must be replaced
	// before the read or the stale device would report idle.
	conn.server.DefaultSourceName = "mic1"
	conn.sources = proto.GetSourceInfoListReply{
		{SourceIndex: 7, SourceName: "mic0", State: 1},
		{SourceIndex: 9, SourceName: "mic1", State: sourceStateRunning},
	}

	active, changed := m.OnDefaultInputChanged()
	require.True(t, active)
	require.True(t, changed)
	require.Equal(t, "mic1", m.Watched())
}

func TestEnumerationFailureClearsToInactive(t *testing.T) {
	conn := idleConn("mic0")
	conn.sources[0].State = sourceStateRunning
	m := NewMonitor(testLogger(), conn)
	require.NoError(t, m.Start())
	require.True(t, m.Active())

	conn.failSources = true
	active, changed := m.OnRunningStateChanged()
	require.False(t, active)
	require.True(t, changed)
}

func TestHandlersIgnoredWhenStopped(t *testing.T) {
	conn := idleConn("mic0")
	m := NewMonitor(testLogger(), conn)
	require.NoError(t, m.Start())
	m.Stop()

	active, changed := m.OnRunningStateChanged()
	require.False(t, active)
	require.False(t, changed)
	require.Empty(t, m.Watched())
}
