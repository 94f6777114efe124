package capture

import (
	"fmt"
	"log/slog"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Target narrows the system tap to one playback sink. The zero value means
// the server default sink, covering all system playback routed there.
type Target struct {
	SinkIndex uint32
	HaveSink  bool
}

// SystemTap records system playback by capturing the monitor source of the
// targeted sink.
type SystemTap struct {
	*pcmStream
}

// StartSystemTap opens path and begins capturing playback audio into it at
// the requested rate and channel count.
func StartSystemTap(logger *slog.Logger, path string, sampleRate, channels int, target Target) (*SystemTap, error) {
	sink, err := newFileSink(path, sampleRate, channels)
	if err != nil {
		return nil, err
	}

	channelOpt := pulse.RecordStereo
	if channels == 1 {
		channelOpt = pulse.RecordMono
	}

	stream, err := startStream(logger, sink,
		func(client *pulse.Client) (*pulse.Source, error) {
			return resolveMonitorSource(client, target)
		},
		channelOpt,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordMediaName("earshot system tap"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("system tap started", "path", path, "rate", sampleRate, "channels", channels, "targeted", target.HaveSink)
	return &SystemTap{pcmStream: stream}, nil
}

// resolveMonitorSource finds the monitor source of the targeted sink, or of
// the server default sink when no target is set.
func resolveMonitorSource(client *pulse.Client, target Target) (*pulse.Source, error) {
	var server pulseproto.GetServerInfoReply
	if err := client.RawRequest(&pulseproto.GetServerInfo{}, &server); err != nil {
		return nil, fmt.Errorf("%w: read server info: %v", ErrDeviceResolution, err)
	}

	var sinks pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinks); err != nil {
		return nil, fmt.Errorf("%w: list sinks: %v", ErrDeviceResolution, err)
	}

	monitorName := ""
	for _, info := range sinks {
		if info == nil {
			continue
		}
		if target.HaveSink {
			if info.SinkIndex == target.SinkIndex {
				monitorName = info.MonitorSourceName
				break
			}
			continue
		}
		if info.SinkName == server.DefaultSinkName {
			monitorName = info.MonitorSourceName
			break
		}
	}
	if monitorName == "" {
		if target.HaveSink {
			return nil, fmt.Errorf("%w: sink %d not found", ErrDeviceResolution, target.SinkIndex)
		}
		return nil, fmt.Errorf("%w: default sink has no monitor source", ErrDeviceResolution)
	}

	source, err := client.SourceByID(monitorName)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve monitor %q: %v", ErrDeviceResolution, monitorName, err)
	}
	return source, nil
}
