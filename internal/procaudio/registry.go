// Package procaudio enumerates audio-producing processes and selects the
// most relevant active one.
package procaudio

import (
	"fmt"

	"github.com/jfreymuth/pulse/proto"
)

// Kind classifies a playback stream by how much application identity the
// owning process exposed.
type Kind string

const (
	KindApplication Kind = "application"
	KindProcess     Kind = "process"
)

// Descriptor identifies one playback stream discovered during a refresh.
// Descriptors are rebuilt from scratch on every refresh; the ID is the
// server-side stream index, so a relaunched application yields a new one.
type Descriptor struct {
	ID          uint32
	Kind        Kind
	DisplayName string
	AudioActive bool
	BinaryPath  string
	SinkIndex   uint32
}

// introspector is the request surface the registry needs from the shared
// server connection.
type introspector interface {
	Request(req proto.RequestArgs, rep proto.Reply) error
}

// Registry reads the live set of playback streams from the sound server.
type Registry struct {
	conn introspector
}

// NewRegistry constructs a registry on a shared server connection.
func NewRegistry(conn introspector) *Registry {
	return &Registry{conn: conn}
}

// Snapshot enumerates current playback streams as fresh descriptors.
func (r *Registry) Snapshot() ([]Descriptor, error) {
	var inputs proto.GetSinkInputInfoListReply
	if err := r.conn.Request(&proto.GetSinkInputInfoList{}, &inputs); err != nil {
		return nil, fmt.Errorf("list playback streams: %w", err)
	}

	descriptors := make([]Descriptor, 0, len(inputs))
	for _, input := range inputs {
		if input == nil {
			continue
		}
		descriptors = append(descriptors, describeSinkInput(input))
	}
	return descriptors, nil
}

// describeSinkInput maps one playback stream to a descriptor. Streams that
// expose an application.name are Applications; anything else is a bare
// Process named after its media title.
func describeSinkInput(input *proto.GetSinkInputInfoReply) Descriptor {
	name := propString(input.Properties, "application.name")
	kind := KindApplication
	if name == "" {
		kind = KindProcess
		name = input.MediaName
		if name == "" {
			name = fmt.Sprintf("sink-input-%d", input.SinkInputIndex)
		}
	}

	return Descriptor{
		ID:          input.SinkInputIndex,
		Kind:        kind,
		DisplayName: name,
		AudioActive: !input.Corked,
		BinaryPath:  propString(input.Properties, "application.process.binary"),
		SinkIndex:   input.SinkIndex,
	}
}

func propString(props proto.PropList, key string) string {
	if props == nil {
		return ""
	}
	entry, ok := props[key]
	if !ok {
		return ""
	}
	return entry.String()
}
