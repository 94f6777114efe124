// Package pulsemon maintains the subscription connection to the PulseAudio
// server and forwards change notifications as a small closed set of typed
// events. The protocol callback never touches engine state directly; events
// are handed off over a channel into the coordination loop.
package pulsemon

import (
	"fmt"
	"net"
	"sync"

	"github.com/jfreymuth/pulse/proto"
)

// EventKind classifies a server-side change notification.
type EventKind int

const (
	// DefaultInputChanged fires on server-level changes, including the
	// default source being replaced.
	DefaultInputChanged EventKind = iota + 1
	// DeviceRunningStateChanged fires when a source or a recording stream
	// attached to one changes state.
	DeviceRunningStateChanged
	// ApplicationListChanged fires when playback streams or clients come
	// and go.
	ApplicationListChanged
)

// Event is one typed change notification with the server-side object index.
type Event struct {
	Kind  EventKind
	Index uint32
}

// Conn is a raw protocol connection carrying both introspection requests and
// the event subscription.
type Conn struct {
	client *proto.Client
	conn   net.Conn
	events chan Event

	mu     sync.Mutex
	closed bool
}

// Connect opens the protocol connection, names the client, and subscribes to
// source, stream, and server change events.
func Connect(appName string) (*Conn, error) {
	client, conn, err := proto.Connect("")
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	c := &Conn{
		client: client,
		conn:   conn,
		events: make(chan Event, 64),
	}

	props := proto.PropList{
		"application.name":      proto.PropListString(appName),
		"application.icon_name": proto.PropListString("audio-input-microphone"),
	}
	if err := client.Request(&proto.SetClientName{Props: props}, &proto.SetClientNameReply{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set client name: %w", err)
	}

	client.Callback = func(msg interface{}) {
		event, ok := msg.(*proto.SubscribeEvent)
		if !ok {
			return
		}
		c.dispatch(event)
	}

	mask := proto.SubscriptionMaskServer |
		proto.SubscriptionMaskSource |
		proto.SubscriptionMaskSourceInput |
		proto.SubscriptionMaskSinkInput |
		proto.SubscriptionMaskClient
	if err := client.Request(&proto.Subscribe{Mask: mask}, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to change events: %w", err)
	}

	return c, nil
}

// dispatch maps a raw subscription event to a typed event and forwards it
// without ever blocking the protocol reader. A dropped event only delays a
// refresh until the next poll tick.
func (c *Conn) dispatch(event *proto.SubscribeEvent) {
	var kind EventKind
	switch event.Event & proto.EventFacilityMask {
	case proto.EventServer:
		kind = DefaultInputChanged
	case proto.EventSource, proto.EventSinkSourceOutput:
		kind = DeviceRunningStateChanged
	case proto.EventSinkSinkInput, proto.EventClient:
		kind = ApplicationListChanged
	default:
		return
	}

	select {
	case c.events <- Event{Kind: kind, Index: event.Index}:
	default:
	}
}

// Events returns the typed change-notification stream.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Request forwards one introspection request over the shared connection.
func (c *Conn) Request(req proto.RequestArgs, rep proto.Reply) error {
	return c.client.Request(req, rep)
}

// Close shuts the protocol connection down exactly once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
