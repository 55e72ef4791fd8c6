package goSession

import (
	"github.com/gymkit/goSession/internal/feed"
	"github.com/gymkit/goSession/jwt"
	"github.com/gymkit/goSession/store"
)

// Session is the controller's view of the current session. User is nil when
// Authenticated is false.
//
// Session values are snapshots. Mutating one has no effect on the controller.
type Session struct {
	User          *jwt.Claims
	Authenticated bool
	Scope         store.Scope
}

// Credentials are the inputs to [Controller.Login]. Identifier is whatever
// the backend accepts, typically a national code or phone number. Remember
// selects the durable storage scope so the session survives process restarts.
type Credentials struct {
	Identifier string
	Password   string
	Remember   bool
}

// Event is a session lifecycle notification delivered to the configured
// [EventSink].
type Event = feed.Event

// EventSink receives session lifecycle events. Implementations must be safe
// for concurrent use; delivery order follows emission order within the
// controller's dispatcher.
type EventSink = feed.Sink

// NoOpSink discards all events.
type NoOpSink = feed.NoOpSink

// ChannelSink buffers events into a channel for test and UI consumption.
type ChannelSink = feed.ChannelSink

// JSONWriterSink writes events as JSON lines to an io.Writer.
type JSONWriterSink = feed.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer size.
var NewChannelSink = feed.NewChannelSink

// NewJSONWriterSink creates a [JSONWriterSink] over the given writer.
var NewJSONWriterSink = feed.NewJSONWriterSink

// Event type values emitted by the controller.
const (
	EventLogin          = "login"
	EventLoginFailed    = "login_failed"
	EventRefresh        = "refresh"
	EventRefreshFailed  = "refresh_failed"
	EventLogout         = "logout"
	EventExternalLogout = "external_logout"
	EventRestored       = "session_restored"
)
