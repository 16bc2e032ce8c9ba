package events

import "time"

// Details is the variant-specific payload of an event. The implementations
// form a closed set, one per Type.
type Details interface {
	eventDetails()
}

// Event is one immutable record of an intercepted call on a connection.
// ID is the 0-based index of the event within its connection.
type Event struct {
	ID            int     `json:"id"`
	Type          Type    `json:"type"`
	TimestampSec  int64   `json:"timestamp_sec"`
	TimestampUsec int64   `json:"timestamp_usec"`
	ReturnValue   int     `json:"return_value"`
	Success       bool    `json:"success"`
	ErrorStr      string  `json:"error_str,omitempty"`
	Details       Details `json:"details"`
}

// New builds the base event for the given variant from the raw call outcome.
// Success is derived from the return value the way the kernel API defines it:
// close succeeds on 0, everything else fails on -1.
func New(t Type, id, returnValue int, callErr error) *Event {
	var success bool
	switch t {
	case TypeClose:
		success = returnValue == 0
	default:
		success = returnValue != -1
	}
	ev := &Event{
		ID:          id,
		Type:        t,
		ReturnValue: returnValue,
		Success:     success,
	}
	now := time.Now()
	ev.TimestampSec = now.Unix()
	ev.TimestampUsec = int64(now.Nanosecond()) / 1000
	if !success && callErr != nil {
		ev.ErrorStr = callErr.Error()
	}
	return ev
}
