package atomicslot

// Observer receives slot lifecycle events. Implementations must be safe
// for concurrent use: events fire from whichever goroutine triggered them,
// including background teardown goroutines.
type Observer interface {
	On(eventData EventData)
}

// Event represents a slot event type.
type Event int

const (
	// EventCreate is emitted when GetOrCreate publishes a new instance.
	EventCreate Event = iota
	// EventDiscard is emitted when a freshly built instance is thrown away,
	// either because another goroutine published first or because the slot
	// was disposed while it was being published.
	EventDiscard
	// EventReset is emitted when Reset publishes a replacement instance.
	EventReset
	// EventDispose is emitted once, when the slot is first disposed.
	EventDispose
	// EventTeardown is emitted when a teardown returns without error.
	EventTeardown
	// EventTeardownFailed is emitted when a teardown returns an error or
	// panics. Err carries the cause.
	EventTeardownFailed
)

func (e Event) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventDiscard:
		return "discard"
	case EventReset:
		return "reset"
	case EventDispose:
		return "dispose"
	case EventTeardown:
		return "teardown"
	case EventTeardownFailed:
		return "teardown_failed"
	default:
		return "unknown"
	}
}

// EventData carries the details of a slot event.
type EventData struct {
	Event Event
	// Name is the slot name set with WithName.
	Name string
	// Generation identifies the instance the event is about. It is zero for
	// EventDispose.
	Generation uint64
	// Err is set for EventTeardownFailed.
	Err error
}
