package engine

// EventKind distinguishes the notifications the engine emits towards the UI
// layer.
type EventKind int

const (
	// EventPosition carries the current playback position.
	EventPosition EventKind = iota
	// EventLevels carries coalesced input/output peak levels.
	EventLevels
	// EventCompletion signals that a stream has finished or was stopped.
	EventCompletion
)

// Event is one notification. Delivery is asynchronous and coalesced: when
// the consumer lags, newer events replace older ones implicitly because
// stale ones are dropped at publish time. The UI is not guaranteed to see
// every callback's update, only a recent one.
type Event struct {
	Kind  EventKind
	Token Token

	// Time is the track time for EventPosition and EventCompletion.
	Time float64

	InputLevel  float32
	OutputLevel float32
}

type eventBus struct {
	ch chan Event
}

func newEventBus(capacity int) *eventBus {
	return &eventBus{ch: make(chan Event, capacity)}
}

// publish never blocks; events are dropped when the consumer is behind.
func (b *eventBus) publish(e Event) {
	select {
	case b.ch <- e:
	default:
	}
}
