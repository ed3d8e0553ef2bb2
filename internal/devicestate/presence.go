package devicestate

// presenceRingCapacity bounds the retained presence history.
const presenceRingCapacity = 100

// presenceRing holds recent presence events newest-first. Once full, the
// oldest entry falls off; consumers never see more than the capacity.
type presenceRing struct {
	events   []PresenceEvent
	capacity int
}

func newPresenceRing(capacity int) *presenceRing {
	return &presenceRing{
		events:   make([]PresenceEvent, 0, capacity),
		capacity: capacity,
	}
}

// prepend inserts one event at the front, evicting the oldest when full.
func (r *presenceRing) prepend(event PresenceEvent) {
	if len(r.events) < r.capacity {
		r.events = append(r.events, PresenceEvent{})
	}
	copy(r.events[1:], r.events)
	r.events[0] = event
}

// snapshot returns an independent newest-first copy.
func (r *presenceRing) snapshot() []PresenceEvent {
	out := make([]PresenceEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *presenceRing) len() int {
	return len(r.events)
}
