package platform

// Event is something the window system reported to the render loop.
type Event interface {
	isEvent()
}

// ResizeEvent reports a new framebuffer size in pixels. A zero dimension
// means the window is minimized.
type ResizeEvent struct {
	Width, Height int
}

// CloseEvent reports that the user asked to close the window.
type CloseEvent struct{}

func (ResizeEvent) isEvent() {}
func (CloseEvent) isEvent()  {}

const queueDepth = 16

// queue carries events from glfw callbacks to the loop. Posting never
// blocks; when the loop falls behind, newer events are dropped. The loop
// re-queries the framebuffer size and ShouldClose itself, so a dropped event
// only delays its reaction.
type queue struct {
	ch chan Event
}

func newQueue() *queue { return &queue{ch: make(chan Event, queueDepth)} }

func (q *queue) post(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// drain returns the queued events without blocking.
func (q *queue) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
