package platform

import "testing"

func TestQueueDrainsInOrder(t *testing.T) {
	q := newQueue()
	q.post(ResizeEvent{Width: 10, Height: 20})
	q.post(CloseEvent{})
	got := q.drain()
	if len(got) != 2 {
		t.Fatalf("drained %d events", len(got))
	}
	if r, ok := got[0].(ResizeEvent); !ok || r.Width != 10 || r.Height != 20 {
		t.Errorf("first event = %#v", got[0])
	}
	if _, ok := got[1].(CloseEvent); !ok {
		t.Errorf("second event = %#v", got[1])
	}
	if rest := q.drain(); len(rest) != 0 {
		t.Errorf("queue not empty: %v", rest)
	}
}

func TestQueuePostNeverBlocks(t *testing.T) {
	q := newQueue()
	for i := 0; i < queueDepth; i++ {
		if !q.post(ResizeEvent{Width: i, Height: i}) {
			t.Fatalf("post %d refused below capacity", i)
		}
	}
	if q.post(CloseEvent{}) {
		t.Fatal("post past capacity accepted")
	}
	if n := len(q.drain()); n != queueDepth {
		t.Errorf("drained %d", n)
	}
}
