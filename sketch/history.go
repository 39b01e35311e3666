package sketch

import "image"

// history is the bounded snapshot buffer backing undo. It always holds at
// least one snapshot after the surface captures its initial blank state;
// overflow drops the oldest entry.
type history struct {
	snapshots []*image.RGBA
	capacity  int
}

func newHistory(capacity int) *history {
	return &history{
		snapshots: make([]*image.RGBA, 0, capacity),
		capacity:  capacity,
	}
}

func (h *history) len() int {
	return len(h.snapshots)
}

// push appends a snapshot, evicting the oldest when the buffer is full.
func (h *history) push(img *image.RGBA) {
	if len(h.snapshots) == h.capacity {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots = h.snapshots[:h.capacity-1]
	}
	h.snapshots = append(h.snapshots, img)
}

// pop discards the top entry and returns the new top. It refuses to remove
// the last remaining snapshot.
func (h *history) pop() (*image.RGBA, bool) {
	if len(h.snapshots) <= 1 {
		return nil, false
	}
	h.snapshots = h.snapshots[:len(h.snapshots)-1]
	return h.snapshots[len(h.snapshots)-1], true
}
