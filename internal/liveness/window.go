package liveness

import "github.com/montanaflynn/stats"

// window is a fixed-capacity FIFO of samples. Pushing onto a full window
// evicts the oldest sample.
type window struct {
	data []float64
	next int
}

func newWindow(capacity int) *window {
	if capacity < 1 {
		capacity = 1
	}
	return &window{data: make([]float64, 0, capacity)}
}

func (w *window) push(v float64) {
	if len(w.data) < cap(w.data) {
		w.data = append(w.data, v)
		return
	}
	w.data[w.next] = v
	w.next = (w.next + 1) % cap(w.data)
}

func (w *window) len() int { return len(w.data) }

func (w *window) full() bool { return len(w.data) == cap(w.data) }

// values returns the samples oldest first
func (w *window) values() stats.Float64Data {
	out := make(stats.Float64Data, 0, len(w.data))
	if !w.full() {
		return append(out, w.data...)
	}
	out = append(out, w.data[w.next:]...)
	return append(out, w.data[:w.next]...)
}

func (w *window) reset() {
	w.data = w.data[:0]
	w.next = 0
}
