package session

import "sync"

// RingBuffer is a fixed-capacity byte buffer that keeps the most recent
// output. Safe for one writer and concurrent readers.
type RingBuffer struct {
	mu    sync.RWMutex
	data  []byte
	start int
	end   int
	full  bool
}

// NewRingBuffer allocates a buffer of the given capacity. Non-positive sizes
// are floored so a misconfigured caller cannot make Write panic.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 4096
	}
	return &RingBuffer{data: make([]byte, size)}
}

func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range p {
		r.data[r.end] = b
		r.end = (r.end + 1) % len(r.data)
		if r.full {
			r.start = r.end
		} else if r.end == r.start {
			r.full = true
		}
	}
	return len(p), nil
}

// Bytes returns a copy of the buffered output, oldest first.
func (r *RingBuffer) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full && r.start == r.end {
		return nil
	}
	if r.full {
		out := make([]byte, 0, len(r.data))
		out = append(out, r.data[r.start:]...)
		return append(out, r.data[:r.end]...)
	}
	if r.end > r.start {
		return append([]byte(nil), r.data[r.start:r.end]...)
	}
	out := make([]byte, 0, len(r.data)-r.start+r.end)
	out = append(out, r.data[r.start:]...)
	return append(out, r.data[:r.end]...)
}

// Len reports the number of buffered bytes.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.full {
		return len(r.data)
	}
	if r.end >= r.start {
		return r.end - r.start
	}
	return len(r.data) - r.start + r.end
}
