package log

import (
	"fmt"
	"io"
	"sync"
)

// DefaultRingCapacity is used by [NewRing] for non-positive capacities.
const DefaultRingCapacity = 100

// Ring is an [io.Writer] that keeps the most recent writes, one entry per
// call to [Ring.Write]. Once full, each write drops the oldest entry. It is
// safe for concurrent use, so it can back a [slog.Handler] while another
// goroutine flushes it.
type Ring struct {
	entries [][]byte
	start   int
	n       int
	dropped int
	mu      sync.Mutex
}

// NewRing creates a [Ring] holding up to capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}

	return &Ring{entries: make([][]byte, capacity)}
}

// Write stores a copy of p as a new entry.
func (r *Ring) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	entry := append([]byte(nil), p...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == len(r.entries) {
		r.entries[r.start] = entry
		r.start = (r.start + 1) % len(r.entries)
		r.dropped++

		return len(p), nil
	}

	r.entries[(r.start+r.n)%len(r.entries)] = entry
	r.n++

	return len(p), nil
}

// Entries returns copies of the stored entries, oldest first.
func (r *Ring) Entries() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot()
}

func (r *Ring) snapshot() [][]byte {
	if r.n == 0 {
		return nil
	}

	out := make([][]byte, r.n)
	for i := range r.n {
		out[i] = append([]byte(nil), r.entries[(r.start+i)%len(r.entries)]...)
	}

	return out
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.n
}

// Cap returns the maximum number of stored entries.
func (r *Ring) Cap() int {
	return len(r.entries)
}

// Dropped returns how many entries were overwritten since the last reset.
func (r *Ring) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dropped
}

// Reset discards every entry and the dropped count.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
}

func (r *Ring) reset() {
	clear(r.entries)
	r.start, r.n, r.dropped = 0, 0, 0
}

// WriteTo writes the stored entries to w, oldest first. The ring is left
// unchanged.
func (r *Ring) WriteTo(w io.Writer) (int64, error) {
	return writeEntries(w, r.Entries())
}

// Flush writes the stored entries to w, oldest first, and resets the ring.
// Entries written to the ring during the flush are kept for the next one.
func (r *Ring) Flush(w io.Writer) (int64, error) {
	r.mu.Lock()
	entries := r.snapshot()
	r.reset()
	r.mu.Unlock()

	return writeEntries(w, entries)
}

func writeEntries(w io.Writer, entries [][]byte) (int64, error) {
	var total int64

	for _, entry := range entries {
		n, err := w.Write(entry)
		total += int64(n)

		if err != nil {
			return total, fmt.Errorf("write log entry: %w", err)
		}
	}

	return total, nil
}
