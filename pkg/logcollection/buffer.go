package logcollection

import (
	"sync"
)

// ringBuffer retains the most recent capacity entries for one unit.
// Cursors start at 1 and grow monotonically; once capacity is reached
// the oldest entry is evicted on append. Readers address entries by
// cursor, so a reader that falls behind the retained window resumes
// from the oldest entry still held.
type ringBuffer struct {
	mutex    sync.Mutex
	entries  []LogEntry
	capacity int
	count    int
	next     uint64 // cursor assigned to the next appended entry

	subscribers map[int]chan struct{}
	nextSubID   int
	closed      bool
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{
		entries:     make([]LogEntry, capacity),
		capacity:    capacity,
		next:        1,
		subscribers: make(map[int]chan struct{}),
	}
}

// Append stores the entry, assigns its cursor, and notifies
// subscribers. Returns 0 when the buffer is closed.
func (rb *ringBuffer) Append(entry LogEntry) uint64 {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if rb.closed {
		return 0
	}

	cursor := rb.next
	entry.Cursor = cursor
	rb.entries[int((cursor-1)%uint64(rb.capacity))] = entry
	rb.next++
	if rb.count < rb.capacity {
		rb.count++
	}

	for _, ch := range rb.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	return cursor
}

// ReadSince returns up to max entries with cursors greater than since,
// plus the cursor to resume from. When since falls before the retained
// window it is clamped to the window start.
func (rb *ringBuffer) ReadSince(since uint64, max int) ([]LogEntry, uint64) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if max <= 0 {
		max = rb.capacity
	}

	oldest := rb.next - uint64(rb.count)
	if since+1 < oldest {
		since = oldest - 1
	}

	var out []LogEntry
	for cursor := since + 1; cursor < rb.next && len(out) < max; cursor++ {
		out = append(out, rb.entries[int((cursor-1)%uint64(rb.capacity))])
		since = cursor
	}
	return out, since
}

// OldestCursor returns the cursor of the oldest retained entry, or 0
// when the buffer is empty.
func (rb *ringBuffer) OldestCursor() uint64 {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if rb.count == 0 {
		return 0
	}
	return rb.next - uint64(rb.count)
}

// LatestCursor returns the cursor of the newest entry, or 0 when the
// buffer is empty.
func (rb *ringBuffer) LatestCursor() uint64 {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	return rb.next - 1
}

// Subscribe registers a notification channel signalled on every append.
// The channel has a single-slot buffer; a slow subscriber coalesces
// notifications rather than blocking appends. The returned func removes
// the subscription.
func (rb *ringBuffer) Subscribe() (<-chan struct{}, func()) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	ch := make(chan struct{}, 1)
	if rb.closed {
		close(ch)
		return ch, func() {}
	}

	id := rb.nextSubID
	rb.nextSubID++
	rb.subscribers[id] = ch

	cancel := func() {
		rb.mutex.Lock()
		defer rb.mutex.Unlock()
		if _, ok := rb.subscribers[id]; ok {
			delete(rb.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Close stops accepting appends and closes all subscriber channels, so
// blocked readers observe the teardown.
func (rb *ringBuffer) Close() {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if rb.closed {
		return
	}
	rb.closed = true
	for id, ch := range rb.subscribers {
		delete(rb.subscribers, id)
		close(ch)
	}
}
