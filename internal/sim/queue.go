package sim

import (
	"sync"
	"time"
)

// queue is the multi-producer, single-consumer command channel. It is
// unbounded unless limit > 0. Pushes never block.
type queue struct {
	mu     sync.Mutex
	items  []Command
	closed bool
	limit  int
	notify chan struct{}
}

func newQueue(limit int) *queue {
	return &queue{limit: limit, notify: make(chan struct{}, 1)}
}

func (q *queue) push(cmd Command) bool {
	return q.enqueue(cmd, false)
}

// pushControl ignores the pending limit so a shutdown request always lands.
func (q *queue) pushControl(cmd Command) bool {
	return q.enqueue(cmd, true)
}

func (q *queue) enqueue(cmd Command, control bool) bool {
	q.mu.Lock()
	if q.closed || (!control && q.limit > 0 && len(q.items) >= q.limit) {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// take appends every pending command to buf in arrival order.
func (q *queue) take(buf []Command) []Command {
	q.mu.Lock()
	buf = append(buf, q.items...)
	clear(q.items)
	q.items = q.items[:0]
	q.mu.Unlock()
	return buf
}

// drain is take with a bounded wait when nothing is pending.
func (q *queue) drain(buf []Command, timer *time.Timer, timeout time.Duration) []Command {
	n := len(buf)
	if buf = q.take(buf); len(buf) > n {
		return buf
	}
	timer.Reset(timeout)
	select {
	case <-q.notify:
		timer.Stop()
	case <-timer.C:
	}
	return q.take(buf)
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
