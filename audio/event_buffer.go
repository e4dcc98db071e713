package audio

import "sync/atomic"

// Queue is a bounded lock-free queue. Each slot carries a sequence number
// that tells producers and the consumer whose turn it is, so neither side
// ever waits on a lock. When the queue is full Push drops the oldest element
// instead of blocking.
type Queue[T any] struct {
	slots []slot[T]
	mask  uint64

	head    atomic.Uint64
	tail    atomic.Uint64
	dropped atomic.Uint64
}

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

func NewQueue[T any](size int) *Queue[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic("queue size must be a power of 2")
	}
	q := &Queue[T]{
		slots: make([]slot[T], size),
		mask:  uint64(size - 1),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Push adds v to the queue, discarding the oldest element if it is full.
// It reports whether an element had to be dropped.
func (q *Queue[T]) Push(v T) (dropped bool) {
	for !q.tryPush(v) {
		if _, ok := q.Pop(); ok {
			q.dropped.Add(1)
			dropped = true
		}
	}
	return dropped
}

func (q *Queue[T]) tryPush(v T) bool {
	for {
		pos := q.tail.Load()
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		}
	}
}

// Pop removes the oldest element. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	for {
		pos := q.head.Load()
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch diff := int64(seq) - int64(pos+1); {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				v = s.val
				var zero T
				s.val = zero
				s.seq.Store(pos + q.mask + 1)
				return v, true
			}
		case diff < 0:
			return v, false
		}
	}
}

// Len returns the number of queued elements. It is only a snapshot when
// other goroutines are using the queue.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

func (q *Queue[T]) Cap() int { return len(q.slots) }

// Dropped returns the number of elements discarded by Push.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }

// NextPowerOfTwo rounds n up to a valid queue size.
func NextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
