package history

// ring is a bounded FIFO of Measurements. It grows on demand up to its
// capacity, after which pushing overwrites the oldest entry. It is not safe
// for concurrent use.
type ring struct {
	buf      []Measurement
	head     int // index of the oldest entry once the ring is full
	capacity int
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity}
}

func (r *ring) Len() int {
	return len(r.buf)
}

func (r *ring) Cap() int {
	return r.capacity
}

// At returns the i-th entry, 0 being the oldest.
func (r *ring) At(i int) *Measurement {
	return &r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) Last() *Measurement {
	return r.At(len(r.buf) - 1)
}

func (r *ring) Push(m Measurement) {
	if n := len(r.buf); n < r.capacity {
		if n == cap(r.buf) {
			grown := make([]Measurement, n, min(max(2*n, 16), r.capacity))
			copy(grown, r.buf)
			r.buf = grown
		}
		r.buf = append(r.buf, m)
		return
	}
	r.buf[r.head] = m
	r.head = (r.head + 1) % len(r.buf)
}

// Search returns the index of the first entry with Time >= t, or Len() if
// there is none. Entries are ordered by non-decreasing time.
func (r *ring) Search(t int64) int {
	lo, hi := 0, len(r.buf)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if r.At(mid).Time < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}
