package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingWrapsAround(t *testing.T) {
	r := newRing(3)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())

	for i := int64(0); i < 7; i++ {
		r.Push(Measurement{Time: i, Count: 1})
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, int64(4), r.At(0).Time)
	assert.Equal(t, int64(6), r.Last().Time)
	assert.Equal(t, 3, cap(r.buf), "no growth past capacity")
}

func TestRingSearch(t *testing.T) {
	r := newRing(4)
	for _, ts := range []int64{1, 3, 3, 8, 9, 12} {
		r.Push(Measurement{Time: ts})
	}
	// holds 3, 8, 9, 12

	assert.Equal(t, 0, r.Search(0))
	assert.Equal(t, 0, r.Search(3))
	assert.Equal(t, 1, r.Search(4))
	assert.Equal(t, 3, r.Search(12))
	assert.Equal(t, 4, r.Search(13))
}
