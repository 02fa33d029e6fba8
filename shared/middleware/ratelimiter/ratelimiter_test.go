package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate, capacity float64, expiration time.Duration) (*KeyedLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(rate, capacity, expiration)
	l.now = clock.now
	return l, clock
}

func TestAllow(t *testing.T) {
	t.Run("allows burst up to capacity", func(t *testing.T) {
		l, _ := newTestLimiter(1, 3, time.Hour)

		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
	})

	t.Run("refills over time", func(t *testing.T) {
		l, clock := newTestLimiter(1, 1, time.Hour)

		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
		clock.advance(1500 * time.Millisecond)
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
	})

	t.Run("does not exceed capacity", func(t *testing.T) {
		l, clock := newTestLimiter(1, 2, time.Hour)

		assert.True(t, l.Allow("a"))
		clock.advance(time.Minute)
		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		l, _ := newTestLimiter(1, 1, time.Hour)

		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
		assert.True(t, l.Allow("b"))
	})
}

func TestExpiration(t *testing.T) {
	l, clock := newTestLimiter(1, 1, time.Minute)

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	clock.advance(30 * time.Second)
	l.Allow("b")
	clock.advance(45 * time.Second)
	l.Allow("c")

	// a idle 75s is gone, b idle 45s survives
	assert.Equal(t, 2, l.Len())
}

func TestPerMinute(t *testing.T) {
	l := PerMinute(2)
	assert.True(t, l.Allow("x"))
	assert.True(t, l.Allow("x"))
	assert.False(t, l.Allow("x"))
}
