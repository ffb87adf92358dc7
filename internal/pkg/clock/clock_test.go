package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrozen(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewFrozen(t0)

	assert.Equal(t, t0, c.Now())
	assert.Equal(t, t0.Add(16*time.Minute), c.Advance(16*time.Minute))
	assert.Equal(t, t0.Add(16*time.Minute), c.Now())

	c.Set(t0)
	assert.Equal(t, t0, c.Now())
}

func TestTimeClocker(t *testing.T) {
	now := New().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
