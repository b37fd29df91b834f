package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("WIB", 7*3600))
	clk := NewFakeClock(start)

	assert.Equal(t, time.UTC, clk.Now().Location())
	assert.True(t, clk.Now().Equal(start))

	clk.Advance(90 * time.Minute)
	assert.True(t, clk.Now().Equal(start.Add(90*time.Minute)))

	clk.Set(start)
	assert.True(t, clk.Now().Equal(start))
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, New().Now().Location())
}
