package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextTickAlignsToBoundary(t *testing.T) {
	now := time.Date(2026, 3, 14, 14, 23, 5, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC), nextTick(now, time.Hour))
	assert.Equal(t, time.Date(2026, 3, 14, 14, 30, 0, 0, time.UTC), nextTick(now, 30*time.Minute))
}

func TestNextTickOnBoundaryWaitsFullInterval(t *testing.T) {
	now := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC), nextTick(now, time.Hour))
}
