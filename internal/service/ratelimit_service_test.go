package service

import (
	"fmt"
	"testing"

	"dlvideo/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitDisabled(t *testing.T) {
	rls := NewRateLimitService(&model.RateLimitConfig{Enabled: false})

	for i := 0; i < 100; i++ {
		assert.True(t, rls.IsAllowed("1.2.3.4"))
	}
	assert.Equal(t, -1, rls.GetRemaining("1.2.3.4"))
}

func TestRateLimitBlocksPastBurst(t *testing.T) {
	rls := NewRateLimitService(&model.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 5,
		BurstSize:         2,
		CleanupInterval:   3600,
	})
	defer rls.Stop()

	// limit + burst requests pass, the next one is blocked.
	for i := 0; i < 7; i++ {
		assert.True(t, rls.IsAllowed("1.2.3.4"), fmt.Sprintf("request %d should pass", i+1))
	}
	assert.False(t, rls.IsAllowed("1.2.3.4"))
	assert.False(t, rls.IsAllowed("1.2.3.4"), "blocked state sticks for the window")
}

func TestRateLimitPerIPIsolation(t *testing.T) {
	rls := NewRateLimitService(&model.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		BurstSize:         0,
		CleanupInterval:   3600,
	})
	defer rls.Stop()

	assert.True(t, rls.IsAllowed("1.1.1.1"))
	assert.False(t, rls.IsAllowed("1.1.1.1"))
	assert.True(t, rls.IsAllowed("2.2.2.2"), "limits are tracked per IP")
}

func TestRateLimitGetRemaining(t *testing.T) {
	rls := NewRateLimitService(&model.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 10,
		BurstSize:         0,
		CleanupInterval:   3600,
	})
	defer rls.Stop()

	assert.Equal(t, 10, rls.GetRemaining("9.9.9.9"), "untouched IP has the full window")
	rls.IsAllowed("9.9.9.9")
	assert.Equal(t, 9, rls.GetRemaining("9.9.9.9"))
}
