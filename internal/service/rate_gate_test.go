package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGate(max int, window time.Duration) (*RateGate, *time.Time) {
	gate := NewRateGate(max, window, time.Millisecond, zap.NewNop())
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return clock }
	return gate, &clock
}

func TestAdmitBoundedByLimit(t *testing.T) {
	gate, _ := newTestGate(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, gate.Admit(), "request %d should be admitted", i)
	}

	assert.False(t, gate.Admit())
	assert.Len(t, gate.stamps, 3, "denial must coincide with exactly max retained timestamps")
}

func TestAdmitAfterWindowExpiry(t *testing.T) {
	gate, clock := newTestGate(2, time.Minute)

	require.True(t, gate.Admit())
	require.True(t, gate.Admit())
	require.False(t, gate.Admit())

	*clock = clock.Add(time.Minute + time.Second)

	assert.True(t, gate.Admit())
	assert.Len(t, gate.stamps, 1, "expired timestamps must be evicted")
}

func TestTimeUntilReset(t *testing.T) {
	gate, clock := newTestGate(1, time.Minute)

	assert.Equal(t, time.Duration(0), gate.TimeUntilReset(), "empty window has nothing to wait for")

	require.True(t, gate.Admit())
	first := gate.TimeUntilReset()
	assert.Equal(t, time.Minute, first)

	*clock = clock.Add(20 * time.Second)
	second := gate.TimeUntilReset()
	assert.Equal(t, 40*time.Second, second)
	assert.LessOrEqual(t, second, first, "reset estimate must not increase between admissions")

	*clock = clock.Add(41 * time.Second)
	assert.Equal(t, time.Duration(0), gate.TimeUntilReset())
}

func TestCooldownDelaysSecondCall(t *testing.T) {
	gate := NewRateGate(10, time.Minute, 50*time.Millisecond, zap.NewNop())

	require.NoError(t, gate.WaitCooldown(context.Background()))

	start := time.Now()
	require.NoError(t, gate.WaitCooldown(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "second call must wait out the cooldown")
}

func TestCooldownHonorsCancellation(t *testing.T) {
	gate := NewRateGate(10, time.Minute, time.Hour, zap.NewNop())

	require.NoError(t, gate.WaitCooldown(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, gate.WaitCooldown(ctx))
}
