package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_LocksOutAfterThreshold(t *testing.T) {
	g := New(Policy{MaxAttempts: 3, Cooldown: time.Minute})
	clock := time.Now()
	g.now = func() time.Time { return clock }

	require.NoError(t, g.Check("alice"))
	g.RecordFailure("alice")
	g.RecordFailure("alice")
	require.NoError(t, g.Check("alice"))
	g.RecordFailure("alice")

	assert.Error(t, g.Check("alice"))

	clock = clock.Add(2 * time.Minute)
	assert.NoError(t, g.Check("alice"))
}

func TestGuard_SuccessClearsHistory(t *testing.T) {
	g := New(DefaultPolicy)
	g.RecordFailure("bob")
	g.RecordSuccess("bob")
	assert.NoError(t, g.Check("bob"))
}
