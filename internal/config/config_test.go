package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Defaults(t *testing.T) {
	v := New()
	c, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, defaultVaultPath, c.VaultPath)
	assert.Equal(t, defaultCommonThreshold, c.CommonThreshold)
	assert.Equal(t, defaultLockoutAttempts, c.Lockout.MaxAttempts)
}

func TestResolve_RejectsEmptyVaultPath(t *testing.T) {
	v := New()
	v.Set("vault", "")
	_, err := Resolve(v)
	assert.Error(t, err)
}

func TestResolve_RejectsLowThreshold(t *testing.T) {
	v := New()
	v.Set("common_threshold", 1)
	_, err := Resolve(v)
	assert.Error(t, err)
}
