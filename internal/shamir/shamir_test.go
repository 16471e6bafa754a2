package shamir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpm/internal/crypto"
)

func TestEngine_SplitAndCombine_ThresholdMet(t *testing.T) {
	// Arrange
	cp := crypto.New(nil)
	issuer, err := New(3, cp)
	require.NoError(t, err)
	var secret [32]byte
	require.NoError(t, cp.RandomFill(secret[:]))
	require.NoError(t, issuer.SetSecret(secret))

	shares := make([]Share, 0, 5)
	for i := uint16(1); i <= 5; i++ {
		x := MakeX(i, 0, uint64(i)*7919)
		s, err := issuer.GetPart(x)
		require.NoError(t, err)
		shares = append(shares, s)
	}

	// Act: combine using exactly threshold shares
	combiner, err := New(3, cp)
	require.NoError(t, err)
	for _, s := range shares[:3] {
		require.NoError(t, combiner.SetPart(s))
	}
	require.Equal(t, 0, combiner.MissingParts())
	require.NoError(t, combiner.Combine())

	// Assert
	got, err := combiner.GetSecret()
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestEngine_Combine_FailsBelowThreshold(t *testing.T) {
	cp := crypto.New(nil)
	issuer, err := New(4, cp)
	require.NoError(t, err)
	var secret [32]byte
	require.NoError(t, cp.RandomFill(secret[:]))
	require.NoError(t, issuer.SetSecret(secret))

	combiner, err := New(4, cp)
	require.NoError(t, err)
	for i := uint16(1); i <= 2; i++ {
		s, err := issuer.GetPart(MakeX(i, 0, uint64(i)))
		require.NoError(t, err)
		require.NoError(t, combiner.SetPart(s))
	}

	assert.Equal(t, 2, combiner.MissingParts())
	assert.Error(t, combiner.Combine())
}

func TestGetPart_RejectsZeroX(t *testing.T) {
	cp := crypto.New(nil)
	e, err := New(2, cp)
	require.NoError(t, err)
	var secret [32]byte
	require.NoError(t, e.SetSecret(secret))
	_, err = e.GetPart(0)
	assert.Error(t, err)
}

func TestMakeX_NeverZero(t *testing.T) {
	x := MakeX(0, 0, 0)
	assert.NotZero(t, x)
}
