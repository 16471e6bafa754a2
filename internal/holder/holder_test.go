package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpm/internal/crypto"
	"mpm/internal/shamir"
)

func TestValidateSlotRanges(t *testing.T) {
	t.Run("fits within MaxParts", func(t *testing.T) {
		h := &Holder{CommonNbParts: 3, SecretNbParts: 5}
		assert.NoError(t, h.ValidateSlotRanges())
	})

	t.Run("overlap rejected", func(t *testing.T) {
		h := &Holder{Nickname: "alice", CommonNbParts: 5, SecretNbParts: 5}
		err := h.ValidateSlotRanges()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alice")
	})

	t.Run("exact fit", func(t *testing.T) {
		h := &Holder{CommonNbParts: MaxParts, SecretNbParts: 0}
		assert.NoError(t, h.ValidateSlotRanges())
	})
}

func TestSlotInUse(t *testing.T) {
	h := &Holder{CommonNbParts: 2, SecretNbParts: 3}
	// Common range: slots 0,1. Secret range: slots 5,6,7 (MaxParts-3..MaxParts-1).
	for i := 0; i < MaxParts; i++ {
		want := i < 2 || i >= MaxParts-3
		assert.Equalf(t, want, h.slotInUse(i), "slot %d", i)
	}
}

func TestEmitParts_FillsRealAndRandomSlots(t *testing.T) {
	cp := crypto.New(nil)
	common, err := shamir.New(2, cp)
	require.NoError(t, err)
	var commonSecret [32]byte
	require.NoError(t, cp.RandomFill(commonSecret[:]))
	require.NoError(t, common.SetSecret(commonSecret))

	secret, err := shamir.New(2, cp)
	require.NoError(t, err)
	var secretSecret [32]byte
	require.NoError(t, cp.RandomFill(secretSecret[:]))
	require.NoError(t, secret.SetSecret(secretSecret))

	h := &Holder{ID: 7, CommonNbParts: 2, SecretNbParts: 2}
	var tailCounter uint64
	randXTail := func() uint64 {
		tailCounter++
		return tailCounter
	}
	require.NoError(t, h.EmitParts(cp, common, secret, randXTail))

	for i := 0; i < MaxParts; i++ {
		assert.NotZero(t, h.XParts[i], "slot %d must have a non-zero X", i)
	}

	commonShares := h.CommonShares()
	require.Len(t, commonShares, 2)
	secretShares := h.SecretShares()
	require.Len(t, secretShares, 2)

	// The unused middle slots (2..5) must not collide with either range's X
	// values, and must not be zero-filled.
	used := make(map[uint64]bool)
	for _, s := range commonShares {
		used[s.X] = true
	}
	for _, s := range secretShares {
		used[s.X] = true
	}
	for i := h.CommonNbParts; i < MaxParts-h.SecretNbParts; i++ {
		assert.False(t, used[h.XParts[i]], "random slot %d X collided with a real share", i)
	}

	// Recombining from the emitted shares must recover the original secrets.
	recombineCommon, err := shamir.New(2, cp)
	require.NoError(t, err)
	for _, s := range commonShares {
		require.NoError(t, recombineCommon.SetPart(s))
	}
	require.NoError(t, recombineCommon.Combine())
	got, err := recombineCommon.GetSecret()
	require.NoError(t, err)
	assert.Equal(t, commonSecret, got)
}

func TestEmitParts_RejectsOverlappingRanges(t *testing.T) {
	cp := crypto.New(nil)
	common, err := shamir.New(2, cp)
	require.NoError(t, err)
	secret, err := shamir.New(2, cp)
	require.NoError(t, err)

	h := &Holder{ID: 1, CommonNbParts: 5, SecretNbParts: 5}
	err = h.EmitParts(cp, common, secret, func() uint64 { return 1 })
	assert.Error(t, err)
}

func TestToChunkFromChunk_RoundTrip(t *testing.T) {
	cp := crypto.New(nil)
	h := &Holder{Nickname: "alice", ID: 3, CommonNbParts: 2, SecretNbParts: 1}
	require.NoError(t, cp.RandomFill(h.Salt1[:]))
	require.NoError(t, cp.RandomFill(h.Salt2[:]))
	h.DeriveKeys("hunter2")

	c, err := h.ToChunk(cp, 2, 3, 0xBEEF)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), c.IDHolder)
	assert.Equal(t, uint16(2), c.CommonThreshold)
	assert.Equal(t, uint16(3), c.SecretThreshold)
	assert.Equal(t, uint16(2), c.CommonNbParts)
	assert.Equal(t, uint16(1), c.SecretNbParts)

	back := FromChunk("alice", c, 9)
	assert.Equal(t, h.ID, back.ID)
	assert.Equal(t, StatusOpen, back.Status)
	assert.Equal(t, h.Salt1, back.Salt1)
	assert.Equal(t, h.Salt2, back.Salt2)
	assert.Equal(t, 9, back.FileIndex)
}
