package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpm/internal/crypto"
)

func sampleChunk(t *testing.T, cp *crypto.Provider) (*Chunk, crypto.Key32) {
	t.Helper()
	var c Chunk
	require.NoError(t, cp.RandomFill(c.Salt1[:]))
	require.NoError(t, cp.RandomFill(c.Salt2[:]))
	require.NoError(t, cp.RandomFill(c.Hash[:]))
	for i := range c.Parts {
		require.NoError(t, cp.RandomFill(c.Parts[i][:]))
		c.XParts[i] = uint64(i + 1)
	}
	c.CommonThreshold = 2
	c.CommonNbParts = 3
	c.SecretThreshold = 3
	c.SecretNbParts = 2
	c.CommonMagic = 0xDEADBEEFCAFED00D
	c.IDHolder = 7
	require.NoError(t, cp.RandomFill(c.Padding[:]))

	var key crypto.Key32
	require.NoError(t, cp.RandomFill(key[:]))
	return &c, key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	cp := crypto.New(nil)
	c, key := sampleChunk(t, cp)

	buf := Marshal(c)
	require.Len(t, buf, Size)
	require.NoError(t, Seal(cp, buf, key))

	got, err := Open(cp, buf, key)
	require.NoError(t, err)
	assert.Equal(t, c.Salt1, got.Salt1)
	assert.Equal(t, c.Parts, got.Parts)
	assert.Equal(t, c.XParts, got.XParts)
	assert.Equal(t, c.IDHolder, got.IDHolder)
	assert.Equal(t, c.CommonMagic, got.CommonMagic)
}

func TestOpen_WrongKeyFailsMagic(t *testing.T) {
	cp := crypto.New(nil)
	c, key := sampleChunk(t, cp)
	buf := Marshal(c)
	require.NoError(t, Seal(cp, buf, key))

	var wrongKey crypto.Key32
	require.NoError(t, cp.RandomFill(wrongKey[:]))
	_, err := Open(cp, buf, wrongKey)
	assert.Error(t, err)
}

func TestMatchesHash(t *testing.T) {
	cp := crypto.New(nil)
	c, _ := sampleChunk(t, cp)
	assert.True(t, c.MatchesHash(c.Hash))

	var other [32]byte
	assert.False(t, c.MatchesHash(other))
}
