package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAesCbc_RoundTrip(t *testing.T) {
	// Arrange
	var key Key32
	require.NoError(t, New(nil).RandomFill(key[:]))
	var iv [16]byte
	require.NoError(t, New(nil).RandomFill(iv[:]))
	plaintext := []byte("0123456789ABCDEF0123456789ABCDEF") // 32 bytes, block-aligned
	buf := append([]byte(nil), plaintext...)
	p := New(nil)

	// Act
	require.NoError(t, p.AesCbc(buf, key, iv, true))
	require.NotEqual(t, plaintext, buf)
	require.NoError(t, p.AesCbc(buf, key, iv, false))

	// Assert
	assert.Equal(t, plaintext, buf)
}

func TestAesCbc_RejectsUnalignedLength(t *testing.T) {
	var key Key32
	var iv [16]byte
	err := New(nil).AesCbc(make([]byte, 17), key, iv, true)
	assert.Error(t, err)
}

func TestSha256IteratedMix1_Deterministic(t *testing.T) {
	var salt [32]byte
	for i := range salt {
		salt[i] = byte(i)
	}
	a := Sha256IteratedMix1("alice", salt, "hunter2")
	b := Sha256IteratedMix1("alice", salt, "hunter2")
	assert.Equal(t, a, b)

	c := Sha256IteratedMix1("alice", salt, "different")
	assert.NotEqual(t, a, c)
}

func TestSha256Mix2_VariesWithMagic(t *testing.T) {
	var salt [32]byte
	a := Sha256Mix2(salt, 1)
	b := Sha256Mix2(salt, 2)
	assert.NotEqual(t, a, b)
}

func TestKey32_ZeroClears(t *testing.T) {
	k := Key32{1, 2, 3, 4}
	k.Zero()
	assert.Equal(t, Key32{}, k)
}
