package base64codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x01, 0x02},
		[]byte("hello world"),
		[]byte("exactly12byt"),
	}
	for _, c := range cases {
		enc := Encode(c)
		dec, err := Decode(enc, 0)
		require.NoError(t, err)
		assert.Equal(t, c, dec)
	}
}

func TestDecode_ToleratesWhitespace(t *testing.T) {
	enc := Encode([]byte("secret value"))
	spaced := enc[:4] + "\n " + enc[4:]
	dec, err := Decode(spaced, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret value"), dec)
}

func TestDecode_RejectsInvalidCharacter(t *testing.T) {
	_, err := Decode("!!!!", 0)
	assert.Error(t, err)
}

func TestDecode_RejectsTruncatedQuartet(t *testing.T) {
	_, err := Decode("Q", 0)
	assert.Error(t, err)
}

func TestDecode_BoundedLength(t *testing.T) {
	enc := Encode([]byte("0123456789"))
	dec, err := Decode(enc, 5)
	require.NoError(t, err)
	assert.Len(t, dec, 5)
}
