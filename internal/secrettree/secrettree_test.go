package secrettree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpm/internal/crypto"
)

func TestAllocateID_PicksSmallestFree(t *testing.T) {
	root := NewRoot("root")
	root.Items = append(root.Items, &Item{Title: "a", ID: 2}, &Item{Title: "b", ID: 3})

	id, err := AllocateID(root)
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	root.SubFolders = append(root.SubFolders, &Folder{Title: "sub", ID: 4})
	id, err = AllocateID(root)
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}

func TestFindAndDelete(t *testing.T) {
	root := NewRoot("root")
	sub := &Folder{Title: "sub", ID: 2}
	item := &Item{Title: "item", ID: 3}
	sub.Items = append(sub.Items, item)
	root.SubFolders = append(root.SubFolders, sub)

	f, it := Find(root, 3)
	require.NotNil(t, f)
	require.NotNil(t, it)
	assert.Equal(t, "item", it.Title)

	require.NoError(t, DeleteByID(root, 3))
	_, it = Find(root, 3)
	assert.Nil(t, it)
}

func TestDeleteByID_RejectsRoot(t *testing.T) {
	root := NewRoot("root")
	assert.Error(t, DeleteByID(root, root.ID))
}

func TestEncryptDecryptField_RoundTrip(t *testing.T) {
	cp := crypto.New(nil)
	var key crypto.Key32
	require.NoError(t, cp.RandomFill(key[:]))
	var iv [16]byte
	require.NoError(t, cp.RandomFill(iv[:]))

	enc, err := EncryptField(cp, key, iv, "correct horse battery staple")
	require.NoError(t, err)

	dec, err := DecryptField(cp, key, iv, enc)
	require.NoError(t, err)
	assert.Equal(t, "correct horse battery staple", dec)
}

func TestDecryptField_WrongKeyFails(t *testing.T) {
	cp := crypto.New(nil)
	var key, wrongKey crypto.Key32
	require.NoError(t, cp.RandomFill(key[:]))
	require.NoError(t, cp.RandomFill(wrongKey[:]))
	var iv [16]byte
	require.NoError(t, cp.RandomFill(iv[:]))

	enc, err := EncryptField(cp, key, iv, "value")
	require.NoError(t, err)

	_, err = DecryptField(cp, wrongKey, iv, enc)
	assert.Error(t, err)
}
