// Package secrettree implements the folder/item/field tree that holds the
// database's secrets: per-item IVs, per-field secret/common tiers, and the
// allocation of the small positive integer IDs the tree uses for addressing.
package secrettree

import (
	"fmt"

	"mpm/internal/apperr"
	"mpm/internal/base64codec"
	"mpm/internal/crypto"
)

// MaxID bounds ID allocation, matching the format's tree-size ceiling.
const MaxID = 100000

// Field is one named value inside an item, either stored in clear or as a
// Base64-encoded AES-CBC ciphertext under the database's secret key.
type Field struct {
	Name        string
	Value       string // cleartext, or base64(ciphertext) when Secret
	Secret      bool
	PiggyBanked bool
	SessionKey  string
}

// Item is a titled collection of fields sharing one IV.
type Item struct {
	Title  string
	ID     int
	AesIV  [16]byte
	Fields []Field
}

// Folder is a tree node holding items and sub-folders.
type Folder struct {
	Title      string
	ID         int
	Items      []*Item
	SubFolders []*Folder
}

// NewRoot builds the tree root, which always has id 1.
func NewRoot(title string) *Folder {
	return &Folder{Title: title, ID: 1}
}

// AllocateID returns the smallest positive integer not already used by any
// folder or item in the tree rooted at root, scanning ascending from 1.
func AllocateID(root *Folder) (int, error) {
	used := make(map[int]bool)
	collect(root, used)
	for id := 1; id <= MaxID; id++ {
		if !used[id] {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: tree has reached the maximum of %d ids", apperr.ErrInvalidArg, MaxID)
}

func collect(f *Folder, used map[int]bool) {
	used[f.ID] = true
	for _, it := range f.Items {
		used[it.ID] = true
	}
	for _, sub := range f.SubFolders {
		collect(sub, used)
	}
}

// Find locates a folder or item by id anywhere in the tree.
func Find(root *Folder, id int) (folder *Folder, item *Item) {
	if root.ID == id {
		return root, nil
	}
	for _, it := range root.Items {
		if it.ID == id {
			return root, it
		}
	}
	for _, sub := range root.SubFolders {
		if f, it := Find(sub, id); f != nil || it != nil {
			return f, it
		}
	}
	return nil, nil
}

// DeleteByID removes a folder or item (and, for a folder, its whole
// subtree) from the tree. Returns ErrInvalidArg if id is not present or is
// the root.
func DeleteByID(root *Folder, id int) error {
	if root.ID == id {
		return fmt.Errorf("%w: cannot delete the root folder", apperr.ErrInvalidArg)
	}
	if ok := deleteFrom(root, id); !ok {
		return fmt.Errorf("%w: no folder or item with id %d", apperr.ErrInvalidArg, id)
	}
	return nil
}

func deleteFrom(folder *Folder, id int) bool {
	for i, it := range folder.Items {
		if it.ID == id {
			folder.Items = append(folder.Items[:i], folder.Items[i+1:]...)
			return true
		}
	}
	for i, sub := range folder.SubFolders {
		if sub.ID == id {
			folder.SubFolders = append(folder.SubFolders[:i], folder.SubFolders[i+1:]...)
			return true
		}
		if deleteFrom(sub, id) {
			return true
		}
	}
	return false
}

// EncryptField turns a cleartext field into its secret-tier ciphertext
// form, random-padded to a multiple of 16 bytes with a NUL terminator so
// decoding is unambiguous, then Base64-encoded.
func EncryptField(cp *crypto.Provider, secretKey crypto.Key32, iv [16]byte, cleartext string) (string, error) {
	plain := append([]byte(cleartext), 0)
	padded := len(plain)
	if rem := padded % 16; rem != 0 {
		padded += 16 - rem
	}
	buf := make([]byte, padded)
	copy(buf, plain)
	if _, err := fillRandomTail(cp, buf[len(plain):]); err != nil {
		return "", err
	}
	if err := cp.AesCbc(buf, secretKey, iv, true); err != nil {
		return "", err
	}
	return base64codec.Encode(buf), nil
}

// DecryptField reverses EncryptField: decode, decrypt, and trim at the
// first NUL terminator.
func DecryptField(cp *crypto.Provider, secretKey crypto.Key32, iv [16]byte, encoded string) (string, error) {
	buf, err := base64codec.Decode(encoded, 0)
	if err != nil {
		return "", err
	}
	if len(buf) == 0 || len(buf)%16 != 0 {
		return "", fmt.Errorf("%w: secret field ciphertext is not block-aligned", apperr.ErrIntegrityFail)
	}
	if err := cp.AesCbc(buf, secretKey, iv, false); err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return "", fmt.Errorf("%w: secret field missing terminator (wrong key?)", apperr.ErrIntegrityFail)
}

func fillRandomTail(cp *crypto.Provider, tail []byte) (int, error) {
	if len(tail) == 0 {
		return 0, nil
	}
	return len(tail), cp.RandomFill(tail)
}
