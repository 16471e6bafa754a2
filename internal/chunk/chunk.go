// Package chunk implements the 512-byte on-disk holder record: byte layout,
// in-place AES-CBC sealing/opening over the encrypted tail, and the magic
// check that distinguishes a correctly opened chunk from noise.
package chunk

import (
	"encoding/binary"
	"fmt"

	"mpm/internal/apperr"
	"mpm/internal/crypto"
)

// Size is the fixed on-disk chunk length.
const Size = 512

// clearLen is how many leading bytes are stored unencrypted (salt1, hash,
// salt2); everything from clearLen onward is AES-CBC sealed with
// key=iterKDF(nickname,salt2,password), iv=salt1.
const clearLen = 3 * 32

// aesLen is the encrypted tail length: 512 - 96, already block-aligned.
const aesLen = Size - clearLen

// maxParts is how many share slots a chunk can carry.
const maxParts = 8

// magic is the fixed sentinel that must survive decryption intact.
const magic = 0x4425827A2CB0794B

// version is the only file-format version this package writes/reads.
const version = 1

// alignGap is the compiler-inserted alignment padding the original C
// struct carries between its 56-byte padding field and the two trailing
// uint64 fields (version, magic): those need 8-byte alignment, and
// clearLen(96)+parts+xparts(320)+four uint16s(8)+magic(8)+id_holder(2)+
// padding(56) lands on an offset that is 6 bytes short of the next
// 8-byte boundary.
const alignGap = 6

// Chunk is the decoded (plaintext) content of one holder record.
type Chunk struct {
	Salt1           [32]byte
	Hash            [32]byte
	Salt2           [32]byte
	Parts           [maxParts][32]byte
	XParts          [maxParts]uint64
	CommonThreshold uint16
	CommonNbParts   uint16
	SecretThreshold uint16
	SecretNbParts   uint16
	CommonMagic     uint64
	IDHolder        uint16
	Padding         [56]byte
}

// Marshal serialises c into its 512-byte plaintext form, ready to be
// sealed with Seal. Padding bytes are taken verbatim from c.Padding (the
// caller is expected to have randomised them).
func Marshal(c *Chunk) []byte {
	buf := make([]byte, Size)
	off := 0
	off += copy(buf[off:], c.Salt1[:])
	off += copy(buf[off:], c.Hash[:])
	off += copy(buf[off:], c.Salt2[:])
	for i := 0; i < maxParts; i++ {
		off += copy(buf[off:], c.Parts[i][:])
	}
	for i := 0; i < maxParts; i++ {
		binary.LittleEndian.PutUint64(buf[off:], c.XParts[i])
		off += 8
	}
	binary.LittleEndian.PutUint16(buf[off:], c.CommonThreshold)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.CommonNbParts)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.SecretThreshold)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.SecretNbParts)
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], c.CommonMagic)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], c.IDHolder)
	off += 2
	off += copy(buf[off:], c.Padding[:])
	off += alignGap
	binary.LittleEndian.PutUint64(buf[off:], version)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], magic)
	off += 8
	if off != Size {
		panic(fmt.Sprintf("chunk: layout bug, wrote %d of %d bytes", off, Size))
	}
	return buf
}

// Unmarshal parses a decrypted 512-byte plaintext chunk and validates the
// trailing magic. A mismatch means either a wrong key or corruption; both
// are reported as ErrIntegrityFail.
func Unmarshal(buf []byte) (*Chunk, error) {
	if len(buf) != Size {
		return nil, fmt.Errorf("%w: chunk must be %d bytes, got %d", apperr.ErrInvalidArg, Size, len(buf))
	}
	var c Chunk
	off := 0
	copy(c.Salt1[:], buf[off:off+32])
	off += 32
	copy(c.Hash[:], buf[off:off+32])
	off += 32
	copy(c.Salt2[:], buf[off:off+32])
	off += 32
	for i := 0; i < maxParts; i++ {
		copy(c.Parts[i][:], buf[off:off+32])
		off += 32
	}
	for i := 0; i < maxParts; i++ {
		c.XParts[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	c.CommonThreshold = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.CommonNbParts = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.SecretThreshold = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.SecretNbParts = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.CommonMagic = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.IDHolder = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	copy(c.Padding[:], buf[off:off+56])
	off += 56
	off += alignGap
	gotVersion := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	gotMagic := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	if gotMagic != magic || gotVersion != version {
		return nil, fmt.Errorf("%w: chunk magic/version mismatch (wrong key or corrupt file)", apperr.ErrIntegrityFail)
	}
	return &c, nil
}

// Seal AES-CBC encrypts the tail of a plaintext chunk buffer (as produced
// by Marshal) in place, using the chunk's own salt1 as IV.
func Seal(cp *crypto.Provider, buf []byte, key crypto.Key32) error {
	if len(buf) != Size {
		return fmt.Errorf("%w: chunk must be %d bytes", apperr.ErrInvalidArg, Size)
	}
	var iv [16]byte
	copy(iv[:], buf[:16])
	return cp.AesCbc(buf[clearLen:], key, iv, true)
}

// Open decrypts the tail of a copy of an on-disk chunk buffer and parses
// the result; buf itself is not modified.
func Open(cp *crypto.Provider, buf []byte, key crypto.Key32) (*Chunk, error) {
	if len(buf) != Size {
		return nil, fmt.Errorf("%w: chunk must be %d bytes", apperr.ErrInvalidArg, Size)
	}
	var iv [16]byte
	copy(iv[:], buf[:16])
	plain := append([]byte(nil), buf...)
	if err := cp.AesCbc(plain[clearLen:], key, iv, false); err != nil {
		return nil, err
	}
	return Unmarshal(plain)
}

// MatchesHash reports whether a candidate recomputed hash blindly matches
// this chunk's stored hash, in constant time.
func (c *Chunk) MatchesHash(candidate [32]byte) bool {
	return crypto.Key32(c.Hash).Equal(crypto.Key32(candidate))
}
