// Package crypto implements the CryptoProvider described by the mpm file
// format: AES-256-CBC with no padding, SHA-256, an iterated-SHA key
// derivation function with fixed constants, and CSPRNG-backed random fill.
//
// The wire format is pinned bit-for-bit to these primitives; substituting
// AEAD or a different KDF would break compatibility with existing files,
// so this package intentionally stays on the standard library for them.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/sirupsen/logrus"

	"mpm/internal/apperr"
)

// iterations is the number of chained SHA-256 rounds in the KDF table.
const iterations = 65536

// offsetIterations is the reorder stride used to read the KDF table back
// out; it must stay coprime with iterations (3*5*11*13*17).
const offsetIterations = 36465

// Key32 is a 32-byte secret that must be wiped after use.
type Key32 [32]byte

// Zero overwrites the key in place with two passes, defeating simple
// dead-store elimination via runtime.KeepAlive.
func (k *Key32) Zero() {
	for i := range k {
		k[i] = 0xFF
	}
	runtime.KeepAlive(k)
	for i := range k {
		k[i] = 0x00
	}
	runtime.KeepAlive(k)
}

// Equal performs a constant-time comparison, used for blind-lookup hash
// matching so that timing does not leak how many leading bytes agreed.
func (k Key32) Equal(other Key32) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// Provider implements the cryptographic primitives the core depends on.
// It is safe for sequential (non-concurrent) reuse across a session.
type Provider struct {
	log *logrus.Logger
}

// New builds a Provider. A nil logger disables logging.
func New(log *logrus.Logger) *Provider {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Provider{log: log}
}

// RandomFill fills buf with cryptographically secure random bytes. The
// kernel CSPRNG is always consulted; on amd64 hosts advertising RDRAND a
// second hardware-backed stream is XORed in so that a compromised kernel
// source alone cannot bias the output. Other architectures, and hosts
// without RDRAND, silently use the kernel source only.
func (p *Provider) RandomFill(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("%w: kernel csprng: %v", apperr.ErrCryptoFail, err)
	}
	if cpuid.CPU.Supports(cpuid.RDRAND) {
		hw := make([]byte, len(buf))
		if ok := fillRDRAND(hw); ok {
			for i := range buf {
				buf[i] ^= hw[i]
			}
		}
	}
	return nil
}

// AesCbc runs AES-256-CBC over buf in place. len(buf) must be a multiple
// of the AES block size; the caller is responsible for padding, since the
// file format stores no padding indicator.
func (p *Provider) AesCbc(buf []byte, key Key32, iv [16]byte, encrypt bool) error {
	if len(buf)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: buffer length %d not a multiple of block size", apperr.ErrCryptoFail, len(buf))
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrCryptoFail, err)
	}
	ivCopy := iv
	if encrypt {
		cipher.NewCBCEncrypter(block, ivCopy[:]).CryptBlocks(buf, buf)
	} else {
		cipher.NewCBCDecrypter(block, ivCopy[:]).CryptBlocks(buf, buf)
	}
	return nil
}

// Sha256Mix1 computes H(s1 NUL-stripped || salt || s2 NUL-stripped), the
// single-round primitive underlying both the blind-lookup hash and the KDF.
func Sha256Mix1(s1 string, salt [32]byte, s2 string) Key32 {
	h := sha256.New()
	h.Write([]byte(s1))
	h.Write(salt[:])
	h.Write([]byte(s2))
	var out Key32
	copy(out[:], h.Sum(nil))
	return out
}

// Sha256IteratedMix1 is the KDF: build a table of `iterations` chained
// Mix1 digests, then read it back out in a fixed-stride reorder and feed
// that sequence into a final hash. Both constants must match the format
// exactly; files produced with different constants are not interoperable.
//
// table[i] holds H_{i+1} (the digest after i+1 rounds starting from H_0,
// i.e. i+2 applications of Mix1 starting from salt), not H_i: the chain's
// first application of Mix1 (H_0) is never itself stored.
func Sha256IteratedMix1(s1 string, salt [32]byte, s2 string) Key32 {
	table := make([][32]byte, iterations)
	h := Sha256Mix1(s1, salt, s2)
	for i := 0; i < iterations; i++ {
		h = Sha256Mix1(s1, h, s2)
		table[i] = h
	}

	final := sha256.New()
	offset := 0
	for i := 0; i < iterations; i++ {
		final.Write(table[offset][:])
		offset = (offset + offsetIterations) % iterations
	}
	var out Key32
	copy(out[:], final.Sum(nil))
	return out
}

// Sha256Mix2 computes H(salt || magic) where magic is encoded little-endian,
// used for the common-section marker hash.
func Sha256Mix2(salt [32]byte, magic uint64) Key32 {
	h := sha256.New()
	h.Write(salt[:])
	var m [8]byte
	binary.LittleEndian.PutUint64(m[:], magic)
	h.Write(m[:])
	var out Key32
	copy(out[:], h.Sum(nil))
	return out
}
