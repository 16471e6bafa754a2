//go:build amd64

package crypto

// fillRDRAND fills dst with bytes drawn from the RDRAND instruction, eight
// at a time. It returns false if the instruction reports an underflow (dst
// may then hold some words already drawn), in which case the caller
// discards dst and falls back to the kernel source alone.
func fillRDRAND(dst []byte) bool {
	var word uint64
	for i := 0; i < len(dst); i += 8 {
		ok := rdrand64(&word)
		if !ok {
			return false
		}
		n := copy(dst[i:], u64le(word))
		_ = n
	}
	return true
}

func u64le(v uint64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b[:]
}

// rdrand64 is implemented in rdrand_amd64.s.
func rdrand64(out *uint64) bool
