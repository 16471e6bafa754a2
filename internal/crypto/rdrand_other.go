//go:build !amd64

package crypto

// fillRDRAND reports false on architectures without an RDRAND fast path;
// RandomFill then relies on the kernel CSPRNG alone.
func fillRDRAND(dst []byte) bool {
	return false
}
