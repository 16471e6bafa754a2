// Package shamir implements the threshold secret-sharing engine described
// in the mpm file format: a (t, n) scheme over a 256-bit field, with X
// values that carry their own provenance (holder id, slot index, random
// salt) rather than the sequential 1..n indices a generic Shamir library
// would assign.
//
// Field arithmetic is delegated to cloudflare/circl's P-256 scalar group,
// a production-grade ~256-bit prime field; this package supplies its own
// polynomial evaluation and Lagrange interpolation on top of it because the
// custom X-value layout is incompatible with circl's own high-level
// Share/Recover helpers (those assign sequential share identifiers).
package shamir

import (
	"fmt"

	"github.com/cloudflare/circl/group"

	"mpm/internal/apperr"
	"mpm/internal/crypto"
)

// field is the scalar group every secret, coefficient, X and Y value lives
// in. P256's scalar field is a ~256-bit prime field, matching the format's
// "GF(2^256) or equivalent construction" requirement.
var field = group.P256

// slotHolderBits/slotIndexBits describe how an X value's 64 bits are
// carved up: bits 0-15 hold the holder id, bits 16-18 the slot index
// within that holder's chunk, bits 19-63 are random filler. X=0 is
// reserved and must never be issued, since evaluating P(0) would reveal
// the secret outright.
const (
	holderIDBits = 16
	slotBits     = 3
)

// MakeX packs a holder id, slot index and random tail into one X value.
// rand63 supplies the high 45 random bits; only its low bits are used.
func MakeX(holderID uint16, slot uint8, rand63 uint64) uint64 {
	x := uint64(holderID) | uint64(slot&0x7)<<holderIDBits
	x |= (rand63 << (holderIDBits + slotBits))
	if x == 0 {
		x = 1 // degenerate case: force non-zero, astronomically unlikely
	}
	return x
}

// Share is one (X, Y) pair as stored in a holder chunk.
type Share struct {
	X uint64
	Y [32]byte
}

// Engine holds one polynomial's state: either the coefficients used to
// issue shares, or the shares collected so far toward a combine.
type Engine struct {
	threshold int
	secret    group.Scalar // known when issuing; nil until combine() succeeds
	coeffs    []group.Scalar
	collected map[uint64]group.Scalar // X -> Y, deduplicated
	cp        *crypto.Provider
}

// New builds an engine for the given threshold (degree = threshold-1).
func New(threshold int, cp *crypto.Provider) (*Engine, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", apperr.ErrInvalidArg)
	}
	return &Engine{
		threshold: threshold,
		collected: make(map[uint64]group.Scalar),
		cp:        cp,
	}, nil
}

// SetSecret installs the secret to be shared and (re)draws the
// non-constant polynomial coefficients from the CSPRNG. Calling this again
// re-randomises the polynomial, equivalent to the format's "recoef" flag.
func (e *Engine) SetSecret(secret [32]byte) error {
	s := field.NewScalar()
	if err := s.UnmarshalBinary(secret[:]); err != nil {
		return fmt.Errorf("%w: secret out of field range: %v", apperr.ErrCryptoFail, err)
	}
	e.secret = s
	return e.reseedCoefficients()
}

// reseedCoefficients draws threshold-1 fresh random non-constant
// coefficients. Degree-0 (the secret itself) is coeffs[0].
func (e *Engine) reseedCoefficients() error {
	coeffs := make([]group.Scalar, e.threshold)
	coeffs[0] = e.secret
	buf := make([]byte, 32)
	for i := 1; i < e.threshold; i++ {
		c := field.NewScalar()
		// Redraw until the sample lands inside the field's valid range;
		// UnmarshalBinary rejects out-of-range encodings.
		for {
			if err := e.cp.RandomFill(buf); err != nil {
				return err
			}
			if err := c.UnmarshalBinary(buf); err == nil {
				break
			}
		}
		coeffs[i] = c
	}
	e.coeffs = coeffs
	return nil
}

// GetPart evaluates the polynomial at x via Horner's method and returns
// the resulting share. x must be non-zero.
func (e *Engine) GetPart(x uint64) (Share, error) {
	if x == 0 {
		return Share{}, fmt.Errorf("%w: x=0 is reserved and would leak the secret", apperr.ErrInvalidArg)
	}
	if e.coeffs == nil {
		return Share{}, fmt.Errorf("%w: no secret installed", apperr.ErrCryptoFail)
	}
	xs := field.NewScalar()
	xs.SetUint64(x)

	y := field.NewScalar()
	y.SetScalar(e.coeffs[e.threshold-1])
	for i := e.threshold - 2; i >= 0; i-- {
		y.Mul(y, xs)
		y.Add(y, e.coeffs[i])
	}
	yb, err := y.MarshalBinary()
	if err != nil {
		return Share{}, fmt.Errorf("%w: %v", apperr.ErrCryptoFail, err)
	}
	var out Share
	out.X = x
	copy(out.Y[32-len(yb):], yb)
	return out, nil
}

// SetPart queues one share toward a future Combine. Duplicate X values are
// ignored (idempotent); queuing more than threshold shares is rejected.
func (e *Engine) SetPart(s Share) error {
	if s.X == 0 {
		return fmt.Errorf("%w: x=0 is never a valid share", apperr.ErrInvalidArg)
	}
	if _, ok := e.collected[s.X]; ok {
		return nil
	}
	if len(e.collected) >= e.threshold {
		return fmt.Errorf("%w: already have %d shares, threshold is %d", apperr.ErrInvalidArg, len(e.collected), e.threshold)
	}
	y := field.NewScalar()
	if err := y.UnmarshalBinary(s.Y[:]); err != nil {
		return fmt.Errorf("%w: share Y out of field range: %v", apperr.ErrCryptoFail, err)
	}
	e.collected[s.X] = y
	return nil
}

// MissingParts reports how many more shares are needed before Combine can
// succeed.
func (e *Engine) MissingParts() int {
	n := e.threshold - len(e.collected)
	if n < 0 {
		return 0
	}
	return n
}

// Combine reconstructs the polynomial's constant term — the secret — via
// Lagrange interpolation at X=0 from the queued shares.
func (e *Engine) Combine() error {
	if e.MissingParts() > 0 {
		return fmt.Errorf("%w: have %d shares, need %d", apperr.ErrInsufficientShares, len(e.collected), e.threshold)
	}
	xs := make([]uint64, 0, e.threshold)
	for x := range e.collected {
		xs = append(xs, x)
		if len(xs) == e.threshold {
			break
		}
	}

	acc := field.NewScalar()
	for _, xi := range xs {
		yi := e.collected[xi]

		num := field.NewScalar()
		num.SetUint64(1)
		den := field.NewScalar()
		den.SetUint64(1)
		xiScalar := field.NewScalar()
		xiScalar.SetUint64(xi)

		for _, xj := range xs {
			if xj == xi {
				continue
			}
			xjScalar := field.NewScalar()
			xjScalar.SetUint64(xj)

			// num *= (0 - xj) = -xj
			negXj := field.NewScalar()
			negXj.Neg(xjScalar)
			num.Mul(num, negXj)

			// den *= (xi - xj)
			diff := field.NewScalar()
			diff.Sub(xiScalar, xjScalar)
			den.Mul(den, diff)
		}

		denInv := field.NewScalar()
		denInv.Inv(den)

		lagrange := field.NewScalar()
		lagrange.Mul(num, denInv)

		term := field.NewScalar()
		term.Mul(yi, lagrange)

		acc.Add(acc, term)
	}
	e.secret = acc
	return nil
}

// Ready reports whether the engine holds a usable polynomial (coefficients
// drawn via SetSecret), as opposed to only a recovered constant term from
// Combine. New shares can only be issued once Ready.
func (e *Engine) Ready() bool {
	return e.coeffs != nil
}

// Solved reports whether the secret is already known, either because it
// was installed via SetSecret or because Combine already succeeded.
func (e *Engine) Solved() bool {
	return e.secret != nil
}

// GetSecret copies out the recovered (or originally installed) secret.
func (e *Engine) GetSecret() ([32]byte, error) {
	if e.secret == nil {
		return [32]byte{}, fmt.Errorf("%w: no secret available", apperr.ErrCryptoFail)
	}
	b, err := e.secret.MarshalBinary()
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", apperr.ErrCryptoFail, err)
	}
	var out [32]byte
	copy(out[32-len(b):], b)
	return out, nil
}
