// Package holder implements the in-memory Holder record: identity,
// password-derived keys, the share slots assigned to it, and the
// transitions between chunk_status values as a session proceeds.
package holder

import (
	"fmt"

	"mpm/internal/apperr"
	"mpm/internal/chunk"
	"mpm/internal/crypto"
	"mpm/internal/shamir"
)

// Status mirrors the chunk's lifecycle within one session.
type Status int

const (
	// StatusNone is a holder created in memory but not yet written to disk.
	StatusNone Status = iota
	// StatusClosed is a holder discovered in the common section but not
	// yet authenticated this session.
	StatusClosed
	// StatusOpen is a holder that has successfully completed Try.
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusClosed:
		return "CLOSED"
	case StatusOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// MaxParts is the number of share slots available per chunk.
const MaxParts = 8

// Holder is one key-holder's record.
type Holder struct {
	Nickname string
	Email    string
	ID       uint16
	Status   Status

	Salt1 [32]byte
	Salt2 [32]byte
	Hash  crypto.Key32 // iterKDF(nickname, salt1, password)
	PKey  crypto.Key32 // iterKDF(nickname, salt2, password) — never persisted

	CommonNbParts int
	SecretNbParts int
	Parts         [MaxParts][32]byte
	XParts        [MaxParts]uint64

	FileIndex int
}

// DeriveKeys recomputes Hash and PKey from a candidate password. Called at
// creation, at password change, and once per Try attempt against a
// candidate chunk's stored salts.
func (h *Holder) DeriveKeys(password string) {
	h.Hash = crypto.Sha256IteratedMix1(h.Nickname, h.Salt1, password)
	h.PKey = crypto.Sha256IteratedMix1(h.Nickname, h.Salt2, password)
}

// slotInUse reports whether slot i currently carries a live share: the
// low commonNbParts slots are common shares, the high secretNbParts slots
// are secret shares, and the two ranges must never overlap.
func (h *Holder) slotInUse(i int) bool {
	if i < h.CommonNbParts {
		return true
	}
	if i >= MaxParts-h.SecretNbParts {
		return true
	}
	return false
}

// ValidateSlotRanges checks the non-overlap invariant between the common
// and secret share ranges.
func (h *Holder) ValidateSlotRanges() error {
	if h.CommonNbParts+h.SecretNbParts > MaxParts {
		return fmt.Errorf("%w: holder %q requests %d+%d parts, only %d slots exist",
			apperr.ErrInvalidArg, h.Nickname, h.CommonNbParts, h.SecretNbParts, MaxParts)
	}
	return nil
}

// EmitParts fills every slot: live slots get a freshly issued share from
// the relevant Shamir engine (common for the low range, secret for the
// high range), and unused slots are re-randomised so an observer cannot
// tell used from unused by entropy alone.
func (h *Holder) EmitParts(cp *crypto.Provider, common, secret *shamir.Engine, randXTail func() uint64) error {
	if err := h.ValidateSlotRanges(); err != nil {
		return err
	}
	for i := 0; i < MaxParts; i++ {
		switch {
		case i < h.CommonNbParts:
			x := shamir.MakeX(h.ID, uint8(i), randXTail())
			s, err := common.GetPart(x)
			if err != nil {
				return err
			}
			h.Parts[i] = s.Y
			h.XParts[i] = s.X
		case i >= MaxParts-h.SecretNbParts:
			x := shamir.MakeX(h.ID, uint8(i), randXTail())
			s, err := secret.GetPart(x)
			if err != nil {
				return err
			}
			h.Parts[i] = s.Y
			h.XParts[i] = s.X
		default:
			if err := cp.RandomFill(h.Parts[i][:]); err != nil {
				return err
			}
			var xbuf [8]byte
			if err := cp.RandomFill(xbuf[:]); err != nil {
				return err
			}
			x := uint64(0)
			for _, b := range xbuf {
				x = x<<8 | uint64(b)
			}
			if x == 0 {
				x = 1
			}
			h.XParts[i] = x
		}
	}
	return nil
}

// CommonShares returns this holder's common-tier shares, slots 0..CommonNbParts-1.
func (h *Holder) CommonShares() []shamir.Share {
	out := make([]shamir.Share, 0, h.CommonNbParts)
	for i := 0; i < h.CommonNbParts; i++ {
		out = append(out, shamir.Share{X: h.XParts[i], Y: h.Parts[i]})
	}
	return out
}

// SecretShares returns this holder's secret-tier shares, the top SecretNbParts slots.
func (h *Holder) SecretShares() []shamir.Share {
	out := make([]shamir.Share, 0, h.SecretNbParts)
	for i := MaxParts - h.SecretNbParts; i < MaxParts; i++ {
		out = append(out, shamir.Share{X: h.XParts[i], Y: h.Parts[i]})
	}
	return out
}

// ToChunk renders this holder as a plaintext chunk ready for sealing, given
// the database-wide thresholds and magic.
func (h *Holder) ToChunk(cp *crypto.Provider, commonThreshold, secretThreshold uint16, commonMagic uint64) (*chunk.Chunk, error) {
	c := &chunk.Chunk{
		Salt1:           h.Salt1,
		Hash:            [32]byte(h.Hash),
		Salt2:           h.Salt2,
		Parts:           h.Parts,
		XParts:          h.XParts,
		CommonThreshold: commonThreshold,
		CommonNbParts:   uint16(h.CommonNbParts),
		SecretThreshold: secretThreshold,
		SecretNbParts:   uint16(h.SecretNbParts),
		CommonMagic:     commonMagic,
		IDHolder:        h.ID,
	}
	if err := cp.RandomFill(c.Padding[:]); err != nil {
		return nil, err
	}
	return c, nil
}

// FromChunk reconstructs share state from a decrypted chunk, typically
// right after a successful Try.
func FromChunk(nickname string, c *chunk.Chunk, fileIndex int) *Holder {
	return &Holder{
		Nickname:      nickname,
		ID:            c.IDHolder,
		Status:        StatusOpen,
		Salt1:         c.Salt1,
		Salt2:         c.Salt2,
		Hash:          crypto.Key32(c.Hash),
		CommonNbParts: int(c.CommonNbParts),
		SecretNbParts: int(c.SecretNbParts),
		Parts:         c.Parts,
		XParts:        c.XParts,
		FileIndex:     fileIndex,
	}
}
