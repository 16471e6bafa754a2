package database

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"mpm/internal/apperr"
	"mpm/internal/chunk"
	"mpm/internal/commonsection"
	"mpm/internal/crypto"
	"mpm/internal/holder"
	"mpm/internal/shamir"
)

// Try authenticates one holder against the loaded file and advances the
// unlock level as far as the newly gathered shares allow.
//
// Before the common section is open, identities are not yet known in the
// clear, so Try performs a blind scan: every 512-byte-aligned block is a
// candidate chunk, and a match is recognised by recomputing the blind-
// lookup hash from the supplied nickname/password and the candidate
// block's own salt. Once the common section is open, holders are known by
// nickname from its JSON listing, and Try seeks directly to that holder's
// recorded file position.
func (d *Database) Try(nickname, password string) error {
	if err := d.guard.Check(nickname); err != nil {
		return err
	}

	var err error
	switch d.Status {
	case StatusInit:
		return apperr.ErrNoDatabase
	case StatusNone, StatusFirst:
		err = d.tryBlind(nickname, password)
	case StatusCommon, StatusSecret:
		err = d.tryKnown(nickname, password)
	default:
		return fmt.Errorf("%w: try is not valid in state %s", apperr.ErrWrongLevel, d.Status)
	}

	if err != nil {
		d.guard.RecordFailure(nickname)
		return err
	}
	d.guard.RecordSuccess(nickname)
	return nil
}

func (d *Database) tryBlind(nickname, password string) error {
	blocks := d.chunkBlocks()
	for i := 0; i < blocks; i++ {
		off := i * chunk.Size
		block := d.raw[off : off+chunk.Size]

		var salt1 [32]byte
		copy(salt1[:], block[:32])
		candidateHash := crypto.Sha256IteratedMix1(nickname, salt1, password)

		var storedHash crypto.Key32
		copy(storedHash[:], block[32:64])
		if !candidateHash.Equal(storedHash) {
			continue
		}

		var salt2 [32]byte
		copy(salt2[:], block[64:96])
		key := crypto.Sha256IteratedMix1(nickname, salt2, password)

		buf := append([]byte(nil), block...)
		c, err := chunk.Open(d.cp, buf, key)
		if err != nil {
			return fmt.Errorf("%w: chunk matched hash but failed to decrypt: %v", apperr.ErrTryInconsistent, err)
		}

		h := holder.FromChunk(nickname, c, i)
		h.PKey = key
		if d.holderAlreadyOpen(h.ID) {
			return apperr.ErrTryAlreadyOpen
		}
		d.Holders = append(d.Holders, h)
		if err := d.acceptShares(c, h); err != nil {
			return err
		}
		d.log.WithFields(logrus.Fields{"nickname": nickname, "file_index": i}).Info("holder try succeeded (blind)")
		return nil
	}
	return apperr.ErrTryNotFound
}

func (d *Database) tryKnown(nickname, password string) error {
	h := d.findHolder(nickname)
	if h == nil {
		return apperr.ErrTryNotFound
	}
	if h.Status == holder.StatusOpen {
		return apperr.ErrTryAlreadyOpen
	}

	off := h.FileIndex * chunk.Size
	if off < 0 || off+chunk.Size > len(d.raw) {
		return fmt.Errorf("%w: holder %q file_index out of range", apperr.ErrTryInconsistent, nickname)
	}
	block := append([]byte(nil), d.raw[off:off+chunk.Size]...)

	var salt1, salt2 [32]byte
	copy(salt1[:], block[:32])
	copy(salt2[:], block[64:96])
	h.Salt1 = salt1
	h.Salt2 = salt2
	h.DeriveKeys(password)

	var storedHash crypto.Key32
	copy(storedHash[:], block[32:64])
	if !h.Hash.Equal(storedHash) {
		return apperr.ErrTryNotFound
	}

	c, err := chunk.Open(d.cp, block, h.PKey)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTryInconsistent, err)
	}
	if c.IDHolder != h.ID {
		return fmt.Errorf("%w: chunk holder id mismatch for %q", apperr.ErrTryInconsistent, nickname)
	}

	h.Parts = c.Parts
	h.XParts = c.XParts
	h.Status = holder.StatusOpen
	h.CommonNbParts = int(c.CommonNbParts)
	h.SecretNbParts = int(c.SecretNbParts)

	if err := d.acceptShares(c, h); err != nil {
		return err
	}
	d.log.WithField("nickname", nickname).Info("holder try succeeded (known)")
	return nil
}

func (d *Database) findHolder(nickname string) *holder.Holder {
	for _, h := range d.Holders {
		if h.Nickname == nickname {
			return h
		}
	}
	return nil
}

func (d *Database) holderAlreadyOpen(id uint16) bool {
	for _, h := range d.Holders {
		if h.ID == id && h.Status == holder.StatusOpen {
			return true
		}
	}
	return false
}

// acceptShares feeds one decrypted chunk's shares into both tiers' engines
// — they are independent of each other and of whether the common section
// has been opened yet, since both live directly in the holder chunk.
// Either engine that reaches its threshold is combined immediately, and
// reaching the common threshold additionally triggers decoding the common
// section JSON.
func (d *Database) acceptShares(c *chunk.Chunk, h *holder.Holder) error {
	if d.Status < StatusFirst {
		d.Status = StatusFirst
	}

	if d.commonEngine == nil {
		e, err := shamir.New(int(c.CommonThreshold), d.cp)
		if err != nil {
			return err
		}
		d.commonEngine = e
		d.CommonThreshold = int(c.CommonThreshold)
		d.CommonMagic = c.CommonMagic
	}
	if d.secretEngine == nil {
		e, err := shamir.New(int(c.SecretThreshold), d.cp)
		if err != nil {
			return err
		}
		d.secretEngine = e
		d.SecretThreshold = int(c.SecretThreshold)
	}

	if !d.commonEngine.Solved() {
		for _, s := range h.CommonShares() {
			if d.commonEngine.MissingParts() == 0 {
				break
			}
			if err := d.commonEngine.SetPart(s); err != nil {
				return err
			}
		}
		if d.commonEngine.MissingParts() == 0 {
			if err := d.commonEngine.Combine(); err != nil {
				return err
			}
			key, err := d.commonEngine.GetSecret()
			if err != nil {
				return err
			}
			d.CommonKey = key
			if err := d.openCommonSection(); err != nil {
				return err
			}
			if d.Status < StatusCommon {
				d.Status = StatusCommon
			}
		}
	}

	if !d.secretEngine.Solved() {
		for _, s := range h.SecretShares() {
			if d.secretEngine.MissingParts() == 0 {
				break
			}
			if err := d.secretEngine.SetPart(s); err != nil {
				return err
			}
		}
		if d.secretEngine.MissingParts() == 0 {
			if err := d.secretEngine.Combine(); err != nil {
				return err
			}
			key, err := d.secretEngine.GetSecret()
			if err != nil {
				return err
			}
			d.SecretKey = key
			d.Status = StatusSecret
		}
	}
	return nil
}

// openCommonSection locates the marker following the last holder chunk,
// decrypts it, and replaces d.Holders/RootFolder with the authoritative
// listing it carries, preserving the live state of any holder already
// opened this session.
// openCommonSection scans every 512-byte-aligned offset for the marker,
// not just full chunk-sized blocks: the common section's own length is
// almost never a multiple of 512, so the marker can start in what would
// otherwise look like a "partial" trailing block relative to chunkBlocks.
func (d *Database) openCommonSection() error {
	for off := 0; off+64 <= len(d.raw); off += chunk.Size {
		candidate, err := commonsection.UnmarshalMarker(d.raw[off : off+64])
		if err != nil {
			continue
		}
		if !candidate.Verify(d.CommonMagic) {
			continue
		}
		return d.decodeCommonSection(candidate, d.raw[off+64:])
	}
	return fmt.Errorf("%w: common marker not found", apperr.ErrIntegrityFail)
}

func (d *Database) decodeCommonSection(marker commonsection.Marker, ciphertext []byte) error {
	doc, err := commonsection.Open(d.cp, d.CommonKey, marker.IV(), ciphertext)
	if err != nil {
		return err
	}
	d.CommonThreshold = doc.CommonThreshold
	d.SecretThreshold = doc.SecretThreshold
	d.NextIDHolder = uint16(doc.NextIDHolder)

	opened := make(map[uint16]*holder.Holder)
	for _, h := range d.Holders {
		opened[h.ID] = h
	}

	merged := make([]*holder.Holder, 0, len(doc.Holders))
	for _, hd := range doc.Holders {
		if existing, ok := opened[hd.IDHolder]; ok {
			existing.Email = hd.Email
			merged = append(merged, existing)
			continue
		}
		merged = append(merged, &holder.Holder{
			Nickname:      hd.Nickname,
			Email:         hd.Email,
			ID:            hd.IDHolder,
			Status:        holder.StatusClosed,
			CommonNbParts: hd.CommonNbParts,
			SecretNbParts: hd.SecretNbParts,
			FileIndex:     hd.FileIndex,
		})
	}
	d.Holders = merged

	root, err := commonsection.DTOToFolder(doc.RootFolder)
	if err != nil {
		return err
	}
	d.RootFolder = root
	d.CurrentFolder = root
	return nil
}
