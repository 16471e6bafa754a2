package database

import (
	"fmt"

	"mpm/internal/apperr"
	"mpm/internal/holder"
	"mpm/internal/shamir"
)

// randXTail draws the random high bits used by shamir.MakeX when issuing
// a fresh share.
func (d *Database) randXTail() uint64 {
	var buf [8]byte
	_ = d.cp.RandomFill(buf[:]) // RandomFill only fails on a broken CSPRNG; treated as fatal elsewhere
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// NewHolder creates a holder record with the given share allocation. It
// requires status SECRET, except for the very first holder created right
// after CreateNew (status FIRST). That holder receives exactly the parts
// requested, like any other, and creating it promotes the database to
// SECRET; handing it the full thresholds lets one person unlock alone.
func (d *Database) NewHolder(nickname, email, password string, commonParts, secretParts int) (*holder.Holder, error) {
	if nickname == "" {
		return nil, fmt.Errorf("%w: nickname must not be empty", apperr.ErrInvalidArg)
	}
	if d.findHolder(nickname) != nil {
		return nil, fmt.Errorf("%w: nickname %q already exists", apperr.ErrInvalidArg, nickname)
	}

	isFirst := d.Status == StatusFirst && len(d.Holders) == 0
	if !isFirst {
		if err := d.RequireStatusAtLeast(StatusSecret); err != nil {
			return nil, err
		}
	}

	h := &holder.Holder{
		Nickname:      nickname,
		Email:         email,
		ID:            d.NextIDHolder,
		Status:        holder.StatusNone,
		CommonNbParts: commonParts,
		SecretNbParts: secretParts,
	}
	if err := h.ValidateSlotRanges(); err != nil {
		return nil, err
	}
	if err := d.cp.RandomFill(h.Salt1[:]); err != nil {
		return nil, err
	}
	if err := d.cp.RandomFill(h.Salt2[:]); err != nil {
		return nil, err
	}
	h.DeriveKeys(password)
	d.NextIDHolder++

	if err := d.ensureEnginesReady(); err != nil {
		return nil, err
	}
	if err := h.EmitParts(d.cp, d.commonEngine, d.secretEngine, d.randXTail); err != nil {
		return nil, err
	}

	d.Holders = append(d.Holders, h)
	d.markChanged(ChangedHolder)
	d.reemitAll = true

	if isFirst {
		h.Status = holder.StatusOpen
		d.Status = StatusSecret
	}
	d.log.WithField("nickname", nickname).Info("holder created")
	return h, nil
}

// ensureEnginesReady makes sure both Shamir engines hold a usable
// polynomial (coefficients, not just a recovered constant term) before
// issuing new shares.
func (d *Database) ensureEnginesReady() error {
	if d.commonEngine == nil {
		e, err := shamir.New(d.CommonThreshold, d.cp)
		if err != nil {
			return err
		}
		d.commonEngine = e
	}
	if !d.commonEngine.Ready() {
		if err := d.commonEngine.SetSecret(d.CommonKey); err != nil {
			return err
		}
	}
	if d.secretEngine == nil {
		e, err := shamir.New(d.SecretThreshold, d.cp)
		if err != nil {
			return err
		}
		d.secretEngine = e
	}
	if !d.secretEngine.Ready() {
		if err := d.secretEngine.SetSecret(d.SecretKey); err != nil {
			return err
		}
	}
	return nil
}

// DeleteHolder removes a holder. The §4.8.3 check is re-run as though the
// holder were already gone before any state is mutated, so a delete that
// would leave either tier under-provisioned is rejected outright.
func (d *Database) DeleteHolder(nickname string) error {
	if err := d.RequireStatusAtLeast(StatusSecret); err != nil {
		return err
	}
	target := d.findHolder(nickname)
	if target == nil {
		return fmt.Errorf("%w: no such holder %q", apperr.ErrInvalidArg, nickname)
	}

	remaining := make([]*holder.Holder, 0, len(d.Holders)-1)
	for _, h := range d.Holders {
		if h != target {
			remaining = append(remaining, h)
		}
	}
	if err := checkDistribution(remaining, d.CommonThreshold, d.SecretThreshold); err != nil {
		return err
	}

	d.Holders = remaining
	d.markChanged(ChangedHolder)
	d.reemitAll = true

	// Force fresh coefficients so the removed holder's already-known
	// shares cannot contribute to a future reconstruction.
	if err := d.commonEngine.SetSecret(d.CommonKey); err != nil {
		return err
	}
	if err := d.secretEngine.SetSecret(d.SecretKey); err != nil {
		return err
	}
	d.log.WithField("nickname", nickname).Info("holder deleted")
	return nil
}

// EditHolder changes a holder's password, or its common/secret part
// counts. A password change only re-derives Hash/PKey; changing part
// counts re-emits that holder's slots immediately, from the existing
// polynomial when the engine holds one (no recoef) and from freshly drawn
// coefficients otherwise. Any edit marks every holder for re-emission at
// the next Save.
func (d *Database) EditHolder(nickname string, password *string, commonParts, secretParts *int) error {
	if err := d.RequireStatusAtLeast(StatusSecret); err != nil {
		return err
	}
	h := d.findHolder(nickname)
	if h == nil {
		return fmt.Errorf("%w: no such holder %q", apperr.ErrInvalidArg, nickname)
	}

	if password != nil {
		if err := d.cp.RandomFill(h.Salt1[:]); err != nil {
			return err
		}
		if err := d.cp.RandomFill(h.Salt2[:]); err != nil {
			return err
		}
		h.DeriveKeys(*password)
		d.markChanged(ChangedPassword)
	}

	if commonParts != nil {
		h.CommonNbParts = *commonParts
	}
	if secretParts != nil {
		h.SecretNbParts = *secretParts
	}
	if commonParts != nil || secretParts != nil {
		if err := h.ValidateSlotRanges(); err != nil {
			return err
		}
		if err := d.ensureEnginesReady(); err != nil {
			return err
		}
		if err := h.EmitParts(d.cp, d.commonEngine, d.secretEngine, d.randXTail); err != nil {
			return err
		}
		d.markChanged(ChangedHolder)
	}
	d.reemitAll = true
	d.log.WithField("nickname", nickname).Info("holder edited")
	return nil
}
