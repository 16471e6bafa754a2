package database

import (
	"fmt"

	"mpm/internal/apperr"
	"mpm/internal/holder"
)

// checkDistribution implements §4.8.3: the sum of parts distributed at
// each tier, across every holder regardless of open/closed status (every
// holder's chunk physically carries its shares whether or not that holder
// has authenticated this session), must meet that tier's threshold.
func checkDistribution(holders []*holder.Holder, commonThreshold, secretThreshold int) error {
	var common, secret int
	for _, h := range holders {
		common += h.CommonNbParts
		secret += h.SecretNbParts
	}
	if common < commonThreshold {
		return fmt.Errorf("%w: only %d common shares distributed, need %d", apperr.ErrInsufficientShares, common, commonThreshold)
	}
	if secret < secretThreshold {
		return fmt.Errorf("%w: only %d secret shares distributed, need %d", apperr.ErrInsufficientShares, secret, secretThreshold)
	}
	return nil
}

// CheckResult is a read-only consistency report.
type CheckResult struct {
	CommonDistributed int
	SecretDistributed int
	CommonThreshold   int
	SecretThreshold   int
	SlotConflicts     []string
}

// OK reports whether the database passes every check.
func (r CheckResult) OK() bool {
	return r.CommonDistributed >= r.CommonThreshold &&
		r.SecretDistributed >= r.SecretThreshold &&
		len(r.SlotConflicts) == 0
}

// Check runs the §4.8.3 checks without mutating any state: distributed
// share counts against both thresholds, and that no two holders collide
// on file_index.
func (d *Database) Check() (CheckResult, error) {
	if err := d.RequireStatusAtLeast(StatusCommon); err != nil {
		return CheckResult{}, err
	}
	var r CheckResult
	r.CommonThreshold = d.CommonThreshold
	r.SecretThreshold = d.SecretThreshold

	seenIndex := make(map[int]string)
	for _, h := range d.Holders {
		r.CommonDistributed += h.CommonNbParts
		r.SecretDistributed += h.SecretNbParts
		if h.Status == holder.StatusNone {
			continue // not yet written, no file_index collision possible
		}
		if other, ok := seenIndex[h.FileIndex]; ok {
			r.SlotConflicts = append(r.SlotConflicts,
				fmt.Sprintf("holders %q and %q both claim file_index %d", other, h.Nickname, h.FileIndex))
		}
		seenIndex[h.FileIndex] = h.Nickname
	}
	return r, nil
}
