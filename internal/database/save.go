package database

import (
	"bytes"
	"fmt"
	"os"

	"mpm/internal/apperr"
	"mpm/internal/chunk"
	"mpm/internal/commonsection"
	"mpm/internal/holder"
)

// Save persists the current in-memory state to filename (or the
// database's own Filename if empty). It refuses outright if either tier's
// distributed share count would fall below its threshold; otherwise every
// holder chunk is re-emitted in order, followed by the common marker and
// its encrypted JSON payload.
func (d *Database) Save(filename string) error {
	if err := d.RequireStatusAtLeast(StatusCommon); err != nil {
		return err
	}
	if err := checkDistribution(d.Holders, d.CommonThreshold, d.SecretThreshold); err != nil {
		return err
	}
	if filename == "" {
		filename = d.Filename
	}
	if filename == "" {
		return fmt.Errorf("%w: no filename given", apperr.ErrInvalidArg)
	}

	if d.reemitAll {
		if err := d.ensureEnginesReady(); err != nil {
			return err
		}
		for _, h := range d.Holders {
			if err := h.EmitParts(d.cp, d.commonEngine, d.secretEngine, d.randXTail); err != nil {
				return err
			}
		}
	}

	var buf bytes.Buffer
	for i, h := range d.Holders {
		h.FileIndex = i
		c, err := h.ToChunk(d.cp, uint16(d.CommonThreshold), uint16(d.SecretThreshold), d.CommonMagic)
		if err != nil {
			return err
		}
		block := chunk.Marshal(c)
		if err := chunk.Seal(d.cp, block, h.PKey); err != nil {
			return err
		}
		buf.Write(block)
	}

	marker, err := commonsection.BuildMarker(d.cp, d.CommonMagic)
	if err != nil {
		return err
	}
	doc := commonsection.Document{
		CommonThreshold: d.CommonThreshold,
		SecretThreshold: d.SecretThreshold,
		NextIDHolder:    int(d.NextIDHolder),
		RootFolder:      commonsection.FolderToDTO(d.RootFolder),
	}
	for _, h := range d.Holders {
		doc.Holders = append(doc.Holders, commonsection.HolderDTO{
			Nickname:      h.Nickname,
			IDHolder:      h.ID,
			CommonNbParts: h.CommonNbParts,
			SecretNbParts: h.SecretNbParts,
			FileIndex:     h.FileIndex,
			Email:         h.Email,
		})
	}

	ciphertext, err := commonsection.Seal(d.cp, d.CommonKey, marker.IV(), doc)
	if err != nil {
		return err
	}
	buf.Write(commonsection.MarshalMarker(marker))
	buf.Write(ciphertext)

	if err := os.WriteFile(filename, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIoError, err)
	}

	d.Filename = filename
	d.raw = buf.Bytes()
	d.reemitAll = false
	d.changed = make(map[ChangeFlag]bool)
	for _, h := range d.Holders {
		if h.Status == holder.StatusNone {
			h.Status = holder.StatusClosed
		}
	}
	d.log.WithField("file", filename).Info("database saved")
	return nil
}
