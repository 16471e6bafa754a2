// Package database implements the top-level engine: the unlock-level
// state machine, the load/try/save protocol, holder administration, and
// the §4.8.3 consistency checks that guard every save.
package database

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"mpm/internal/apperr"
	"mpm/internal/chunk"
	"mpm/internal/crypto"
	"mpm/internal/holder"
	"mpm/internal/lockout"
	"mpm/internal/secrettree"
	"mpm/internal/shamir"
)

// Database is the root aggregate described by the data model: file
// identity, unlock level, the two threshold engines, the holder list and
// the secret tree.
type Database struct {
	Filename string
	Status   Status

	CommonThreshold int
	SecretThreshold int
	NextIDHolder    uint16
	CommonMagic     uint64

	CommonKey crypto.Key32
	SecretKey crypto.Key32

	Holders       []*holder.Holder
	RootFolder    *secrettree.Folder
	CurrentFolder *secrettree.Folder

	changed map[ChangeFlag]bool

	// reemitAll forces Save to re-derive every holder's share slots from
	// the current polynomial, set whenever a holder is added, removed,
	// or edited since the last save.
	reemitAll bool

	raw []byte // the loaded file's bytes, nil for a never-saved database

	commonEngine *shamir.Engine
	secretEngine *shamir.Engine

	guard *lockout.Guard

	cp  *crypto.Provider
	log *logrus.Logger
}

// New builds a Database in the INIT state.
func New(cp *crypto.Provider, log *logrus.Logger) *Database {
	if log == nil {
		log = logrus.New()
	}
	return &Database{
		Status:       StatusInit,
		changed:      make(map[ChangeFlag]bool),
		guard:        lockout.New(lockout.DefaultPolicy),
		cp:           cp,
		log:          log,
		NextIDHolder: 1,
	}
}

func (d *Database) markChanged(f ChangeFlag) { d.changed[f] = true }

// IsChanged reports whether a given category of state differs from what
// was last persisted.
func (d *Database) IsChanged(f ChangeFlag) bool { return d.changed[f] }

// MarkSecretChanged flags the secret tree as dirty, for callers (tree
// navigation commands) that mutate RootFolder/CurrentFolder directly rather
// than through a Database method.
func (d *Database) MarkSecretChanged() { d.markChanged(ChangedOther) }

// CreateNew initialises a brand-new database: fresh common/secret keys,
// fresh thresholds, an empty secret tree, and the engines used to issue
// shares to holders as they are created. Status becomes FIRST; it is
// promoted to SECRET directly once the first holder is created, since
// both keys are already in memory.
func (d *Database) CreateNew(filename string, commonThreshold, secretThreshold int) error {
	if commonThreshold < 2 || secretThreshold < 2 {
		return fmt.Errorf("%w: thresholds must be at least 2", apperr.ErrInvalidArg)
	}
	d.Filename = filename
	d.CommonThreshold = commonThreshold
	d.SecretThreshold = secretThreshold

	var magicBuf [8]byte
	if err := d.cp.RandomFill(magicBuf[:]); err != nil {
		return err
	}
	d.CommonMagic = beUint64(magicBuf)

	if err := d.cp.RandomFill(d.CommonKey[:]); err != nil {
		return err
	}
	if err := d.cp.RandomFill(d.SecretKey[:]); err != nil {
		return err
	}

	ce, err := shamir.New(commonThreshold, d.cp)
	if err != nil {
		return err
	}
	if err := ce.SetSecret(d.CommonKey); err != nil {
		return err
	}
	se, err := shamir.New(secretThreshold, d.cp)
	if err != nil {
		return err
	}
	if err := se.SetSecret(d.SecretKey); err != nil {
		return err
	}
	d.commonEngine = ce
	d.secretEngine = se

	d.RootFolder = secrettree.NewRoot("root")
	d.CurrentFolder = d.RootFolder
	d.Status = StatusFirst
	d.markChanged(ChangedNew)
	d.log.WithFields(logrus.Fields{
		"common_threshold": commonThreshold,
		"secret_threshold": secretThreshold,
	}).Info("database created")
	return nil
}

func beUint64(b [8]byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// LoadFile reads filename from disk and attaches it for Try/Save. Status
// becomes NONE; no holder is authenticated yet.
func (d *Database) LoadFile(filename string) error {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIoError, err)
	}
	return d.Load(filename, raw)
}

// Load attaches an in-memory file image, used directly by tests and by
// LoadFile.
func (d *Database) Load(filename string, raw []byte) error {
	d.Filename = filename
	d.raw = raw
	d.Status = StatusNone
	d.Holders = nil
	d.RootFolder = nil
	d.CurrentFolder = nil
	d.log.WithField("file", filename).Info("database loaded")
	return nil
}

// RequireStatusAtLeast returns ErrWrongLevel if the database has not yet
// reached min.
func (d *Database) RequireStatusAtLeast(min Status) error {
	if d.Status == StatusInit {
		return apperr.ErrNoDatabase
	}
	if d.Status < min {
		return fmt.Errorf("%w: have %s, need at least %s", apperr.ErrWrongLevel, d.Status, min)
	}
	return nil
}

// Close zeroises all key material held by the database, for end of session.
func (d *Database) Close() {
	d.CommonKey.Zero()
	d.SecretKey.Zero()
	for _, h := range d.Holders {
		h.Hash.Zero()
		h.PKey.Zero()
	}
	d.Status = StatusInit
}

// chunkBlocks returns how many 512-byte-aligned blocks the loaded file has.
func (d *Database) chunkBlocks() int {
	return len(d.raw) / chunk.Size
}
