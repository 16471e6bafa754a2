package database

// Status is the database's unlock level, which only increases during a
// session (Close resets it for a fresh load).
type Status int

const (
	// StatusInit is the state before any Init/Load call.
	StatusInit Status = iota
	// StatusNone is a loaded file on which no holder has authenticated yet.
	StatusNone
	// StatusFirst is either a freshly created database before its first
	// holder exists, or a loaded file with at least one holder chunk
	// opened but not yet enough shares to decrypt the common section.
	StatusFirst
	// StatusCommon is reached once enough common-tier shares have been
	// combined to decrypt the common section.
	StatusCommon
	// StatusSecret is reached once enough secret-tier shares have been
	// combined to decrypt secret field values.
	StatusSecret
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "INIT"
	case StatusNone:
		return "NONE"
	case StatusFirst:
		return "FIRST"
	case StatusCommon:
		return "COMMON"
	case StatusSecret:
		return "SECRET"
	default:
		return "UNKNOWN"
	}
}

// ChangeFlag tracks which categories of in-memory state differ from what
// was last persisted; callers read them through IsChanged, and a
// successful Save clears them all.
type ChangeFlag int

const (
	ChangedPassword ChangeFlag = 1 << iota
	ChangedSecret
	ChangedHolder
	ChangedNew
	ChangedOther
)
