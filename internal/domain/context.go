package domain

import (
	"strings"
	"time"
)

// SessionContext is the active authentication context. AccountID and
// SubjectID are optional: a guardian account may look at several students.
type SessionContext struct {
	AuthenticationContextID string
	AccountID               string
	SubjectID               string
}

func (c SessionContext) IsZero() bool {
	return c == SessionContext{}
}

// ID is the stable identifier used to key persisted state.
func (c SessionContext) ID() string {
	parts := []string{c.AuthenticationContextID, c.AccountID, c.SubjectID}
	return strings.Join(parts, "/")
}

type ContextEntry struct {
	Context  SessionContext
	Label    string
	LastSeen time.Time
	Switches int
}

// ContextHistory lists the contexts seen by this process, most recent
// first. It survives context switches.
type ContextHistory struct {
	Entries []ContextEntry
}

// RememberContext moves ctx to the front of the history. Repeated entries
// for the same context collapse into one.
func RememberContext(h ContextHistory, ctx SessionContext, label string, now time.Time) ContextHistory {
	entry := ContextEntry{Context: ctx, Label: label, LastSeen: now, Switches: 1}

	entries := make([]ContextEntry, 0, len(h.Entries)+1)
	entries = append(entries, entry)
	for _, existing := range h.Entries {
		if existing.Context.ID() == ctx.ID() {
			entries[0].Switches += existing.Switches
			if label == "" {
				entries[0].Label = existing.Label
			}
			continue
		}
		entries = append(entries, existing)
	}

	return ContextHistory{Entries: entries}
}
