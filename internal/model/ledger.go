package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryEntry is one immutable entry in the memory ledger.
type MemoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
}

// MemoryLedger is the compressed-layer entity: an append-mostly sequence of
// memory entries owned by one persona.
type MemoryLedger struct {
	Owner   string        `json:"owner"`
	Entries []MemoryEntry `json:"entries"`
}

// NewMemoryLedger returns an empty ledger for the named persona.
func NewMemoryLedger(owner string) *MemoryLedger {
	return &MemoryLedger{Owner: owner}
}

// Append adds a new entry with a fresh ULID and the current time, and
// returns it. Existing entries are never touched.
func (l *MemoryLedger) Append(category, summary string) MemoryEntry {
	e := MemoryEntry{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Category:  category,
		Summary:   summary,
	}
	l.Entries = append(l.Entries, e)
	return e
}

// Recent returns up to n entries from the end of the ledger, newest last.
func (l *MemoryLedger) Recent(n int) []MemoryEntry {
	if n <= 0 || len(l.Entries) == 0 {
		return nil
	}
	if n > len(l.Entries) {
		n = len(l.Entries)
	}
	return l.Entries[len(l.Entries)-n:]
}

// ByCategory returns entries whose category matches, in ledger order.
func (l *MemoryLedger) ByCategory(category string) []MemoryEntry {
	var out []MemoryEntry
	for _, e := range l.Entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}
