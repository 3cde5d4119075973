package ledger

import (
	"encoding/json"
	"sync"
)

// Ledger is the ordered, append-only list of entries owned by one session.
// The zero value is an empty ledger ready to use.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

func New(entries ...Entry) *Ledger {
	l := &Ledger{}
	l.Replace(entries)
	return l
}

func (l *Ledger) Append(entry Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Snapshot returns a copy of the entries in insertion order.
func (l *Ledger) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Replace swaps the contents for a copy of entries.
func (l *Ledger) Replace(entries []Entry) {
	next := make([]Entry, len(entries))
	copy(next, entries)

	l.mu.Lock()
	l.entries = next
	l.mu.Unlock()
}

func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Snapshot())
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.Replace(entries)
	return nil
}
