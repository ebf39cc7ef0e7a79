package artifacts

import (
	"fmt"
)

// Entry binds one identifier to its artifact names.
type Entry struct {
	ID           string
	Trigger      string
	Output       string
	Intermediate string
}

// Manifest is the immutable identifier-to-artifacts mapping for one run.
// It is built once from the identifier list and passed to every stage.
type Manifest struct {
	entries []Entry
	index   map[string]int
}

// NewManifest builds a manifest for ids in order. The ids must already be
// unique; apply a duplicate policy first.
func NewManifest(namer *Namer, ids []string) (*Manifest, error) {
	if namer == nil {
		return nil, fmt.Errorf("namer is required")
	}

	m := &Manifest{
		entries: make([]Entry, 0, len(ids)),
		index:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		if _, dup := m.index[id]; dup {
			return nil, fmt.Errorf("identifier %q appears more than once", id)
		}
		m.index[id] = len(m.entries)
		m.entries = append(m.entries, Entry{
			ID:           id,
			Trigger:      namer.TriggerName(id),
			Output:       namer.OutputName(id),
			Intermediate: namer.IntermediateName(id),
		})
	}
	return m, nil
}

// Len returns the number of identifiers.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in list order.
func (m *Manifest) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
