package manifest

import "sort"

// Inventory maps logical paths to content digests. Each path is present at
// most once.
type Inventory map[string]Digest

// NewInventory returns an inventory containing entries. Later entries
// overwrite earlier entries for the same path.
func NewInventory(entries ...Entry) Inventory {
	inv := make(Inventory, len(entries))
	for _, e := range entries {
		inv[e.Path] = e.Digest
	}
	return inv
}

// Add sets the digest for the entry's path.
func (inv Inventory) Add(e Entry) {
	inv[e.Path] = e.Digest
}

// Entries returns all entries sorted by path.
func (inv Inventory) Entries() []Entry {
	entries := make([]Entry, 0, len(inv))
	for p, d := range inv {
		entries = append(entries, Entry{Digest: d, Path: p})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}
