package manifest

// ChangeSet is the list of files that have to be archived, sorted by path.
type ChangeSet []Entry

// Diff returns the entries of local that are not part of known: files whose
// path is unknown and files whose digest differs from the known one. Paths
// only present in known are not reported.
func Diff(local, known Inventory) ChangeSet {
	var changes ChangeSet
	for p, d := range local {
		if kd, ok := known[p]; ok && kd == d {
			continue
		}
		changes = append(changes, Entry{Digest: d, Path: p})
	}

	sortEntries(changes)
	return changes
}

// Paths returns the paths of all changed files.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs))
	for _, e := range cs {
		paths = append(paths, e.Path)
	}
	return paths
}
