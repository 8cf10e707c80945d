package manifest

import "sort"

// ArchivePlan lists the paths that have to be extracted from one archive
// because it holds their latest version.
type ArchivePlan struct {
	Archive ArchiveName
	Paths   []string
}

// Plan is the result of Resolve, sorted by archive name.
type Plan []ArchivePlan

// Total returns the number of paths of all archives.
func (p Plan) Total() int {
	n := 0
	for _, ap := range p {
		n += len(ap.Paths)
	}
	return n
}

type taggedEntry struct {
	Entry
	archive ArchiveName
}

// Resolve merges manifests: for every path the entry of the most recently
// created archive wins. The surviving entries are grouped by archive. Every
// archive of manifests is part of the plan, those that lost all of their
// entries to newer archives have no paths.
func Resolve(manifests []*Manifest) Plan {
	var all []taggedEntry
	archives := make(map[string]ArchiveName)
	for _, m := range manifests {
		archives[m.Archive.String()] = m.Archive
		for _, e := range m.Entries {
			all = append(all, taggedEntry{Entry: e, archive: m.Archive})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Path != all[j].Path {
			return all[i].Path < all[j].Path
		}
		return all[i].archive.Less(all[j].archive)
	})

	// the last entry of each run of equal paths is the latest version
	var winners []taggedEntry
	for i, e := range all {
		if i+1 < len(all) && all[i+1].Path == e.Path {
			continue
		}
		winners = append(winners, e)
	}

	sort.SliceStable(winners, func(i, j int) bool {
		if winners[i].archive.String() != winners[j].archive.String() {
			return winners[i].archive.String() < winners[j].archive.String()
		}
		return winners[i].Path < winners[j].Path
	})

	byArchive := make(map[string][]string, len(archives))
	for _, e := range winners {
		name := e.archive.String()
		byArchive[name] = append(byArchive[name], e.Path)
	}

	plan := make(Plan, 0, len(archives))
	for name, archive := range archives {
		plan = append(plan, ArchivePlan{Archive: archive, Paths: byArchive[name]})
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].Archive.String() < plan[j].Archive.String()
	})

	return plan
}
