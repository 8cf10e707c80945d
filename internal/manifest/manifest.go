package manifest

import (
	"bytes"
	"sort"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/textfile"
)

// Manifest lists the files contained in one archive.
type Manifest struct {
	Archive ArchiveName
	Entries []Entry
}

// Encode returns the text form of m: one "<digest> <path>\n" line per entry,
// in the order of m.Entries.
func (m *Manifest) Encode() []byte {
	var buf bytes.Buffer
	for _, e := range m.Entries {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Decode parses the text form of the manifest of archive. Empty lines are
// ignored, so a missing or doubled final newline is accepted.
func Decode(archive ArchiveName, data []byte) (*Manifest, error) {
	lines, err := textfile.Lines(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %v", archive.Manifest())
	}

	m := &Manifest{Archive: archive}
	for i, line := range lines {
		if line == "" {
			continue
		}

		e, err := ParseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%v:%d", archive.Manifest(), i+1)
		}
		m.Entries = append(m.Entries, e)
	}

	return m, nil
}


// SortManifests orders manifests by archive creation time, oldest first.
func SortManifests(manifests []*Manifest) {
	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].Archive.Less(manifests[j].Archive)
	})
}

// KnownInventory returns the union of all manifests. If a path is listed in
// several manifests, the entry of the newest archive is kept.
func KnownInventory(manifests []*Manifest) Inventory {
	sorted := append([]*Manifest(nil), manifests...)
	SortManifests(sorted)

	inv := make(Inventory)
	for _, m := range sorted {
		for _, e := range m.Entries {
			inv.Add(e)
		}
	}
	return inv
}
