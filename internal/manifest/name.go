package manifest

import (
	"strings"
	"time"

	"github.com/asmfreak/arensync/internal/errors"
)

const (
	namePrefix = "archive"
	nameLayout = "20060102_150405"

	// BundleExt is the extension of the compressed bundle.
	BundleExt = ".tar.gz"
	// ManifestExt is appended to the bundle name to form the manifest name.
	ManifestExt = ".lst"
	// ChecksumExt is appended to the payload name to form the checksum name.
	ChecksumExt = ".sum"
)

// ManifestPattern matches the names of manifest objects in the remote store.
const ManifestPattern = "*" + ManifestExt

// ArchiveName identifies one published archive. Its string form embeds the
// creation time at second resolution (archive20170102_150405.tar.gz), so
// names sort in the order the archives were created.
type ArchiveName struct {
	base      string
	createdAt time.Time
}

// NewArchiveName returns the name of an archive created at t. The timestamp
// is written in UTC.
func NewArchiveName(t time.Time) ArchiveName {
	t = t.UTC().Truncate(time.Second)
	return ArchiveName{
		base:      namePrefix + t.Format(nameLayout) + BundleExt,
		createdAt: t,
	}
}

// ParseArchiveName extracts the archive name from the name of the bundle or
// of any of its sibling objects (manifest, payload, checksum).
func ParseArchiveName(name string) (ArchiveName, error) {
	if !strings.HasPrefix(name, namePrefix) || len(name) < len(namePrefix)+len(nameLayout) {
		return ArchiveName{}, errors.Errorf("invalid archive name %q", name)
	}

	stamp := name[len(namePrefix) : len(namePrefix)+len(nameLayout)]
	rest := name[len(namePrefix)+len(nameLayout):]
	if !strings.HasPrefix(rest, BundleExt) {
		return ArchiveName{}, errors.Errorf("invalid archive name %q: missing %v", name, BundleExt)
	}

	t, err := time.ParseInLocation(nameLayout, stamp, time.UTC)
	if err != nil {
		return ArchiveName{}, errors.Wrapf(err, "invalid archive name %q", name)
	}

	return ArchiveName{base: namePrefix + stamp + BundleExt, createdAt: t}, nil
}

// String returns the name of the compressed bundle.
func (n ArchiveName) String() string { return n.base }

// IsZero reports whether n is the zero value.
func (n ArchiveName) IsZero() bool { return n.base == "" }

// CreatedAt returns the creation time embedded in the name.
func (n ArchiveName) CreatedAt() time.Time { return n.createdAt }

// Manifest returns the name of the manifest object.
func (n ArchiveName) Manifest() string { return n.base + ManifestExt }

// Payload returns the name of the encrypted bundle for the encryption
// extension ext, e.g. ".gpg".
func (n ArchiveName) Payload(ext string) string { return n.base + ext }

// Checksum returns the name of the checksum of the encrypted bundle.
func (n ArchiveName) Checksum(ext string) string { return n.Payload(ext) + ChecksumExt }

// Next returns the name of an archive created one second after n.
func (n ArchiveName) Next() ArchiveName {
	return NewArchiveName(n.createdAt.Add(time.Second))
}

// Less orders archive names by creation time, then by name.
func (n ArchiveName) Less(other ArchiveName) bool {
	if !n.createdAt.Equal(other.createdAt) {
		return n.createdAt.Before(other.createdAt)
	}
	return n.base < other.base
}
