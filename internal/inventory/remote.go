package inventory

import (
	"context"
	"path"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"
)

// LoadManifests fetches and parses every manifest in the remote store,
// oldest first. Objects matching the manifest pattern whose name carries no
// archive timestamp are reported through warnf and skipped.
func LoadManifests(ctx context.Context, be backend.Backend, warnf func(msg string, args ...interface{})) ([]*manifest.Manifest, error) {
	var names []manifest.ArchiveName
	err := be.List(ctx, func(fi backend.FileInfo) error {
		if ok, _ := path.Match(manifest.ManifestPattern, fi.Name); !ok {
			return nil
		}

		name, err := manifest.ParseArchiveName(fi.Name)
		if err != nil {
			if warnf != nil {
				warnf("ignoring %v: %v\n", fi.Name, err)
			}
			return nil
		}

		names = append(names, name)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.WithKind(errors.RemoteUnavailable, errors.Wrap(err, "list manifests"))
	}

	var (
		manifests []*manifest.Manifest
		buf       []byte
	)
	for _, name := range names {
		buf, err = backend.LoadAll(ctx, buf, be, name.Manifest())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, errors.WithKind(errors.RemoteUnavailable, errors.Wrapf(err, "load %v", name.Manifest()))
		}

		m, err := manifest.Decode(name, buf)
		if err != nil {
			return nil, err
		}
		debug.Log("manifest %v has %d entries", name, len(m.Entries))
		manifests = append(manifests, m)
	}

	manifest.SortManifests(manifests)
	return manifests, nil
}

// BuildRemoteKnown returns the union of manifests. A path listed in several
// manifests keeps the digest of the newest one.
func BuildRemoteKnown(manifests []*manifest.Manifest) manifest.Inventory {
	return manifest.KnownInventory(manifests)
}

// LoadRemoteKnown loads all manifests of be and returns their union.
func LoadRemoteKnown(ctx context.Context, be backend.Backend, warnf func(msg string, args ...interface{})) (manifest.Inventory, error) {
	manifests, err := LoadManifests(ctx, be, warnf)
	if err != nil {
		return nil, err
	}
	return BuildRemoteKnown(manifests), nil
}
