package archiver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/inventory"
	"github.com/asmfreak/arensync/internal/manifest"
	"github.com/asmfreak/arensync/internal/tools"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
)

// Options is used to configure the archiver.
type Options struct {
	// Workdir is the root of the files to back up.
	Workdir string
	// TempDir holds the private directory all artifacts are staged in.
	TempDir string
	// Ignore holds the ignore patterns applied to the local tree.
	Ignore []string
	// Workers sets how many files are hashed concurrently.
	Workers int
	// VerifyCommand is run in the remote directory as
	// "<VerifyCommand> -c <checksum file>" when the backend can run programs.
	VerifyCommand string
	// Now returns the current time, it defaults to time.Now.
	Now func() time.Time
}

// ApplyDefaults returns a copy of o with the default options set for all unset
// fields.
func (o Options) ApplyDefaults() Options {
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.VerifyCommand == "" {
		o.VerifyCommand = "sha256sum"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Archiver uploads changed files as a new archive.
type Archiver struct {
	Backend     backend.Backend
	Archiver    tools.Archiver
	Crypter     tools.Crypter
	Checksummer tools.Checksummer
	Options     Options

	// Changed is called for every file in the change set, in path order,
	// before the archive is created.
	Changed func(e manifest.Entry)
	// Step is called before each step of Publish with a short description.
	Step func(msg string)
	// Warnf reports problems that do not fail the run.
	Warnf func(msg string, args ...interface{})
}

// New initializes a new archiver.
func New(be backend.Backend, arch tools.Archiver, crypt tools.Crypter, sum tools.Checksummer, opts Options) *Archiver {
	return &Archiver{
		Backend:     be,
		Archiver:    arch,
		Crypter:     crypt,
		Checksummer: sum,
		Options:     opts.ApplyDefaults(),

		Changed: func(manifest.Entry) {},
		Step:    func(string) {},
		Warnf:   func(string, ...interface{}) {},
	}
}

// Summary describes the result of an upload run.
type Summary struct {
	// Unchanged is true if no file changed and nothing was uploaded.
	Unchanged bool
	Archive   manifest.ArchiveName
	Changes   manifest.ChangeSet
	// Uploaded lists the remote objects in upload order.
	Uploaded    []string
	PayloadSize int64
	// Verified is "remote" if the remote store checked the payload,
	// "download" if it was checked locally after loading it back.
	Verified string
	Duration time.Duration
}

func (s *Summary) String() string {
	if s.Unchanged {
		return "Files unchanged. Nothing new to upload."
	}
	return fmt.Sprintf("archive %v: %d files, %v payload, verified by %v in %v",
		s.Archive, len(s.Changes), humanize.Bytes(uint64(s.PayloadSize)), s.Verified,
		s.Duration.Round(time.Millisecond))
}

// Run compares the local tree with all remote manifests and publishes the
// changes. If nothing changed, the returned summary is marked Unchanged and
// no archive is created.
func (arch *Archiver) Run(ctx context.Context) (*Summary, error) {
	arch.Step("loading remote manifests")
	known, err := inventory.LoadRemoteKnown(ctx, arch.Backend, arch.Warnf)
	if err != nil {
		return nil, err
	}
	debug.Log("%d files known remotely", len(known))

	arch.Step("hashing local files")
	local, err := inventory.BuildLocal(ctx, inventory.Options{
		Root:    arch.Options.Workdir,
		Ignore:  arch.Options.Ignore,
		Workers: arch.Options.Workers,
		Warnf:   arch.Warnf,
	})
	if err != nil {
		return nil, err
	}

	changes := manifest.Diff(local, known)
	debug.Log("%d of %d local files changed", len(changes), len(local))
	if len(changes) == 0 {
		return &Summary{Unchanged: true}, nil
	}

	return arch.Publish(ctx, changes)
}

// archiveName returns a name for a new archive that is not used by any
// object of the remote store.
func (arch *Archiver) archiveName(ctx context.Context) (manifest.ArchiveName, error) {
	taken := make(map[string]struct{})
	err := arch.Backend.List(ctx, func(fi backend.FileInfo) error {
		if name, err := manifest.ParseArchiveName(fi.Name); err == nil {
			taken[name.String()] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return manifest.ArchiveName{}, errors.WithKind(errors.RemoteUnavailable, errors.Wrap(err, "list"))
	}

	name := manifest.NewArchiveName(arch.Options.Now())
	for {
		if _, ok := taken[name.String()]; !ok {
			return name, nil
		}
		debug.Log("archive name %v already used", name)
		name = name.Next()
	}
}

// Publish turns changes into a new archive and uploads it. Nothing is rolled
// back when a step fails after the manifest has been uploaded.
func (arch *Archiver) Publish(ctx context.Context, changes manifest.ChangeSet) (*Summary, error) {
	start := time.Now()
	if len(changes) == 0 {
		return nil, errors.New("empty change set")
	}

	name, err := arch.archiveName(ctx)
	if err != nil {
		return nil, err
	}
	debug.Log("publishing %d files as %v", len(changes), name)

	workdir, err := os.MkdirTemp(arch.Options.TempDir, "arensync-upload-")
	if err != nil {
		return nil, errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			arch.Warnf("unable to remove temporary files: %v\n", err)
		}
	}()

	for _, e := range changes {
		arch.Changed(e)
	}

	m := &manifest.Manifest{Archive: name, Entries: changes}
	manifestFile := filepath.Join(workdir, name.Manifest())
	if err := os.WriteFile(manifestFile, m.Encode(), 0600); err != nil {
		return nil, errors.WithKind(errors.IO, errors.WithStack(err))
	}

	arch.Step("creating archive " + name.String())
	listFile := filepath.Join(workdir, "files")
	if err := tools.WriteList(listFile, changes.Paths()); err != nil {
		return nil, err
	}

	bundle := filepath.Join(workdir, name.String())
	if err := arch.Archiver.Create(ctx, bundle, arch.Options.Workdir, listFile); err != nil {
		return nil, errors.Wrap(err, "create archive")
	}

	arch.Step("encrypting archive")
	payloadFile, err := arch.Crypter.Encrypt(ctx, bundle)
	removeErr := os.Remove(bundle)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt archive")
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return nil, errors.WithKind(errors.IO, errors.WithStack(removeErr))
	}

	sumFile, err := arch.Checksummer.Compute(ctx, payloadFile)
	if err != nil {
		return nil, errors.Wrap(err, "checksum")
	}

	summary := &Summary{
		Archive: name,
		Changes: changes,
	}

	fi, err := os.Stat(payloadFile)
	if err != nil {
		return nil, errors.WithKind(errors.IO, errors.WithStack(err))
	}
	summary.PayloadSize = fi.Size()

	ext := arch.Crypter.Extension()
	uploads := []struct{ local, remote string }{
		{manifestFile, name.Manifest()},
		{payloadFile, name.Payload(ext)},
		{sumFile, name.Checksum(ext)},
	}
	for _, u := range uploads {
		arch.Step("uploading " + u.remote)
		if err := arch.upload(ctx, u.local, u.remote); err != nil {
			return summary, err
		}
		summary.Uploaded = append(summary.Uploaded, u.remote)
	}

	arch.Step("verifying " + name.Payload(ext))
	summary.Verified, err = arch.verify(ctx, name)
	if err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func (arch *Archiver) upload(ctx context.Context, filename, name string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() { _ = f.Close() }()

	err = arch.Backend.Save(ctx, name, f)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.WithKind(errors.RemoteUnavailable, errors.Wrapf(err, "upload %v", name))
	}
	return nil
}

// verify checks the uploaded payload against the uploaded checksum. The
// remote store runs the check itself if it can run programs, otherwise the
// payload is loaded back.
func (arch *Archiver) verify(ctx context.Context, name manifest.ArchiveName) (string, error) {
	ext := arch.Crypter.Extension()

	if runner, ok := backend.AsRunner(arch.Backend); ok {
		out, err := runner.Run(ctx, arch.Options.VerifyCommand, "-c", name.Checksum(ext))
		switch {
		case err == nil:
			debug.Log("remote verification: %s", out)
			return "remote", nil
		case errors.Is(err, backend.ErrRunUnsupported):
			debug.Log("backend cannot run programs, verifying locally")
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			msg := strings.TrimSpace(string(out))
			return "", errors.WithKind(errors.IntegrityFailure,
				errors.Wrapf(err, "remote verification of %v failed: %v", name.Payload(ext), msg))
		}
	}

	sum, err := backend.LoadAll(ctx, nil, arch.Backend, name.Checksum(ext))
	if err != nil {
		return "", errors.WithKind(errors.RemoteUnavailable, errors.Wrapf(err, "load %v", name.Checksum(ext)))
	}

	err = arch.Backend.Load(ctx, name.Payload(ext), func(rd io.Reader) error {
		err := arch.Checksummer.Verify(ctx, rd, bytes.NewReader(sum), name.Payload(ext))
		if errors.IsKind(err, errors.IntegrityFailure) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.WithKind(errors.IntegrityFailure, errors.Wrapf(err, "verify %v", name.Payload(ext)))
	}
	return "download", nil
}
