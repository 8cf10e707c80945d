package restorer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/inventory"
	"github.com/asmfreak/arensync/internal/manifest"
	"github.com/asmfreak/arensync/internal/tools"
	"github.com/asmfreak/arensync/internal/ui/progress"

	"github.com/cenkalti/backoff/v4"
)

// Restorer is used to restore the files of a remote store.
type Restorer struct {
	Backend  backend.Backend
	Archiver tools.Archiver
	Crypter  tools.Crypter

	// Target is the directory the files are restored to.
	Target string
	// TempDir holds the selection lists while extracting.
	TempDir string

	// Progress is called whenever a selected file has been extracted.
	Progress func(archive manifest.ArchiveName, remaining, total uint64)
	// Warnf reports problems that do not fail the run.
	Warnf func(msg string, args ...interface{})
}

// New creates a restorer extracting to target.
func New(be backend.Backend, arch tools.Archiver, crypt tools.Crypter, target string) *Restorer {
	return &Restorer{
		Backend:  be,
		Archiver: arch,
		Crypter:  crypt,
		Target:   target,
		TempDir:  os.TempDir(),
		Progress: func(manifest.ArchiveName, uint64, uint64) {},
		Warnf:    func(string, ...interface{}) {},
	}
}

func (res *Restorer) progress(archive manifest.ArchiveName, remaining, total uint64) {
	if res.Progress != nil {
		res.Progress(archive, remaining, total)
	}
}

func (res *Restorer) warnf(msg string, args ...interface{}) {
	if res.Warnf != nil {
		res.Warnf(msg, args...)
	}
}

// Outcome is the result of restoring a single archive.
type Outcome struct {
	Archive manifest.ArchiveName
	Total   int
	// Missing lists the selected paths that were not extracted, sorted.
	Missing []string
	Err     error
}

// OK returns true if all selected files were extracted.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// RestoreArchive extracts the paths of plan from its archive into the
// target directory.
func (res *Restorer) RestoreArchive(ctx context.Context, plan manifest.ArchivePlan) Outcome {
	outcome := Outcome{Archive: plan.Archive, Total: len(plan.Paths)}
	if len(plan.Paths) == 0 {
		return outcome
	}

	remaining, err := res.restore(ctx, plan)
	if len(remaining) > 0 {
		for p := range remaining {
			outcome.Missing = append(outcome.Missing, p)
		}
		sort.Strings(outcome.Missing)
	}

	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		outcome.Err = errors.Wrapf(err, "restore %v", plan.Archive)
	case len(remaining) > 0:
		outcome.Err = errors.WithKind(errors.PartialRestore,
			errors.Errorf("%v: %d of %d files not extracted", plan.Archive, len(remaining), len(plan.Paths)))
	}
	return outcome
}

// restore runs the extraction pipeline and returns the paths that were not
// reported by the extractor.
func (res *Restorer) restore(ctx context.Context, plan manifest.ArchivePlan) (map[string]struct{}, error) {
	remaining := make(map[string]struct{}, len(plan.Paths))
	for _, p := range plan.Paths {
		remaining[p] = struct{}{}
	}

	if err := os.MkdirAll(res.Target, 0700); err != nil {
		return remaining, errors.WithKind(errors.IO, errors.WithStack(err))
	}

	tempdir, err := os.MkdirTemp(res.TempDir, "arensync-restore-")
	if err != nil {
		return remaining, errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() {
		if err := os.RemoveAll(tempdir); err != nil {
			res.warnf("unable to remove temporary files: %v\n", err)
		}
	}()

	listFile := filepath.Join(tempdir, "files")
	if err := tools.WriteList(listFile, plan.Paths); err != nil {
		return remaining, err
	}

	total := uint64(len(plan.Paths))
	counter := progress.NewCounter(total, func(value, total uint64) {
		res.progress(plan.Archive, total-value, total)
	})

	extracted := func(line string) {
		p, err := manifest.CleanPath(line)
		if err != nil {
			debug.Log("ignoring output line %q: %v", line, err)
			return
		}
		if _, ok := remaining[p]; !ok {
			return
		}
		delete(remaining, p)
		counter.Add(1)
	}

	name := plan.Archive.Payload(res.Crypter.Extension())
	debug.Log("extracting %d files from %v", total, name)
	res.progress(plan.Archive, total, total)

	// extraction has side effects, only opening the payload is retried
	err = res.Backend.Load(ctx, name, func(rd io.Reader) error {
		plain, err := res.Crypter.Decrypt(ctx, rd)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = res.Archiver.Extract(ctx, plain, res.Target, listFile, extracted)
		cerr := plain.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	})
	if err != nil && !errors.IsKind(err, errors.ToolFailure) && !errors.IsKind(err, errors.IO) {
		err = errors.WithKind(errors.RemoteUnavailable, err)
	}
	return remaining, err
}

// Result lists the outcome of every archive of a restore run.
type Result struct {
	Plan      manifest.Plan
	Succeeded []Outcome
	Failed    []Outcome
	// Skipped lists the archives whose files are all superseded.
	Skipped []manifest.ArchiveName
}

// Files returns the number of files that were restored.
func (r *Result) Files() int {
	n := 0
	for _, o := range r.Succeeded {
		n += o.Total
	}
	for _, o := range r.Failed {
		n += o.Total - len(o.Missing)
	}
	return n
}

func (r *Result) String() string {
	return fmt.Sprintf("restored %d of %d files from %d archives, %d archives failed",
		r.Files(), r.Plan.Total(), len(r.Succeeded)+len(r.Failed), len(r.Failed))
}

// Run merges all manifests of the remote store and restores every archive
// that holds the latest version of at least one file, in archive order. A
// failed archive does not stop the run, the returned error is then of the
// PartialRestore kind.
func (res *Restorer) Run(ctx context.Context) (*Result, error) {
	manifests, err := inventory.LoadManifests(ctx, res.Backend, res.warnf)
	if err != nil {
		return nil, err
	}

	result := &Result{Plan: manifest.Resolve(manifests)}
	debug.Log("restoring %d files from %d archives", result.Plan.Total(), len(result.Plan))

	for _, plan := range result.Plan {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if len(plan.Paths) == 0 {
			debug.Log("%v has no current files", plan.Archive)
			result.Skipped = append(result.Skipped, plan.Archive)
			continue
		}

		outcome := res.RestoreArchive(ctx, plan)
		if outcome.OK() {
			result.Succeeded = append(result.Succeeded, outcome)
			continue
		}

		if errors.Is(outcome.Err, context.Canceled) || errors.Is(outcome.Err, context.DeadlineExceeded) {
			return result, ctx.Err()
		}

		debug.Log("restoring %v failed: %v", plan.Archive, outcome.Err)
		res.warnf("%v\n", outcome.Err)
		result.Failed = append(result.Failed, outcome)
	}

	if len(result.Failed) > 0 {
		return result, errors.WithKind(errors.PartialRestore,
			errors.Errorf("%d of %d archives could not be restored completely",
				len(result.Failed), len(result.Failed)+len(result.Succeeded)))
	}
	return result, nil
}
