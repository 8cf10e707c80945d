package tools

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"

	"github.com/klauspost/compress/gzip"
)

// TarGz builds and extracts tar.gz bundles in-process. The bundles are
// compatible with TarCommand.
type TarGz struct{}

var _ Archiver = TarGz{}

// Create writes the files of listFile into the gzip compressed tar file output.
func (TarGz) Create(ctx context.Context, output, baseDir, listFile string) (err error) {
	paths, err := ReadList(listFile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() {
		cerr := f.Close()
		if err == nil && cerr != nil {
			err = errors.WithKind(errors.IO, errors.WithStack(cerr))
		}
	}()

	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(tw, baseDir, p); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return errors.WithKind(errors.ToolFailure, errors.Wrap(err, "tar"))
	}
	if err := zw.Close(); err != nil {
		return errors.WithKind(errors.ToolFailure, errors.Wrap(err, "gzip"))
	}
	return nil
}

func addFile(tw *tar.Writer, baseDir, p string) error {
	filename := filepath.Join(baseDir, filepath.FromSlash(p))
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}
	if !fi.Mode().IsRegular() {
		return errors.WithKind(errors.IO, errors.Errorf("%v is not a regular file", filename))
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     listPrefix + p,
		Size:     fi.Size(),
		Mode:     int64(fi.Mode().Perm()),
		ModTime:  fi.ModTime(),
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.WithKind(errors.ToolFailure, errors.Wrapf(err, "tar header %v", p))
	}

	n, err := io.Copy(tw, f)
	if err != nil {
		return errors.WithKind(errors.IO, errors.Wrapf(err, "read %v", filename))
	}
	if n != fi.Size() {
		return errors.WithKind(errors.IO, errors.Errorf("%v changed size while archiving", filename))
	}
	return nil
}

// Extract reads a gzip compressed tar stream and writes the selected files
// below baseDir. Entries with absolute names or names leaving baseDir
// abort the extraction. Entries that are not selected are skipped.
func (TarGz) Extract(ctx context.Context, rd io.Reader, baseDir, listFile string, extracted func(line string)) error {
	paths, err := ReadList(listFile)
	if err != nil {
		return err
	}
	selected := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		selected[p] = struct{}{}
	}

	zr, err := gzip.NewReader(rd)
	if err != nil {
		return errors.WithKind(errors.ToolFailure, errors.Wrap(err, "gzip"))
	}
	defer func() { _ = zr.Close() }()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WithKind(errors.ToolFailure, errors.Wrap(err, "tar"))
		}

		if hdr.Typeflag != tar.TypeReg {
			debug.Log("skip %v of type %c", hdr.Name, hdr.Typeflag)
			continue
		}

		p, err := manifest.CleanPath(hdr.Name)
		if err != nil {
			return errors.WithKind(errors.ToolFailure, errors.Wrap(err, "unsafe tar entry"))
		}

		if _, ok := selected[p]; !ok {
			debug.Log("skip %v", hdr.Name)
			continue
		}

		if err := extractFile(tr, baseDir, p, hdr); err != nil {
			return err
		}
		if extracted != nil {
			extracted(hdr.Name)
		}
	}

	return nil
}

func extractFile(rd io.Reader, baseDir, p string, hdr *tar.Header) error {
	filename := filepath.Join(baseDir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0600
	}

	// remove an existing file so that a read-only file can be replaced
	_ = os.Remove(filename)

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}

	_, err = io.Copy(f, rd)
	cerr := f.Close()
	if err != nil {
		return errors.WithKind(errors.ToolFailure, errors.Wrapf(err, "extract %v", p))
	}
	if cerr != nil {
		return errors.WithKind(errors.IO, errors.WithStack(cerr))
	}

	if !hdr.ModTime.IsZero() {
		_ = os.Chtimes(filename, hdr.ModTime, hdr.ModTime)
	}
	return nil
}
