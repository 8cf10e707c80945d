package tools

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/asmfreak/arensync/internal/errors"

	"filippo.io/age"
)

// Age encrypts in-process with age X25519 keys.
type Age struct {
	Recipients []age.Recipient
	Identities []age.Identity
}

var _ Crypter = &Age{}

// NewAge parses the public keys in recipients ("age1...") and reads the
// identities from identityFile. identityFile may be empty if only
// encryption is needed, recipients may be empty if only decryption is.
func NewAge(recipients []string, identityFile string) (*Age, error) {
	a := &Age{}
	for _, s := range recipients {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Fatalf("invalid age recipient %q: %v", s, err)
		}
		a.Recipients = append(a.Recipients, r)
	}

	if identityFile != "" {
		f, err := os.Open(identityFile)
		if err != nil {
			return nil, errors.Fatalf("unable to open age identity file: %v", err)
		}
		defer func() { _ = f.Close() }()

		a.Identities, err = age.ParseIdentities(f)
		if err != nil {
			return nil, errors.Fatalf("invalid age identity file %v: %v", identityFile, err)
		}
	}

	return a, nil
}

// Extension returns ".age".
func (*Age) Extension() string { return ".age" }

// Encrypt writes path+".age" for all recipients.
func (a *Age) Encrypt(ctx context.Context, path string) (output string, err error) {
	if len(a.Recipients) == 0 {
		return "", errors.Fatal("no age recipients configured")
	}

	in, err := os.Open(path)
	if err != nil {
		return "", errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() { _ = in.Close() }()

	output = path + a.Extension()
	out, err := os.OpenFile(output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() {
		cerr := out.Close()
		if err == nil && cerr != nil {
			err = errors.WithKind(errors.IO, errors.WithStack(cerr))
		}
		if err != nil {
			_ = os.Remove(output)
			output = ""
		}
	}()

	wr, err := age.Encrypt(out, a.Recipients...)
	if err != nil {
		return "", errors.WithKind(errors.ToolFailure, errors.Wrap(err, "age"))
	}

	if _, err := io.Copy(wr, &ctxReader{ctx: ctx, rd: in}); err != nil {
		return "", errors.WithKind(errors.IO, errors.Wrap(err, "age"))
	}

	if err := wr.Close(); err != nil {
		return "", errors.WithKind(errors.ToolFailure, errors.Wrap(err, "age"))
	}
	return output, nil
}

// Decrypt returns the plaintext of rd.
func (a *Age) Decrypt(ctx context.Context, rd io.Reader) (io.ReadCloser, error) {
	if len(a.Identities) == 0 {
		return nil, errors.Fatal("no age identity configured")
	}

	plain, err := age.Decrypt(rd, a.Identities...)
	if err != nil {
		return nil, errors.WithKind(errors.ToolFailure, errors.Wrap(err, "age"))
	}
	return io.NopCloser(&ctxReader{ctx: ctx, rd: &toolReader{rd: plain}}), nil
}

// ctxReader stops reading once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	rd  io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rd.Read(p)
}

// toolReader marks read errors of a decrypting reader as tool failures.
type toolReader struct {
	rd io.Reader
}

func (r *toolReader) Read(p []byte) (int, error) {
	n, err := r.rd.Read(p)
	if err != nil && err != io.EOF {
		err = errors.WithKind(errors.ToolFailure, errors.Wrap(err, "age"))
	}
	return n, err
}
