package tools

import (
	"context"
	"io"

	"github.com/asmfreak/arensync/internal/errors"
)

// GPGCommand encrypts with an external gpg program for a single recipient.
type GPGCommand struct {
	Command
	Recipient string
}

var _ Crypter = GPGCommand{}

// Extension returns ".gpg".
func (GPGCommand) Extension() string { return ".gpg" }

// Encrypt runs "gpg -r <recipient> --output <path>.gpg --encrypt <path>".
func (g GPGCommand) Encrypt(ctx context.Context, path string) (string, error) {
	if g.Recipient == "" {
		return "", errors.Fatal("no gpg recipient configured")
	}

	output := path + g.Extension()
	err := g.Run(ctx, nil, io.Discard, "--batch", "--yes", "-r", g.Recipient, "--output", output, "--encrypt", path)
	if err != nil {
		return "", err
	}
	return output, nil
}

// Decrypt runs "gpg -d" with rd on stdin.
func (g GPGCommand) Decrypt(ctx context.Context, rd io.Reader) (io.ReadCloser, error) {
	return g.Pipe(ctx, rd, "--batch", "-d")
}
