// Package profile opens the remote store and the tools a configuration
// names, and checks that they are usable before any file is processed.
package profile

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/asmfreak/arensync/internal/archiver"
	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/backend/local"
	"github.com/asmfreak/arensync/internal/backend/location"
	"github.com/asmfreak/arensync/internal/backend/retry"
	"github.com/asmfreak/arensync/internal/backend/sftp"
	"github.com/asmfreak/arensync/internal/config"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/filter"
	"github.com/asmfreak/arensync/internal/restorer"
	"github.com/asmfreak/arensync/internal/tools"
)

// checkObject is saved to and removed from the remote store by Check.
const checkObject = "arensync-check"

// Profile is an opened configuration.
type Profile struct {
	Name   string
	Config config.Config
	// Ignore holds the patterns of the configuration and its ignore file.
	Ignore []string

	Backend     backend.Backend
	Archiver    tools.Archiver
	Crypter     tools.Crypter
	Checksummer tools.Checksummer

	// Warnf reports problems that do not fail the profile.
	Warnf func(msg string, args ...interface{})
}

// Name returns the profile name of a profile file, e.g. "home" for
// "/etc/arensync/home.conf".
func Name(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

// Open prepares the tools and connects to the remote store of cfg.
func Open(ctx context.Context, name string, cfg config.Config, warnf func(msg string, args ...interface{})) (*Profile, error) {
	if warnf == nil {
		warnf = func(string, ...interface{}) {}
	}

	p := &Profile{
		Name:   name,
		Config: cfg,
		Warnf:  warnf,
	}

	var err error
	p.Ignore, err = ignorePatterns(cfg)
	if err != nil {
		return nil, err
	}

	p.Archiver, err = newArchiver(cfg)
	if err != nil {
		return nil, err
	}

	p.Crypter, err = newCrypter(cfg)
	if err != nil {
		return nil, err
	}

	p.Checksummer = tools.SHA256{}

	p.Backend, err = openBackend(ctx, cfg, warnf)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func ignorePatterns(cfg config.Config) ([]string, error) {
	patterns := append([]string(nil), cfg.Ignore...)
	if cfg.IgnoreFile != "" {
		fromFile, err := filter.ReadPatternFile(cfg.IgnoreFile)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, fromFile...)
	}

	if err := filter.ValidatePatterns(patterns); err != nil {
		return nil, errors.Fatalf("ignore patterns: %s", err)
	}
	return patterns, nil
}

func newArchiver(cfg config.Config) (tools.Archiver, error) {
	switch cfg.Archiver {
	case config.ArchiverNative:
		return tools.TarGz{}, nil
	case config.ArchiverTar:
		cmd, err := tools.ParseCommand(cfg.TarBin)
		if err != nil {
			return nil, errors.Fatalf("tarbin: %v", err)
		}
		return tools.TarCommand{Command: cmd}, nil
	}
	return nil, errors.Fatalf("unknown archiver %q", cfg.Archiver)
}

func newCrypter(cfg config.Config) (tools.Crypter, error) {
	switch cfg.Encryption {
	case config.EncryptionAge:
		return tools.NewAge(cfg.AgeRecipients, cfg.AgeIdentity)
	case config.EncryptionGPG:
		cmd, err := tools.ParseCommand(cfg.GPGBin)
		if err != nil {
			return nil, errors.Fatalf("gpgbin: %v", err)
		}
		return tools.GPGCommand{Command: cmd, Recipient: cfg.GPGEmail}, nil
	}
	return nil, errors.Fatalf("unknown encryption %q", cfg.Encryption)
}

func openBackend(ctx context.Context, cfg config.Config, warnf func(msg string, args ...interface{})) (backend.Backend, error) {
	s, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	loc, err := location.Parse(s)
	if err != nil {
		return nil, errors.Fatalf("parsing remote location failed: %v", err)
	}

	var be backend.Backend
	switch c := loc.Config.(type) {
	case *local.Config:
		be, err = local.Open(ctx, *c)
	case *sftp.Config:
		c.SSH = cfg.SSHBin
		be, err = sftp.Open(ctx, *c)
	default:
		return nil, errors.Fatalf("unsupported remote location %q", s)
	}
	if err != nil {
		return nil, errors.WithKind(errors.RemoteUnavailable, errors.Wrapf(err, "open %v", s))
	}
	debug.Log("opened %v", be.Location())

	report := func(msg string, err error, d time.Duration) {
		if d < 0 {
			warnf("%v failed: %v\n", msg, err)
			return
		}
		warnf("%v returned error, retrying after %v: %v\n", msg, d.Round(time.Millisecond), err)
	}
	success := func(msg string, retries int) {
		warnf("%v operation successful after %d retries\n", msg, retries)
	}
	return retry.New(be, cfg.RetryMaxElapsed, report, success), nil
}

// Check is the dry validation pass: the work directory must exist, the
// temporary directory must be writable, the encryption tool must encrypt a
// test file and the remote store must accept and delete a test object.
func (p *Profile) Check(ctx context.Context) error {
	fi, err := os.Stat(p.Config.Workdir)
	if err != nil {
		return errors.Fatalf("workdir: %v", err)
	}
	if !fi.IsDir() {
		return errors.Fatalf("workdir %v is not a directory", p.Config.Workdir)
	}

	if err := p.checkTempDir(); err != nil {
		return err
	}

	if cmd, ok := p.Archiver.(tools.TarCommand); ok {
		if _, err := exec.LookPath(cmd.Program); err != nil {
			return errors.Fatalf("tarbin: %v", err)
		}
	}

	if err := p.checkEncryption(ctx); err != nil {
		return err
	}

	return p.checkRemote(ctx)
}

func (p *Profile) checkTempDir() error {
	f, err := os.CreateTemp(p.Config.TempDir, "arensync-check-")
	if err != nil {
		return errors.Fatalf("temporary directory is not usable: %v", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return errors.Fatalf("temporary directory is not usable: %v", err)
	}
	if err := os.Remove(name); err != nil {
		return errors.Fatalf("temporary directory is not usable: %v", err)
	}
	return nil
}

func (p *Profile) checkEncryption(ctx context.Context) error {
	dir, err := os.MkdirTemp(p.Config.TempDir, "arensync-check-")
	if err != nil {
		return errors.Fatalf("temporary directory is not usable: %v", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	test := filepath.Join(dir, "test")
	if err := os.WriteFile(test, nil, 0600); err != nil {
		return errors.Fatalf("temporary directory is not usable: %v", err)
	}

	out, err := p.Crypter.Encrypt(ctx, test)
	if err != nil {
		return errors.Fatalf("encryption is not usable: %v", err)
	}
	return errors.WithKind(errors.IO, errors.WithStack(os.Remove(out)))
}

func (p *Profile) checkRemote(ctx context.Context) error {
	err := p.Backend.Save(ctx, checkObject, strings.NewReader(""))
	if err != nil {
		return errors.WithKind(errors.RemoteUnavailable, errors.Wrapf(err, "remote %v is not writable", p.Backend.Location()))
	}

	err = p.Backend.Remove(ctx, checkObject)
	if err != nil {
		return errors.WithKind(errors.RemoteUnavailable, errors.Wrapf(err, "unable to remove %v from %v", checkObject, p.Backend.Location()))
	}
	return nil
}

// NewArchiver returns the upload engine of the profile.
func (p *Profile) NewArchiver(now func() time.Time) *archiver.Archiver {
	arch := archiver.New(p.Backend, p.Archiver, p.Crypter, p.Checksummer, archiver.Options{
		Workdir:       p.Config.Workdir,
		TempDir:       p.Config.TempDir,
		Ignore:        p.Ignore,
		Workers:       p.Config.Workers,
		VerifyCommand: p.Config.SHA256SumBin,
		Now:           now,
	})
	arch.Warnf = p.Warnf
	return arch
}

// NewRestorer returns the restore engine of the profile, extracting to
// target or to the work directory if target is empty.
func (p *Profile) NewRestorer(target string) *restorer.Restorer {
	if target == "" {
		target = p.Config.Workdir
	}
	res := restorer.New(p.Backend, p.Archiver, p.Crypter, target)
	res.TempDir = p.Config.TempDir
	res.Warnf = p.Warnf
	return res
}

// Close closes the connection to the remote store.
func (p *Profile) Close() error {
	if p.Backend == nil {
		return nil
	}
	return p.Backend.Close()
}
