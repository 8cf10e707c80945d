package profile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/google/go-cmp/cmp"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/config"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/profile"
	rtest "github.com/asmfreak/arensync/internal/test"
)

func testConfig(t *testing.T) config.Config {
	id, err := age.GenerateX25519Identity()
	rtest.OK(t, err)

	keydir := rtest.TempDir(t)
	identity := filepath.Join(keydir, "key.txt")
	rtest.OK(t, os.WriteFile(identity, []byte(id.String()+"\n"), 0600))

	return config.Config{
		Workdir:         rtest.TempDir(t),
		ServerDir:       rtest.TempDir(t),
		TempDir:         rtest.TempDir(t),
		SHA256SumBin:    "sha256sum",
		Encryption:      config.EncryptionAge,
		AgeRecipients:   []string{id.Recipient().String()},
		AgeIdentity:     identity,
		Archiver:        config.ArchiverNative,
		RetryMaxElapsed: time.Second,
	}
}

func open(t *testing.T, cfg config.Config) *profile.Profile {
	p, err := profile.Open(context.TODO(), "test", cfg, nil)
	rtest.OK(t, err)
	t.Cleanup(func() { rtest.OK(t, p.Close()) })
	return p
}

func TestName(t *testing.T) {
	rtest.Equals(t, "home", profile.Name("/etc/arensync/home.conf"))
	rtest.Equals(t, "work.backup", profile.Name("work.backup.conf"))
}

func TestCheck(t *testing.T) {
	cfg := testConfig(t)
	p := open(t, cfg)

	rtest.OK(t, p.Check(context.TODO()))

	// the check leaves nothing behind
	names, err := backend.Names(context.TODO(), p.Backend)
	rtest.OK(t, err)
	rtest.Equals(t, 0, len(names))

	list, err := os.ReadDir(cfg.TempDir)
	rtest.OK(t, err)
	rtest.Equals(t, 0, len(list))
}

func TestCheckMissingWorkdir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workdir = filepath.Join(cfg.Workdir, "missing")
	p := open(t, cfg)

	err := p.Check(context.TODO())
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}

func TestCheckTempDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.TempDir = filepath.Join(cfg.TempDir, "missing")
	p := open(t, cfg)

	err := p.Check(context.TODO())
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}

func TestCheckEncryptionTool(t *testing.T) {
	rtest.RequireBinary(t, "false")

	cfg := testConfig(t)
	cfg.Encryption = config.EncryptionGPG
	cfg.GPGBin = "false"
	cfg.GPGEmail = "nobody@example.com"
	p := open(t, cfg)

	err := p.Check(context.TODO())
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}

func TestCheckTarBinary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archiver = config.ArchiverTar
	cfg.TarBin = "arensync-no-such-tar"
	p := open(t, cfg)

	err := p.Check(context.TODO())
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}

func TestOpenInvalid(t *testing.T) {
	for _, modify := range []func(*config.Config){
		func(cfg *config.Config) { cfg.Remote = "foo:bar" },
		func(cfg *config.Config) { cfg.ServerDir = "" },
		func(cfg *config.Config) { cfg.AgeRecipients = []string{"age1invalid"} },
		func(cfg *config.Config) { cfg.Ignore = []string{"[unterminated"} },
		func(cfg *config.Config) { cfg.Archiver = config.ArchiverTar; cfg.TarBin = "'unterminated" },
	} {
		cfg := testConfig(t)
		modify(&cfg)

		_, err := profile.Open(context.TODO(), "test", cfg, nil)
		rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
	}
}

func TestIgnoreFile(t *testing.T) {
	cfg := testConfig(t)
	rtest.WriteFiles(t, cfg.TempDir, map[string]string{"ignore": "# comment\n*.tmp\n\ncache\n"})
	cfg.IgnoreFile = filepath.Join(cfg.TempDir, "ignore")
	cfg.Ignore = []string{"*.bak"}

	p := open(t, cfg)
	rtest.Equals(t, []string{"*.bak", "*.tmp", "cache"}, p.Ignore)
}

func TestUploadRestore(t *testing.T) {
	rtest.RequireBinary(t, "sha256sum")

	cfg := testConfig(t)
	files := map[string]string{
		"a.txt":       "foo\n",
		"sub/b.txt":   "bar\n",
		"skip.tmp":    "tmp\n",
		"deep/x/y/z":  "z\n",
		"deep/x/y/z2": "z2\n",
	}
	rtest.WriteFiles(t, cfg.Workdir, files)
	cfg.Ignore = []string{"*.tmp"}

	p := open(t, cfg)
	rtest.OK(t, p.Check(context.TODO()))

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	summary, err := p.NewArchiver(func() time.Time { return now }).Run(context.TODO())
	rtest.OK(t, err)
	rtest.Equals(t, "remote", summary.Verified)
	rtest.Equals(t, 4, len(summary.Changes))

	files["a.txt"] = "changed\n"
	rtest.WriteFiles(t, cfg.Workdir, files)
	now = now.Add(time.Hour)
	summary, err = p.NewArchiver(func() time.Time { return now }).Run(context.TODO())
	rtest.OK(t, err)
	rtest.Equals(t, 1, len(summary.Changes))

	target := rtest.TempDir(t)
	result, err := p.NewRestorer(target).Run(context.TODO())
	rtest.OK(t, err)
	rtest.Equals(t, 2, len(result.Succeeded))

	delete(files, "skip.tmp")
	got := rtest.ReadFiles(t, target)
	if !cmp.Equal(files, got) {
		t.Error(cmp.Diff(files, got))
	}
}
