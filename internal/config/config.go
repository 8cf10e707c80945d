// Package config loads the configuration of a backup profile.
//
// A profile is a YAML file in the configuration directory with the suffix
// ".conf". Values are layered: built-in defaults, then the default
// configuration file, then the profile itself, then ARENSYNC_<KEY>
// environment variables.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"

	"github.com/spf13/viper"
)

// ProfilePattern matches the profile files in the configuration directory.
const ProfilePattern = "*.conf"

// Encryption methods.
const (
	EncryptionGPG = "gpg"
	EncryptionAge = "age"
)

// Archiver implementations.
const (
	ArchiverTar    = "tar"
	ArchiverNative = "native"
)

// Config is the configuration of a single profile. It is passed by value
// and never modified after Load returns.
type Config struct {
	Workdir    string   `mapstructure:"workdir"`
	IgnoreFile string   `mapstructure:"ignorefile"`
	Ignore     []string `mapstructure:"ignore"`
	User       string   `mapstructure:"user"`
	GPGEmail   string   `mapstructure:"gpgemail"`

	ServerUser string `mapstructure:"serveruser"`
	Server     string `mapstructure:"server"`
	ServerDir  string `mapstructure:"serverdir"`
	// Remote overrides the location derived from the server settings,
	// e.g. "sftp://user@host:2222/srv/backup" or "local:/mnt/backup".
	Remote string `mapstructure:"remote"`

	SSHBin       string `mapstructure:"sshbin"`
	GPGBin       string `mapstructure:"gpgbin"`
	TarBin       string `mapstructure:"tarbin"`
	SHA256SumBin string `mapstructure:"sha256sumbin"`
	TempDir      string `mapstructure:"tempdir"`

	Encryption    string   `mapstructure:"encryption"`
	AgeRecipients []string `mapstructure:"age_recipients"`
	AgeIdentity   string   `mapstructure:"age_identity"`
	Archiver      string   `mapstructure:"archiver"`

	Workers         int           `mapstructure:"workers"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func setDefaults(v *viper.Viper) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.WithStack(err)
	}

	v.SetDefault("workdir", wd)
	v.SetDefault("ignorefile", "")
	v.SetDefault("ignore", []string{})
	v.SetDefault("user", currentUser())
	v.SetDefault("gpgemail", "")
	v.SetDefault("serveruser", "")
	v.SetDefault("server", "")
	v.SetDefault("serverdir", "")
	v.SetDefault("remote", "")
	v.SetDefault("sshbin", "ssh")
	v.SetDefault("gpgbin", "gpg")
	v.SetDefault("tarbin", "tar")
	v.SetDefault("sha256sumbin", "sha256sum")
	v.SetDefault("tempdir", os.TempDir())
	v.SetDefault("encryption", EncryptionGPG)
	v.SetDefault("age_recipients", []string{})
	v.SetDefault("age_identity", "")
	v.SetDefault("archiver", ArchiverTar)
	v.SetDefault("workers", 0)
	v.SetDefault("retry_max_elapsed", 15*time.Minute)
	return nil
}

func mergeFile(v *viper.Viper, filename string, optional bool) error {
	f, err := os.Open(filename)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			debug.Log("config file %v not found", filename)
			return nil
		}
		return errors.Fatalf("unable to open config file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if err := v.MergeConfig(f); err != nil {
		return errors.Fatalf("unable to parse config file %v: %v", filename, err)
	}
	return nil
}

// Load returns the configuration of profileFile layered on top of
// defaultFile. A missing defaultFile is ignored, either name may be empty.
func Load(defaultFile, profileFile string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ARENSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v); err != nil {
		return Config{}, err
	}

	if defaultFile != "" {
		if err := mergeFile(v, defaultFile, true); err != nil {
			return Config{}, err
		}
	}
	if profileFile != "" {
		if err := mergeFile(v, profileFile, false); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Fatalf("invalid configuration: %v", err)
	}

	if cfg.GPGEmail == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		cfg.GPGEmail = cfg.User + "@" + host
	}

	cfg.Workdir = expandHome(cfg.Workdir)
	cfg.IgnoreFile = expandHome(cfg.IgnoreFile)
	cfg.TempDir = expandHome(cfg.TempDir)
	cfg.AgeIdentity = expandHome(cfg.AgeIdentity)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.Encryption {
	case EncryptionGPG, EncryptionAge:
	default:
		return errors.Fatalf("unknown encryption %q, use %q or %q", cfg.Encryption, EncryptionGPG, EncryptionAge)
	}

	switch cfg.Archiver {
	case ArchiverTar, ArchiverNative:
	default:
		return errors.Fatalf("unknown archiver %q, use %q or %q", cfg.Archiver, ArchiverTar, ArchiverNative)
	}

	if cfg.Workers < 0 {
		return errors.Fatalf("workers must not be negative, got %d", cfg.Workers)
	}
	return nil
}

// expandHome replaces a leading "~" with the home directory of the user.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// Location returns the remote store of the profile as understood by
// location.Parse.
func (cfg Config) Location() (string, error) {
	if cfg.Remote != "" {
		return cfg.Remote, nil
	}

	if cfg.ServerDir == "" {
		return "", errors.Fatal("no serverdir configured")
	}

	if cfg.Server == "" {
		return "local:" + expandHome(cfg.ServerDir), nil
	}

	host := cfg.Server
	if cfg.ServerUser != "" {
		host = cfg.ServerUser + "@" + host
	}
	return "sftp:" + host + ":" + cfg.ServerDir, nil
}

// Profiles returns the profile files in dir, sorted by name.
func Profiles(dir string) ([]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Fatalf("unable to open config directory: %v", err)
	}
	if !fi.IsDir() {
		return nil, errors.Fatalf("%v is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, ProfilePattern))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(files)
	return files, nil
}
