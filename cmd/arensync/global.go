package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/asmfreak/arensync/internal/config"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/profile"
	"github.com/asmfreak/arensync/internal/ui/progress"
)

// GlobalOptions hold all global options for arensync.
type GlobalOptions struct {
	ConfigDir     string
	DefaultConfig string
	Quiet         bool
	Verbose       int

	stdout io.Writer
	stderr io.Writer

	// verbosity is set as follows:
	//  0 means: don't print any messages except errors, this is used when --quiet is specified
	//  1 is the default: print essential messages
	//  2 means: print more messages, report minor things, this is used when --verbose is specified
	//  3 means: print very detailed debug messages, this is used when --verbose=2 is specified
	verbosity uint

	printer progress.Printer
}

func newGlobalOptions() *GlobalOptions {
	return &GlobalOptions{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "arensync")
	}
	return filepath.Join(home, ".config", "arensync")
}

func envOr(name, value string) string {
	if s := os.Getenv(name); s != "" {
		return s
	}
	return value
}

func (opts *GlobalOptions) AddFlags(f *pflag.FlagSet) {
	dir := defaultConfigDir()
	f.StringVar(&opts.ConfigDir, "configdir", envOr("ARENSYNC_CONFIGDIR", dir), "`directory` with the profiles (default: $ARENSYNC_CONFIGDIR)")
	f.StringVar(&opts.DefaultConfig, "default-config", envOr("ARENSYNC_DEFAULTCONFIG", filepath.Join(dir, "config")), "`file` with the defaults for all profiles (default: $ARENSYNC_DEFAULTCONFIG)")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "only print errors")
	// use empty parameter name as `-v, --verbose n` instead of the correct `--verbose=n` is confusing
	f.CountVarP(&opts.Verbose, "verbose", "v", "be verbose (specify multiple times or a level using --verbose=n``, max level/times is 2)")
}

func (opts *GlobalOptions) PreRun() error {
	// set verbosity, default is one
	opts.verbosity = 1
	if opts.Quiet && opts.Verbose > 0 {
		return errors.Fatal("--quiet and --verbose cannot be specified at the same time")
	}

	switch {
	case opts.Verbose >= 2:
		opts.verbosity = 3
	case opts.Verbose > 0:
		opts.verbosity = 2
	case opts.Quiet:
		opts.verbosity = 0
	}

	opts.printer = progress.NewTerminal(opts.stdout, opts.stderr, opts.verbosity)
	return nil
}

// Printer returns the printer for the current verbosity.
func (opts *GlobalOptions) Printer() progress.Printer {
	if opts.printer == nil {
		opts.printer = progress.NewTerminal(opts.stdout, opts.stderr, 1)
	}
	return opts.printer
}

// Warnf writes the message to the configured stderr stream.
func (opts *GlobalOptions) Warnf(format string, args ...interface{}) {
	opts.Printer().E(strings.TrimRight(format, "\n"), args...)
}

// profileFiles returns the given profile files or all profiles of the
// configuration directory.
func (opts *GlobalOptions) profileFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		for _, arg := range args {
			if _, err := os.Stat(arg); err != nil {
				return nil, errors.Fatalf("unable to open profile: %v", err)
			}
		}
		return args, nil
	}

	files, err := config.Profiles(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Fatalf("no profiles (%v) found in %v", config.ProfilePattern, opts.ConfigDir)
	}
	return files, nil
}

// describeError returns the message printed for a failed profile.
func describeError(err error) string {
	if errors.IsFatal(err) {
		return err.Error()
	}
	if kind := errors.KindOf(err); kind != errors.Unknown {
		return fmt.Sprintf("%v: %v", kind, err)
	}
	return err.Error()
}

type profileFunc func(ctx context.Context, p *profile.Profile, printer progress.Printer) error

// runProfiles opens and checks every profile and passes it to fn. A failed
// profile does not stop the remaining ones. The returned error summarizes
// the failures.
func runProfiles(ctx context.Context, gopts *GlobalOptions, args []string, fn profileFunc) error {
	files, err := gopts.profileFiles(args)
	if err != nil {
		return err
	}

	printer := gopts.Printer()
	var failed []string
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := profile.Name(file)
		printer.P("Using %v", filepath.Base(file))

		err := runProfile(ctx, gopts, file, fn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			debug.Log("profile %v failed: %+v", name, err)
			printer.E("%v: %v", name, describeError(err))
			failed = append(failed, name)
			continue
		}
		printer.P("Success")
	}

	if len(failed) > 0 {
		return errors.Fatalf("%d of %d profiles failed: %v", len(failed), len(files), strings.Join(failed, ", "))
	}
	return nil
}

func runProfile(ctx context.Context, gopts *GlobalOptions, file string, fn profileFunc) error {
	cfg, err := config.Load(gopts.DefaultConfig, file)
	if err != nil {
		return err
	}

	printer := gopts.Printer()
	p, err := profile.Open(ctx, profile.Name(file), cfg, gopts.Warnf)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			printer.E("closing %v failed: %v", p.Backend.Location(), err)
		}
	}()

	printer.P("Checking configuration sanity")
	if err := p.Check(ctx); err != nil {
		return err
	}

	if fn == nil {
		return nil
	}
	return fn(ctx, p, printer)
}
