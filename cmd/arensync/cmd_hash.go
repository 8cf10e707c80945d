package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/filter"
	"github.com/asmfreak/arensync/internal/inventory"
)

// HashOptions collects all options for the hash command.
type HashOptions struct {
	filter.ExcludePatternOptions
	Workers int
}

func newHashCommand(gopts *GlobalOptions) *cobra.Command {
	var opts HashOptions

	cmd := &cobra.Command{
		Use:   "hash [flags] directory",
		Short: "Print the inventory of a directory",
		Long: `
The "hash" command prints a manifest line "<sha256> <path>" for every regular
file below the directory, sorted by path. Paths are relative to the
directory.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(cmd.Context(), opts, gopts, args)
		},
	}

	flags := cmd.Flags()
	opts.ExcludePatternOptions.Add(flags)
	flags.IntVar(&opts.Workers, "workers", 0, "number of files hashed concurrently (default: number of CPUs)")
	return cmd
}

func runHash(ctx context.Context, opts HashOptions, gopts *GlobalOptions, args []string) error {
	if len(args) != 1 {
		return errors.Fatal("specify exactly one directory")
	}

	patterns, err := opts.CollectPatterns()
	if err != nil {
		return err
	}

	inv, err := inventory.BuildLocal(ctx, inventory.Options{
		Root:    args[0],
		Ignore:  patterns,
		Workers: opts.Workers,
		Warnf:   gopts.Warnf,
	})
	if err != nil {
		return err
	}

	for _, e := range inv.Entries() {
		if _, err := fmt.Fprintln(gopts.stdout, e); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
