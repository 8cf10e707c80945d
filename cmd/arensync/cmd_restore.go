package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asmfreak/arensync/internal/manifest"
	"github.com/asmfreak/arensync/internal/profile"
	"github.com/asmfreak/arensync/internal/ui/progress"
)

// RestoreOptions collects all options for the restore command.
type RestoreOptions struct {
	Target string
}

func newRestoreCommand(gopts *GlobalOptions) *cobra.Command {
	var opts RestoreOptions

	cmd := &cobra.Command{
		Use:   "restore [flags] [profile-file...]",
		Short: "Restore the latest version of all files",
		Long: `
The "restore" command merges the manifests of all archives in the remote
directory of each profile and extracts the latest version of every file,
each from the newest archive that contains it.

Files are restored to the work directory of the profile unless --target is
given. An archive that cannot be extracted completely fails the profile, the
remaining archives are restored nevertheless.

EXIT STATUS
===========

Exit status is 0 if all files of all profiles were restored.
Exit status is 1 if any profile failed.
Exit status is 130 if the command was interrupted.
`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(cmd.Context(), gopts, args, func(ctx context.Context, p *profile.Profile, printer progress.Printer) error {
				return runRestore(ctx, opts, p, printer)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Target, "target", "t", "", "`directory` to extract the files to (default: the work directory)")
	return cmd
}

func runRestore(ctx context.Context, opts RestoreOptions, p *profile.Profile, printer progress.Printer) error {
	res := p.NewRestorer(opts.Target)
	res.Progress = func(archive manifest.ArchiveName, remaining, _ uint64) {
		printer.Status(fmt.Sprintf("Files from %v to unpack [%06d]", archive, remaining))
		if remaining == 0 {
			printer.ClearStatus()
		}
	}

	result, err := res.Run(ctx)
	printer.ClearStatus()
	if result != nil {
		for _, o := range result.Failed {
			for _, path := range o.Missing {
				printer.V("not restored: %v", path)
			}
		}
		printer.P("%v", result)
	}
	return err
}
