package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/asmfreak/arensync/internal/manifest"
	"github.com/asmfreak/arensync/internal/profile"
	"github.com/asmfreak/arensync/internal/ui/progress"
)

func newUploadCommand(gopts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [flags] [profile-file...]",
		Short: "Upload the files that changed since the last run",
		Long: `
The "upload" command hashes all files of the work directory of each profile,
compares them with the manifests in the remote directory and uploads the
changed and new files as a new encrypted archive.

Without arguments, all profiles in the configuration directory are used.

EXIT STATUS
===========

Exit status is 0 if all profiles were uploaded or unchanged.
Exit status is 1 if any profile failed.
Exit status is 130 if the command was interrupted.
`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(cmd.Context(), gopts, args, runUpload)
		},
	}
	return cmd
}

func runUpload(ctx context.Context, p *profile.Profile, printer progress.Printer) error {
	arch := p.NewArchiver(time.Now)
	arch.Changed = func(e manifest.Entry) {
		printer.P("%v", e.Path)
	}
	arch.Step = func(msg string) {
		printer.V("%v", msg)
	}

	summary, err := arch.Run(ctx)
	if err != nil {
		return err
	}

	printer.P("%v", summary)
	return nil
}
