package main

import (
	"github.com/spf13/cobra"
)

func newCheckCommand(gopts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [flags] [profile-file...]",
		Short: "Check the configuration of the profiles",
		Long: `
The "check" command validates each profile without processing any file: the
work directory must exist, the temporary directory must be writable, the
encryption tool must be able to encrypt a test file and the remote directory
must accept and delete a test file.

EXIT STATUS
===========

Exit status is 0 if all profiles are usable.
Exit status is 1 if any profile failed.
`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(cmd.Context(), gopts, args, nil)
		},
	}
	return cmd
}
