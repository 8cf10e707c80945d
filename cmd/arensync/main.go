package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
)

func init() {
	// don't import `go.uber.org/automaxprocs` to disable the log output
	_, _ = maxprocs.Set()
}

var version = "0.3.0-dev (compiled manually)"

func newRootCommand(gopts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arensync",
		Short: "Incremental encrypted backups to a remote directory",
		Long: `
arensync uploads the files of a directory that changed since the last run as
an encrypted archive to a remote directory, together with a manifest of the
archived files. On restore, the manifests of all archives are merged and the
latest version of every file is extracted.

Every file matching ` + "`*.conf`" + ` in the configuration directory is a profile.
`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return gopts.PreRun()
		},
	}

	gopts.AddFlags(cmd.PersistentFlags())
	registerProfiling(cmd, gopts.stderr)

	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		newUploadCommand(gopts),
		newRestoreCommand(gopts),
		newCheckCommand(gopts),
		newHashCommand(gopts),
		newVersionCommand(gopts),
	)

	return cmd
}

// exitCode returns the exit status for the error of a command.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func exitMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.IsFatal(err):
		return err.Error()
	default:
		return fmt.Sprintf("%+v", err)
	}
}

func main() {
	// install custom global logger into a buffer, if an error occurs
	// we can show the logs
	logBuffer := bytes.NewBuffer(nil)
	log.SetOutput(logBuffer)

	debug.Log("main %#v", os.Args)
	debug.Log("arensync %s compiled with %v on %v/%v",
		version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	gopts := newGlobalOptions()
	ctx := createGlobalContext(gopts)
	err := newRootCommand(gopts).ExecuteContext(ctx)
	if err == nil {
		err = ctx.Err()
	}

	code := exitCode(err)
	if code != 0 {
		msg := exitMessage(err)
		if code == 1 && !errors.IsFatal(err) && logBuffer.Len() > 0 {
			msg += "\nalso, the following messages were logged by a library:\n"
			sc := bufio.NewScanner(logBuffer)
			for sc.Scan() {
				msg += fmt.Sprintln(sc.Text())
			}
		}
		_, _ = fmt.Fprintln(gopts.stderr, msg)
	}
	Exit(code)
}
