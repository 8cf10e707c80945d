package tools

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/asmfreak/arensync/internal/errors"
)

// TarCommand runs an external tar program. The program must understand
// the GNU/BSD options czf, xzvf, -C and -T.
type TarCommand struct {
	Command
}

var _ Archiver = TarCommand{}

// Create runs "tar czf output -C baseDir -T listFile".
func (t TarCommand) Create(ctx context.Context, output, baseDir, listFile string) error {
	return t.Run(ctx, nil, io.Discard, "czf", output, "-C", baseDir, "-T", listFile)
}

// Extract runs "tar xzvf - -C baseDir -T listFile" with the bundle on
// stdin and calls extracted for every name tar reports on stdout.
func (t TarCommand) Extract(ctx context.Context, rd io.Reader, baseDir, listFile string, extracted func(line string)) error {
	out, err := t.Pipe(ctx, rd, "xzvf", "-", "-C", baseDir, "-T", listFile)
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(out)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line != "" && extracted != nil {
			extracted(line)
		}
	}

	serr := sc.Err()
	cerr := out.Close()
	if cerr != nil {
		return cerr
	}
	return errors.WithKind(errors.ToolFailure, errors.Wrap(serr, "read tar output"))
}
