package sftp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/sftp"
)

// SFTP is a backend in a directory accessed via SFTP.
type SFTP struct {
	c *sftp.Client
	p string

	cmd    *exec.Cmd
	result <-chan error

	Config
}

var _ backend.Backend = &SFTP{}
var _ backend.Runner = &SFTP{}

const fileMode = 0600

func startClient(program string, args ...string) (*SFTP, error) {
	debug.Log("start client %v %v", program, args)
	// Connect to a remote host and request the sftp subsystem via the 'ssh'
	// command.  This assumes that passwordless login is correctly configured.
	cmd := exec.Command(program, args...)

	// prefix the errors with the program name
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StderrPipe")
	}

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			fmt.Fprintf(os.Stderr, "subprocess %v: %v\n", program, sc.Text())
		}
	}()

	// get stdin and stdout
	wr, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StdinPipe")
	}
	rd, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StdoutPipe")
	}

	bg, err := backend.StartForeground(cmd)
	if err != nil {
		if errors.Is(err, exec.ErrDot) {
			return nil, errors.Errorf("cannot implicitly run relative executable %v found in current directory, use sshbin: ./<command> to override", cmd.Path)
		}
		return nil, err
	}

	// wait in a different goroutine
	ch := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		debug.Log("ssh command exited, err %v", err)
		for {
			ch <- errors.Wrap(err, "ssh command exited")
		}
	}()

	// open the SFTP session
	client, err := sftp.NewClientPipe(rd, wr)
	if err != nil {
		return nil, errors.Errorf("unable to start the sftp session, error: %v", err)
	}

	err = bg()
	if err != nil {
		return nil, errors.Wrap(err, "bg")
	}

	return &SFTP{c: client, cmd: cmd, result: ch}, nil
}

// clientError returns an error if the client has exited. Otherwise, nil is
// returned immediately.
func (r *SFTP) clientError() error {
	select {
	case err := <-r.result:
		debug.Log("client has exited with err %v", err)
		return backoff.Permanent(err)
	default:
	}

	return nil
}

// Open opens an sftp backend as described by the config by running
// "ssh" with the appropriate arguments (or cfg.Command, if set). The
// directory is created if it does not exist yet.
func Open(_ context.Context, cfg Config) (*SFTP, error) {
	debug.Log("open backend with config %#v", cfg)

	cmd, args, err := buildSSHCommand(cfg)
	if err != nil {
		return nil, err
	}

	sftp, err := startClient(cmd, args...)
	if err != nil {
		debug.Log("unable to start program: %v", err)
		return nil, err
	}

	sftp.Config = cfg
	sftp.p = cfg.Path

	if err := sftp.mkdirAll(sftp.p, 0700); err != nil {
		_ = sftp.Close()
		return nil, err
	}

	return sftp, nil
}

// sshArgs returns the ssh program and the arguments that select the host.
func sshArgs(cfg Config) (cmd string, args []string, err error) {
	program := cfg.SSH
	if program == "" {
		program = "ssh"
	}

	cmd, args, err = backend.SplitShellArgs(program)
	if err != nil {
		return "", nil, err
	}

	args = append(args, cfg.Host)
	if cfg.Port != "" {
		args = append(args, "-p", cfg.Port)
	}
	if cfg.User != "" {
		args = append(args, "-l", cfg.User)
	}
	return cmd, args, nil
}

func buildSSHCommand(cfg Config) (cmd string, args []string, err error) {
	if cfg.Command != "" {
		return backend.SplitShellArgs(cfg.Command)
	}

	cmd, args, err = sshArgs(cfg)
	if err != nil {
		return "", nil, err
	}

	args = append(args, "-s", "sftp")
	return cmd, args, nil
}

// buildRunCommand returns the ssh command line that runs program with args
// in the directory of the backend on the server.
func buildRunCommand(cfg Config, program string, args ...string) (cmd string, sargs []string, err error) {
	if cfg.Command != "" {
		return "", nil, backend.ErrRunUnsupported
	}

	cmd, sargs, err = sshArgs(cfg)
	if err != nil {
		return "", nil, err
	}

	remote := "cd " + backend.ShellQuote(cfg.Path) + " && " + backend.ShellQuote(append([]string{program}, args...)...)
	sargs = append(sargs, "--", remote)
	return cmd, sargs, nil
}

// Location returns this backend's location.
func (r *SFTP) Location() string {
	host := r.Host
	if r.User != "" {
		host = r.User + "@" + host
	}
	return "sftp:" + host + ":" + r.p
}

// IsNotExist returns true if the error is caused by a not existing file.
func (r *SFTP) IsNotExist(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}

	var statusError *sftp.StatusError
	if errors.As(err, &statusError) {
		return statusError.Code == uint32(sftp.ErrSSHFxNoSuchFile)
	}
	return false
}

// IsPermanentError returns true for missing files, denied permissions and
// an exited ssh process.
func (r *SFTP) IsPermanentError(err error) bool {
	return r.IsNotExist(err) || errors.Is(err, os.ErrPermission)
}

func (r *SFTP) mkdirAll(dir string, mode os.FileMode) error {
	// check if directory already exists
	fi, err := r.c.Lstat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}

		return errors.Errorf("mkdirAll(%s): entry exists but is not a directory", dir)
	}

	// create parent directories
	errMkdirAll := r.mkdirAll(path.Dir(dir), mode)

	// create directory
	errMkdir := r.c.Mkdir(dir)

	// test if directory was created successfully
	fi, err = r.c.Lstat(dir)
	if err != nil {
		// return previous errors
		return errors.Errorf("mkdirAll(%s): unable to create directories: %v, %v", dir, errMkdirAll, errMkdir)
	}

	if !fi.IsDir() {
		return errors.Errorf("mkdirAll(%s): entry exists but is not a directory", dir)
	}

	// set mode
	return r.c.Chmod(dir, mode)
}

// Join joins the given paths and cleans them afterwards. This always uses
// forward slashes, which is required by sftp.
func Join(parts ...string) string {
	return path.Clean(path.Join(parts...))
}

func (r *SFTP) filename(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return "", backoff.Permanent(errors.Errorf("invalid object name %q", name))
	}
	return Join(r.p, name), nil
}

func tempSuffix() string {
	var nonce [16]byte
	_, err := rand.Read(nonce[:])
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(nonce[:])
}

// Save stores data in the backend under name. The data is written to a
// temporary file first, which is renamed afterwards.
func (r *SFTP) Save(_ context.Context, name string, rd io.Reader) (err error) {
	debug.Log("Save %v", name)
	if err := r.clientError(); err != nil {
		return err
	}

	filename, err := r.filename(name)
	if err != nil {
		return err
	}
	tmpFilename := filename + "-tmp-" + tempSuffix()

	// create new file
	f, err := r.c.OpenFile(tmpFilename, os.O_CREATE|os.O_EXCL|os.O_WRONLY)
	if err != nil {
		return errors.Wrap(err, "OpenFile")
	}

	defer func() {
		if err == nil {
			return
		}

		// Try not to leave a partial file behind.
		rmErr := r.c.Remove(f.Name())
		if rmErr != nil {
			debug.Log("sftp: failed to remove broken file %v: %v",
				f.Name(), rmErr)
		}
	}()

	// save data
	_, err = f.ReadFrom(rd)
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "Write")
	}

	err = f.Close()
	if err != nil {
		return errors.Wrap(err, "Close")
	}

	if err = r.c.Chmod(tmpFilename, fileMode); err != nil {
		return errors.Wrap(err, "Chmod")
	}

	// PosixRename replaces an existing file, Rename needs it removed first
	err = r.c.PosixRename(tmpFilename, filename)
	if err != nil {
		debug.Log("PosixRename failed: %v", err)
		_ = r.c.Remove(filename)
		err = r.c.Rename(tmpFilename, filename)
	}
	return errors.Wrap(err, "Rename")
}

// Load runs fn with a reader that yields the contents of the object.
func (r *SFTP) Load(ctx context.Context, name string, fn func(rd io.Reader) error) error {
	return backend.DefaultLoad(ctx, name, r.openReader, fn)
}

func (r *SFTP) openReader(_ context.Context, name string) (io.ReadCloser, error) {
	debug.Log("Load %v", name)
	if err := r.clientError(); err != nil {
		return nil, err
	}

	filename, err := r.filename(name)
	if err != nil {
		return nil, err
	}

	f, err := r.c.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %v", name)
	}
	return f, nil
}

// Remove removes the object name.
func (r *SFTP) Remove(_ context.Context, name string) error {
	debug.Log("Remove(%v)", name)
	if err := r.clientError(); err != nil {
		return err
	}

	filename, err := r.filename(name)
	if err != nil {
		return err
	}

	return errors.Wrapf(r.c.Remove(filename), "remove %v", name)
}

// List runs fn for each regular file in the directory.
func (r *SFTP) List(ctx context.Context, fn func(backend.FileInfo) error) error {
	debug.Log("List %v", r.p)
	if err := r.clientError(); err != nil {
		return err
	}

	entries, err := r.c.ReadDir(r.p)
	if r.IsNotExist(err) {
		return nil
	}
	if err != nil {
		// sftp client does not specify dir name on error, so add it here
		return errors.Wrapf(err, "(%v)", r.p)
	}

	for _, fi := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !fi.Mode().IsRegular() || strings.Contains(fi.Name(), "-tmp-") {
			continue
		}

		err := fn(backend.FileInfo{Name: fi.Name(), Size: fi.Size()})
		if err != nil {
			return err
		}
	}

	return ctx.Err()
}

// Run executes program in the directory of the backend on the server, using
// a separate ssh connection.
func (r *SFTP) Run(ctx context.Context, program string, args ...string) ([]byte, error) {
	cmdName, cmdArgs, err := buildRunCommand(r.Config, program, args...)
	if err != nil {
		return nil, err
	}

	debug.Log("Run %v %v", cmdName, cmdArgs)
	cmd := exec.CommandContext(ctx, cmdName, cmdArgs...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if err != nil {
		return out.Bytes(), errors.Wrapf(err, "%v on %v", program, r.Host)
	}
	return out.Bytes(), nil
}

var closeTimeout = 2 * time.Second

// Close closes the sftp connection and terminates the underlying command.
func (r *SFTP) Close() error {
	debug.Log("Close")
	if r == nil {
		return nil
	}

	err := r.c.Close()
	debug.Log("Close returned error %v", err)

	// wait for closeTimeout before killing the process
	select {
	case err := <-r.result:
		return err
	case <-time.After(closeTimeout):
	}

	if err := r.cmd.Process.Kill(); err != nil {
		return err
	}

	// get the error, but ignore it
	<-r.result
	return nil
}
