package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/rileyhilliard/crmon/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.newSSHSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	exitCode, err = exitStatus(session.Run(cmd), cmd)
	if err != nil {
		return nil, nil, -1, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStreamContext runs cmd and copies its stdout to stdout chunk by chunk
// on the calling goroutine. When ctx is cancelled the command is sent
// SIGTERM and the session is closed, which unblocks the pending read.
func (c *Client) ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	session, err := c.newSSHSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	out, err := session.StdoutPipe()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH, "Failed to open stdout pipe", "")
	}
	if stderr != nil {
		session.Stderr = stderr
	}

	if err := session.Start(cmd); err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to start command: %s", cmd),
			"Check if the command exists on the remote host.")
	}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGTERM)
			_ = session.Close()
		case <-finished:
		}
	}()

	buf := make([]byte, 32*1024)
	for {
		n, rerr := out.Read(buf)
		if n > 0 && stdout != nil {
			if _, werr := stdout.Write(buf[:n]); werr != nil {
				_ = session.Close()
				return -1, werr
			}
		}
		if rerr != nil {
			break
		}
	}

	werr := session.Wait()
	if ctx.Err() != nil {
		return ExitTerminated, nil
	}
	return exitStatus(werr, cmd)
}

// exitStatus maps the result of Run or Wait to an exit code. A command
// that ran and failed is not an error.
func exitStatus(err error, cmd string) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Command ended without an exit status: %s", cmd),
			"The connection was probably lost.")
	}
	return -1, errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("Failed to execute command: %s", cmd),
		"Check if the command exists on the remote host.")
}
