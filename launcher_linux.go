// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package efdstream

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// ExecLauncher starts a child with os/exec.
// The child is killed, if the thread, which started it, exits.
// Nil streams are inherited from the current process.
type ExecLauncher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env is the child's environment. If nil, the current environment is used.
	Env []string
	Dir string
}

type execProcess struct {
	cmd *exec.Cmd
}

// Launch starts the child. ctx is only checked before the start,
// it does not limit the lifetime of the child.
func (l ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := assignSlots(spec.Assignments)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.ExtraFiles = files
	cmd.Stdin = orReader(l.Stdin, os.Stdin)
	cmd.Stdout = orWriter(l.Stdout, os.Stdout)
	cmd.Stderr = orWriter(l.Stderr, os.Stderr)
	cmd.Env = l.Env
	cmd.Dir = l.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", spec.Program)
	}
	return &execProcess{cmd: cmd}, nil
}

func orReader(r, def io.Reader) io.Reader {
	if r == nil {
		return def
	}
	return r
}

func orWriter(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}
