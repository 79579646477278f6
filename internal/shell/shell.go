// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Utility to execute external programs

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// pipeWaitDelay bounds how long output is still read after the program exited or was
// killed, in case something it started keeps the pipes open.
const pipeWaitDelay = 2 * time.Second

// ExecBuilder configures a single subprocess invocation.
type ExecBuilder struct {
	ctx            context.Context
	program        string
	args           []string
	stdoutLogLevel logrus.Level
	stderrLogLevel logrus.Level
	discardStderr  bool
}

// NewExecBuilder creates a builder that will run program with args.
func NewExecBuilder(program string, args ...string) ExecBuilder {
	return ExecBuilder{
		ctx:            context.Background(),
		program:        program,
		args:           args,
		stdoutLogLevel: logrus.TraceLevel,
		stderrLogLevel: logrus.DebugLevel,
	}
}

// Context binds the subprocess to ctx. Cancelling it kills the process.
func (b ExecBuilder) Context(ctx context.Context) ExecBuilder {
	b.ctx = ctx
	return b
}

// LogLevel sets the level each captured output line is logged at.
func (b ExecBuilder) LogLevel(stdoutLogLevel, stderrLogLevel logrus.Level) ExecBuilder {
	b.stdoutLogLevel = stdoutLogLevel
	b.stderrLogLevel = stderrLogLevel
	return b
}

// DiscardStderr drops the program's stderr instead of capturing it.
func (b ExecBuilder) DiscardStderr() ExecBuilder {
	b.discardStderr = true
	return b
}

// ExecuteCaptureOutput runs the program to completion and returns its stdout and stderr
// unmodified. Stdin is connected to the null device. A nonzero exit is reported as an
// *exec.ExitError; any other error means the program could not be run at all, or was
// interrupted by its context.
//
// The program runs in its own process group, and cancelling the context kills the whole
// group so nothing it started is left behind.
func (b ExecBuilder) ExecuteCaptureOutput() (stdout, stderr string, err error) {
	cmd := exec.CommandContext(b.ctx, b.program, b.args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
	cmd.WaitDelay = pipeWaitDelay

	var outBuf, errBuf bytes.Buffer
	outLog := &lineLogger{buf: &outBuf, level: b.stdoutLogLevel}
	cmd.Stdout = outLog

	errLog := &lineLogger{buf: &errBuf, level: b.stderrLogLevel}
	if !b.discardStderr {
		cmd.Stderr = errLog
	}

	logger.Log.Debugf("Executing: %s %s", b.program, strings.Join(b.args, " "))

	err = cmd.Start()
	if err != nil {
		return "", "", fmt.Errorf("failed to start (%s):\n%w", b.program, err)
	}

	err = cmd.Wait()
	outLog.flush()
	errLog.flush()

	if err != nil && b.ctx.Err() != nil {
		err = fmt.Errorf("(%s) was interrupted:\n%w", b.program, b.ctx.Err())
	}

	return outBuf.String(), errBuf.String(), err
}

// killProcessGroup kills every process in the group led by process.
func killProcessGroup(process *os.Process) (err error) {
	err = unix.Kill(-process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return
}

// lineLogger collects output into buf while logging each complete line.
type lineLogger struct {
	buf     *bytes.Buffer
	level   logrus.Level
	pending []byte
}

func (l *lineLogger) Write(p []byte) (n int, err error) {
	l.buf.Write(p)
	l.pending = append(l.pending, p...)

	for {
		end := bytes.IndexByte(l.pending, '\n')
		if end < 0 {
			break
		}
		l.log(l.pending[:end])
		l.pending = l.pending[end+1:]
	}

	return len(p), nil
}

// flush logs a final line that was not terminated by a newline.
func (l *lineLogger) flush() {
	if len(l.pending) > 0 {
		l.log(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) log(line []byte) {
	logger.Log.Log(l.level, strings.TrimRight(string(line), "\r"))
}
