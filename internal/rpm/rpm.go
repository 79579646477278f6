// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nphilipp/rpmspectool/internal/file"
	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/shell"
	"github.com/sirupsen/logrus"
)

const (
	// EvalArgument asks rpm to expand a macro expression.
	EvalArgument = "--eval"

	// DefineArgument specifies a macro definition for rpm tool commands
	DefineArgument = "--define"

	// NoDepsArgument disables build dependency checks
	NoDepsArgument = "--nodeps"

	// PrepOnlyArgument runs a build only up to and including the %prep stage
	PrepOnlyArgument = "-bp"

	// TopDirDefine specifies the top directory option for rpm tool commands
	TopDirDefine = "_topdir"

	// SourceDirDefine specifies the source directory option for rpm tool commands
	SourceDirDefine = "_sourcedir"

	// BuildDirDefine specifies the build directory option for rpm tool commands
	BuildDirDefine = "_builddir"

	// SrpmDirDefine specifies the SRPM output directory option for rpm tool commands
	SrpmDirDefine = "_srcrpmdir"

	// RpmDirDefine specifies the RPM output directory option for rpm tool commands
	RpmDirDefine = "_rpmdir"
)

const (
	rpmProgram      = "rpm"
	rpmBuildProgram = "rpmbuild"
)

// BuildPathDefines lists the macros that decide where rpmbuild reads and writes files,
// in the order they are overridden.
var BuildPathDefines = []string{
	TopDirDefine,
	SourceDirDefine,
	BuildDirDefine,
	SrpmDirDefine,
	RpmDirDefine,
}

// Toolchain names the rpm and rpmbuild executables to drive.
type Toolchain struct {
	RpmProgram      string
	RpmBuildProgram string
}

// DefaultToolchain returns the toolchain found on PATH.
func DefaultToolchain() *Toolchain {
	return &Toolchain{
		RpmProgram:      rpmProgram,
		RpmBuildProgram: rpmBuildProgram,
	}
}

// Verify checks that both programs of the toolchain can be found. A missing program is
// reported as a *ToolchainError.
func (t *Toolchain) Verify() (err error) {
	for _, program := range []string{t.RpmProgram, t.RpmBuildProgram} {
		exists, lookErr := file.CommandExists(program)
		if lookErr != nil {
			return &ToolchainError{Program: program, Err: lookErr}
		}
		if !exists {
			return &ToolchainError{Program: program, Err: exec.ErrNotFound}
		}
	}
	return
}

// EvalMacro returns the raw output of 'rpm --eval %<macro>'. Stderr is discarded and the
// exit status is not checked; only a failure to run rpm at all is reported.
func (t *Toolchain) EvalMacro(ctx context.Context, macro string) (value string, err error) {
	return t.evalExpression(ctx, EvalArgument, "%"+macro)
}

// BuildPrep runs 'rpmbuild -bp' on specFile with every build path pointed at tmpDir and
// returns its stdout. A nonzero exit is reported as an *EvalError.
func (t *Toolchain) BuildPrep(ctx context.Context, specFile, tmpDir string) (stdout string, err error) {
	args := formatDefineArgs(BuildPathDefines, tmpDir)
	args = append(args, NoDepsArgument, PrepOnlyArgument, specFile)

	stdout, stderr, err := shell.NewExecBuilder(t.RpmBuildProgram, args...).
		Context(ctx).
		LogLevel(logrus.TraceLevel, logrus.DebugLevel).
		ExecuteCaptureOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Log.Debugf("%s failed on (%s):\n%s", t.RpmBuildProgram, specFile, stderr)
			return "", &EvalError{
				SpecPath: specFile,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr,
			}
		}
		return "", toolchainError(ctx, t.RpmBuildProgram, err)
	}

	return stdout, nil
}

// evalExpression runs rpm with args, returning stdout verbatim.
func (t *Toolchain) evalExpression(ctx context.Context, args ...string) (stdout string, err error) {
	stdout, _, err = shell.NewExecBuilder(t.RpmProgram, args...).
		Context(ctx).
		DiscardStderr().
		ExecuteCaptureOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Log.Debugf("Ignoring exit code %d from '%s %s'", exitErr.ExitCode(), t.RpmProgram, strings.Join(args, " "))
			return stdout, nil
		}
		return "", toolchainError(ctx, t.RpmProgram, err)
	}

	return stdout, nil
}

// formatDefineArgs generates one '--define "<macro> <value>"' pair per macro.
func formatDefineArgs(macros []string, value string) (args []string) {
	for _, macro := range macros {
		args = append(args, DefineArgument, fmt.Sprintf("%s %s", macro, value))
	}
	return
}

// toolchainError classifies a failure to run program. A cancelled context is not a
// misconfigured environment, so its error is passed through.
func toolchainError(ctx context.Context, program string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &ToolchainError{Program: program, Err: err}
}
