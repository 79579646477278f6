// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpm

import "fmt"

// EvalError reports that rpmbuild could not evaluate a spec file.
type EvalError struct {
	SpecPath string
	ExitCode int
	Stderr   string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("failed to evaluate spec file (%s), rpmbuild exited with code %d", e.SpecPath, e.ExitCode)
}

// ToolchainError reports that an rpm tool could not be run at all, usually because it
// is not installed.
type ToolchainError struct {
	Program string
	Err     error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("failed to run (%s), is it installed?\n%s", e.Program, e.Err)
}

func (e *ToolchainError) Unwrap() error {
	return e.Err
}
