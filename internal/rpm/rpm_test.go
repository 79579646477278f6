// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpm_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/rpm"
	"github.com/nphilipp/rpmspectool/internal/rpm/rpmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

func TestEvalMacro(t *testing.T) {
	tests := []struct {
		macro    string
		expected string
	}{
		{macro: rpm.TopDirDefine, expected: rpmtest.FakeTopDir + "\n"},
		{macro: rpm.SourceDirDefine, expected: rpmtest.FakeTopDir + "/SOURCES\n"},
		{macro: rpm.RpmDirDefine, expected: rpmtest.FakeTopDir + "/RPMS\n"},
		{macro: "unknown_macro", expected: ""},
	}

	toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{})
	for _, tt := range tests {
		t.Run(tt.macro, func(t *testing.T) {
			value, err := toolchain.EvalMacro(context.Background(), tt.macro)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}

	calls := toolchain.RpmCalls(t)
	if assert.Len(t, calls, len(tests)) {
		assert.Equal(t, "--eval %_topdir", calls[0])
	}
}

func TestEvalMacroIgnoresExitCode(t *testing.T) {
	script := filepath.Join(t.TempDir(), "rpm")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho partial\necho broken >&2\nexit 4\n"), 0o755))

	toolchain := &rpm.Toolchain{RpmProgram: script}
	value, err := toolchain.EvalMacro(context.Background(), rpm.TopDirDefine)

	assert.NoError(t, err)
	assert.Equal(t, "partial\n", value)
}

func TestEvalMacroMissingToolchain(t *testing.T) {
	toolchain := &rpm.Toolchain{RpmProgram: filepath.Join(t.TempDir(), "no-rpm-here")}

	_, err := toolchain.EvalMacro(context.Background(), rpm.TopDirDefine)

	var toolchainErr *rpm.ToolchainError
	if assert.True(t, errors.As(err, &toolchainErr)) {
		assert.Equal(t, toolchain.RpmProgram, toolchainErr.Program)
	}
}

func TestVerify(t *testing.T) {
	fake := rpmtest.NewFakeToolchain(t, rpmtest.Options{})
	missing := filepath.Join(t.TempDir(), "no-rpmbuild-here")

	tests := []struct {
		name            string
		toolchain       *rpm.Toolchain
		expectedMissing string
	}{
		{
			name:      "both found",
			toolchain: fake.Toolchain,
		},
		{
			name:            "rpmbuild missing",
			toolchain:       &rpm.Toolchain{RpmProgram: fake.RpmProgram, RpmBuildProgram: missing},
			expectedMissing: missing,
		},
		{
			name:            "not on PATH",
			toolchain:       &rpm.Toolchain{RpmProgram: "rpmspectool-definitely-not-rpm", RpmBuildProgram: fake.RpmBuildProgram},
			expectedMissing: "rpmspectool-definitely-not-rpm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.toolchain.Verify()
			if tt.expectedMissing == "" {
				assert.NoError(t, err)
				return
			}

			var toolchainErr *rpm.ToolchainError
			if assert.True(t, errors.As(err, &toolchainErr)) {
				assert.Equal(t, tt.expectedMissing, toolchainErr.Program)
				assert.ErrorIs(t, err, exec.ErrNotFound)
			}
		})
	}
	assert.Empty(t, fake.RpmCalls(t))
}

func TestBuildPrepArguments(t *testing.T) {
	toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{})
	specPath := filepath.Join(t.TempDir(), "test.spec")
	require.NoError(t, os.WriteFile(specPath, []byte("Name: test\n%prep\ncat << EOF\nSource0: a\nEOF\n"), 0o644))

	stdout, err := toolchain.BuildPrep(context.Background(), specPath, "/scratch")
	require.NoError(t, err)
	assert.Equal(t, "Source0: a\n", stdout)

	calls := toolchain.RpmBuildCalls(t)
	require.Len(t, calls, 1)
	expected := strings.Join([]string{
		"--define _topdir /scratch",
		"--define _sourcedir /scratch",
		"--define _builddir /scratch",
		"--define _srcrpmdir /scratch",
		"--define _rpmdir /scratch",
		"--nodeps -bp " + specPath,
	}, " ")
	assert.Equal(t, expected, calls[0])
}

func TestBuildPrepFailure(t *testing.T) {
	toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{PrepExitCode: 11})

	_, err := toolchain.BuildPrep(context.Background(), "/dev/null", t.TempDir())

	var evalErr *rpm.EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "/dev/null", evalErr.SpecPath)
	assert.Equal(t, 11, evalErr.ExitCode)
	assert.Contains(t, evalErr.Stderr, "forced failure")
	assert.Contains(t, evalErr.Error(), "/dev/null")
}

func TestBuildPrepEmptySpec(t *testing.T) {
	toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{})

	_, err := toolchain.BuildPrep(context.Background(), "/dev/null", t.TempDir())

	var evalErr *rpm.EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.NotZero(t, evalErr.ExitCode)
}

func TestBuildPrepMissingToolchain(t *testing.T) {
	toolchain := &rpm.Toolchain{RpmBuildProgram: filepath.Join(t.TempDir(), "no-rpmbuild-here")}

	_, err := toolchain.BuildPrep(context.Background(), "/dev/null", t.TempDir())

	var toolchainErr *rpm.ToolchainError
	assert.True(t, errors.As(err, &toolchainErr))

	var evalErr *rpm.EvalError
	assert.False(t, errors.As(err, &evalErr))
}

func TestBuildPrepCancelled(t *testing.T) {
	toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := toolchain.BuildPrep(ctx, "/dev/null", t.TempDir())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNeedsConditionalsQuirk(t *testing.T) {
	tests := []struct {
		name       string
		needsQuirk bool
	}{
		{name: "modern rpm", needsQuirk: false},
		{name: "old rpm", needsQuirk: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{NeedsQuirk: tt.needsQuirk})

			needQuirk, err := toolchain.NeedsConditionalsQuirk(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, tt.needsQuirk, needQuirk)

			calls := toolchain.RpmCalls(t)
			require.Len(t, calls, 1)
			assert.Equal(t, toolchain.RpmProgram+" --eval %{?defined:1}%{!?defined:0}", calls[0])
		})
	}
}

func TestNeedsConditionalsQuirkIsMemoized(t *testing.T) {
	toolchain := rpmtest.NewFakeToolchain(t, rpmtest.Options{NeedsQuirk: true})
	sameProgram := &rpm.Toolchain{RpmProgram: toolchain.RpmProgram}

	for i := 0; i < 3; i++ {
		needQuirk, err := toolchain.NeedsConditionalsQuirk(context.Background())
		assert.NoError(t, err)
		assert.True(t, needQuirk)
	}
	needQuirk, err := sameProgram.NeedsConditionalsQuirk(context.Background())
	assert.NoError(t, err)
	assert.True(t, needQuirk)

	assert.Len(t, toolchain.RpmCalls(t), 1)

	// A different executable gets its own probe.
	other := rpmtest.NewFakeToolchain(t, rpmtest.Options{NeedsQuirk: false})
	needQuirk, err = other.NeedsConditionalsQuirk(context.Background())
	assert.NoError(t, err)
	assert.False(t, needQuirk)
	assert.Len(t, other.RpmCalls(t), 1)
}

func TestNeedsConditionalsQuirkFailureIsNotCached(t *testing.T) {
	rpmPath := filepath.Join(t.TempDir(), "rpm")
	toolchain := &rpm.Toolchain{RpmProgram: rpmPath}

	_, err := toolchain.NeedsConditionalsQuirk(context.Background())
	var toolchainErr *rpm.ToolchainError
	require.True(t, errors.As(err, &toolchainErr))

	require.NoError(t, os.WriteFile(rpmPath, []byte("#!/bin/sh\necho 1\n"), 0o755))

	needQuirk, err := toolchain.NeedsConditionalsQuirk(context.Background())
	assert.NoError(t, err)
	assert.False(t, needQuirk)
}
