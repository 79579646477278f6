// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/rpm/rpmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listSpec = `Name: foo
Version: 1.0
Release: 1
Summary: Example package
License: MIT
Source0: https://example.com/foo-1.0.tar.gz
Source1: foo.conf
Patch1: https://example.com/fix.patch

%description
Example.
`

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

type testRun struct {
	exitCode int
	stdout   string
	stderr   string
}

// runCLI runs the tool against a fake toolchain with its temporary files in tmpDir.
func runCLI(t *testing.T, tmpDir string, opts rpmtest.Options, args ...string) (result testRun) {
	t.Helper()
	t.Setenv("TMPDIR", tmpDir)

	toolchain := rpmtest.NewFakeToolchain(t, opts)
	var stdout, stderr bytes.Buffer

	fullArgs := append([]string{"--rpm", toolchain.RpmProgram, "--rpmbuild", toolchain.RpmBuildProgram}, args...)
	result.exitCode = newCLI("rpmspectool", &stdout, &stderr).run(context.Background(), fullArgs)
	result.stdout = stdout.String()
	result.stderr = stderr.String()
	return
}

func writeTestSpec(t *testing.T, content string) string {
	t.Helper()

	specPath := filepath.Join(t.TempDir(), "foo.spec")
	require.NoError(t, os.WriteFile(specPath, []byte(content), 0o644))
	return specPath
}

func TestList(t *testing.T) {
	specPath := writeTestSpec(t, listSpec)

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "everything",
			args:     []string{"list", specPath},
			expected: "Source0: https://example.com/foo-1.0.tar.gz\nSource1: foo.conf\nPatch1: https://example.com/fix.patch\n",
		},
		{
			name:     "all sources",
			args:     []string{"list", "-S", specPath},
			expected: "Source0: https://example.com/foo-1.0.tar.gz\nSource1: foo.conf\n",
		},
		{
			name:     "all patches",
			args:     []string{"list", "--patches", specPath},
			expected: "Patch1: https://example.com/fix.patch\n",
		},
		{
			name:     "listed indexes",
			args:     []string{"list", "-s", "1", "-s", "5-7", "-p", "0,1", specPath},
			expected: "Source1: foo.conf\nPatch1: https://example.com/fix.patch\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runCLI(t, t.TempDir(), rpmtest.Options{}, tt.args...)

			assert.Equal(t, exitOK, result.exitCode, result.stderr)
			assert.Equal(t, tt.expected, result.stdout)
		})
	}
}

func TestListRemovesTemporaryDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	result := runCLI(t, tmpDir, rpmtest.Options{}, "list", writeTestSpec(t, listSpec))
	require.Equal(t, exitOK, result.exitCode, result.stderr)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDebugKeepsTemporaryDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	result := runCLI(t, tmpDir, rpmtest.Options{}, "--debug", "list", writeTestSpec(t, listSpec))
	require.Equal(t, exitOK, result.exitCode, result.stderr)

	matches, err := filepath.Glob(filepath.Join(tmpDir, "rpmspectool_*", "rpmspectool-foo.spec"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestEvalErrorExitCode(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		expectedLines []string
		rpmError      bool
	}{
		{
			name:          "quiet",
			args:          []string{"list", "/dev/null"},
			expectedLines: []string{"Error parsing intermediate spec file.\n"},
		},
		{
			name:          "verbose",
			args:          []string{"list", "-v", "/dev/null"},
			expectedLines: []string{"Error parsing intermediate spec file.\n", "RPM error:\n", "Name field must be present"},
			rpmError:      true,
		},
		{
			name:          "debug names the file",
			args:          []string{"--debug", "get", "/dev/null"},
			expectedLines: []string{"Error parsing intermediate spec file '", "rpmspectool-null'.\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runCLI(t, t.TempDir(), rpmtest.Options{}, tt.args...)

			assert.Equal(t, exitEvalError, result.exitCode)
			assert.Empty(t, result.stdout)
			for _, line := range tt.expectedLines {
				assert.Contains(t, result.stderr, line)
			}
			if !tt.rpmError {
				assert.NotContains(t, result.stderr, "RPM error:")
			}
		})
	}
}

func TestGetDryRun(t *testing.T) {
	destDir := t.TempDir()

	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "-n", "-C", destDir, writeTestSpec(t, listSpec))

	require.Equal(t, exitOK, result.exitCode, result.stderr)
	expected := "NOT downloading 'https://example.com/foo-1.0.tar.gz' to '" + filepath.Join(destDir, "foo-1.0.tar.gz") + "'\n" +
		"NOT downloading 'https://example.com/fix.patch' to '" + filepath.Join(destDir, "fix.patch") + "'\n"
	assert.Equal(t, expected, result.stdout)
	assert.Empty(t, dirNames(t, destDir))
}

func TestGet(t *testing.T) {
	server := newFileServer(t)
	spec := "Name: foo\n" +
		"Source0: " + server.URL + "/a.tar.gz\n" +
		"Source1: local.conf\n" +
		"Patch0: " + server.URL + "/c.patch\n" +
		"%prep\n"
	destDir := t.TempDir()

	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "--directory", destDir, writeTestSpec(t, spec))

	require.Equal(t, exitOK, result.exitCode, result.stderr)
	assert.Equal(t, []string{"a.tar.gz", "c.patch"}, dirNames(t, destDir))
	assert.Contains(t, result.stdout, "Downloading '"+server.URL+"/a.tar.gz' to '"+filepath.Join(destDir, "a.tar.gz")+"'\n")
}

func TestGetSourceDir(t *testing.T) {
	server := newFileServer(t)
	spec := "Name: foo\nSource0: " + server.URL + "/a.tar.gz\n%prep\n"
	sourceDir := filepath.Join(t.TempDir(), "SOURCES")

	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "-R", "-d", "_sourcedir "+sourceDir, writeTestSpec(t, spec))

	require.Equal(t, exitOK, result.exitCode, result.stderr)
	assert.Equal(t, []string{"a.tar.gz"}, dirNames(t, sourceDir))
}

func TestGetExistingFile(t *testing.T) {
	server := newFileServer(t)
	spec := "Name: foo\nSource0: " + server.URL + "/a.tar.gz\n%prep\n"
	specPath := writeTestSpec(t, spec)
	destDir := t.TempDir()
	existing := filepath.Join(destDir, "a.tar.gz")
	require.NoError(t, os.WriteFile(existing, []byte("old\n"), 0o644))

	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "-C", destDir, specPath)
	assert.Equal(t, exitFailure, result.exitCode)

	result = runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "-f", "-C", destDir, specPath)
	require.Equal(t, exitOK, result.exitCode, result.stderr)

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "content of a.tar.gz\n", string(content))
}

func TestGetFailure(t *testing.T) {
	server := newFileServer(t)
	spec := "Name: foo\nSource0: " + server.URL + "/missing.tar.gz\nSource1: " + server.URL + "/a.tar.gz\n%prep\n"
	destDir := t.TempDir()

	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "-C", destDir, writeTestSpec(t, spec))

	assert.Equal(t, exitFailure, result.exitCode)
	assert.Empty(t, dirNames(t, destDir))
}

func TestUsageErrors(t *testing.T) {
	specPath := writeTestSpec(t, listSpec)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown command", args: []string{"frobnicate"}},
		{name: "missing spec file", args: []string{"list"}},
		{name: "sources and source", args: []string{"list", "-S", "-s", "1", specPath}},
		{name: "patches and patch", args: []string{"list", "-P", "-p", "1", specPath}},
		{name: "bad index list", args: []string{"list", "-s", "x", specPath}},
		{name: "directory and sourcedir", args: []string{"get", "-C", "/tmp", "-R", specPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runCLI(t, t.TempDir(), rpmtest.Options{}, tt.args...)

			assert.Equal(t, exitFailure, result.exitCode)
			assert.Empty(t, result.stdout)
			assert.NotEmpty(t, result.stderr)
		})
	}
}

func TestHelpAndUsage(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{name: "no command", args: nil, expected: "usage: rpmspectool"},
		{name: "help", args: []string{"--help"}, expected: "usage: rpmspectool"},
		{name: "command help", args: []string{"get", "--help"}, expected: "--dry-run"},
		{name: "version flag", args: []string{"--version"}, expected: "git"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runCLI(t, t.TempDir(), rpmtest.Options{}, tt.args...)

			assert.Equal(t, exitOK, result.exitCode)
			assert.Empty(t, result.stdout)
			assert.Contains(t, result.stderr, tt.expected)
			assert.NotContains(t, result.stderr, "--dryrun")
		})
	}
}

func TestGetDryRunAlias(t *testing.T) {
	destDir := t.TempDir()

	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "get", "--dryrun", "-C", destDir, writeTestSpec(t, listSpec))

	require.Equal(t, exitOK, result.exitCode, result.stderr)
	assert.Contains(t, result.stdout, "NOT downloading 'https://example.com/foo-1.0.tar.gz'")
	assert.Empty(t, dirNames(t, destDir))
}

func TestMissingSpecFile(t *testing.T) {
	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "list", filepath.Join(t.TempDir(), "missing.spec"))

	assert.Equal(t, exitFailure, result.exitCode)
	assert.Empty(t, result.stdout)
}

func TestVersion(t *testing.T) {
	result := runCLI(t, t.TempDir(), rpmtest.Options{}, "version")

	assert.Equal(t, exitOK, result.exitCode)
	assert.Equal(t, "rpmspectool git\n", result.stdout)
}
