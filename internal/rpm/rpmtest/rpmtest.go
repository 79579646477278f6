// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package rpmtest provides stand-in rpm and rpmbuild executables for tests.
//
// The fake rpm answers --eval queries for the build path macros and the conditionals
// probe. The fake rpmbuild mimics a prep-only build of the synthetic spec files written
// by rpmspectool: it prints the body of the %prep here-document with %{_sourcedir}
// replaced by the last value defined for it in the spec file.
package rpmtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nphilipp/rpmspectool/internal/rpm"
)

// FakeTopDir is the value the fake rpm reports for %_topdir.
const FakeTopDir = "/fake/rpmbuild"

// Options control how the fake toolchain behaves.
type Options struct {
	// NeedsQuirk makes the fake rpm answer the conditionals probe with "0".
	NeedsQuirk bool
	// PrepExitCode, when nonzero, makes the fake rpmbuild fail with this exit code.
	PrepExitCode int
}

// FakeToolchain is a toolchain backed by shell scripts in a temporary directory.
type FakeToolchain struct {
	*rpm.Toolchain
	Dir string
}

const fakeRpmTemplate = `#!/bin/sh
echo "$*" >> '%[1]s'
for arg do
	case "$arg" in
	'%%_topdir') echo '%[2]s' ;;
	'%%_sourcedir') echo '%[2]s/SOURCES' ;;
	'%%_builddir') echo '%[2]s/BUILD' ;;
	'%%_srcrpmdir') echo '%[2]s/SRPMS' ;;
	'%%_rpmdir') echo '%[2]s/RPMS' ;;
	'%%{?defined:1}%%{!?defined:0}') echo '%[3]s' ;;
	esac
done
echo 'warning: fake rpm' >&2
exit 0
`

const fakeRpmBuildTemplate = `#!/bin/sh
echo "$*" >> '%[1]s'
eval "spec=\${$#}"
if [ %[2]d -ne 0 ]; then
	echo "error: forced failure" >&2
	exit %[2]d
fi
if ! grep -qi '^Name:' "$spec"; then
	echo "error: Name field must be present in package: (main package)" >&2
	exit 1
fi
echo "Executing(%%prep): /bin/sh -e /var/tmp/rpm-tmp.fake" >&2
awk '
/^%%define _sourcedir / { srcdir = substr($0, 20); next }
inbody && $0 == delim { inbody = 0; next }
inbody { gsub(/%%\{_sourcedir\}/, srcdir); print; next }
/^cat << / { delim = substr($0, 8); inbody = 1 }
' "$spec"
`

// NewFakeToolchain writes fake rpm and rpmbuild scripts into a fresh temporary directory.
func NewFakeToolchain(t *testing.T, opts Options) *FakeToolchain {
	t.Helper()

	dir := t.TempDir()
	probeAnswer := "1"
	if opts.NeedsQuirk {
		probeAnswer = "0"
	}

	rpmPath := filepath.Join(dir, "rpm")
	rpmBuildPath := filepath.Join(dir, "rpmbuild")

	writeScript(t, rpmPath, fmt.Sprintf(fakeRpmTemplate, rpmPath+".log", FakeTopDir, probeAnswer))
	writeScript(t, rpmBuildPath, fmt.Sprintf(fakeRpmBuildTemplate, rpmBuildPath+".log", opts.PrepExitCode))

	return &FakeToolchain{
		Toolchain: &rpm.Toolchain{
			RpmProgram:      rpmPath,
			RpmBuildProgram: rpmBuildPath,
		},
		Dir: dir,
	}
}

// RpmCalls returns the argument lists the fake rpm was called with, one per call.
func (f *FakeToolchain) RpmCalls(t *testing.T) []string {
	t.Helper()
	return readCalls(t, f.RpmProgram+".log")
}

// RpmBuildCalls returns the argument lists the fake rpmbuild was called with, one per call.
func (f *FakeToolchain) RpmBuildCalls(t *testing.T) []string {
	t.Helper()
	return readCalls(t, f.RpmBuildProgram+".log")
}

func writeScript(t *testing.T, path, content string) {
	t.Helper()

	err := os.WriteFile(path, []byte(content), 0o755)
	if err != nil {
		t.Fatalf("failed to write fake tool (%s): %v", path, err)
	}
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()

	content, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read call log (%s): %v", logPath, err)
	}

	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}
