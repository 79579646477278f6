// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpmspec

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nphilipp/rpmspectool/internal/exe"
	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/rpm"
)

const (
	// StdinSpecPath reads the spec file from standard input.
	StdinSpecPath = "-"

	stdinSpecName = "stdin.spec"
)

// Handler evaluates spec files with an rpm toolchain, using a scratch directory for the
// synthetic spec files and as the build tree of the prep-only builds.
type Handler struct {
	toolchain *rpm.Toolchain
	tmpDir    string
}

// NewHandler creates a handler. tmpDir must exist for the lifetime of the handler.
func NewHandler(toolchain *rpm.Toolchain, tmpDir string) *Handler {
	return &Handler{
		toolchain: toolchain,
		tmpDir:    tmpDir,
	}
}

// SyntheticSpecPath returns where EvalSpecFilePath writes the synthetic spec file for specPath.
func (h *Handler) SyntheticSpecPath(specPath string) string {
	name := stdinSpecName
	if specPath != StdinSpecPath {
		name = filepath.Base(specPath)
	}
	return filepath.Join(h.tmpDir, fmt.Sprintf("%s-%s", exe.ToolName, name))
}

// EvalSpecFilePath evaluates the spec file at specPath, or standard input for "-".
func (h *Handler) EvalSpecFilePath(ctx context.Context, specPath string, definitions []string) (result *SourcePatchMap, err error) {
	var in io.Reader
	if specPath == StdinSpecPath {
		in = os.Stdin
	} else {
		specFile, err := os.Open(specPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open spec file (%s):\n%w", specPath, err)
		}
		defer specFile.Close()
		in = specFile
	}

	return h.EvalSpecFile(ctx, in, h.SyntheticSpecPath(specPath), definitions)
}

// EvalSpecFile reads a spec file from in, writes the synthetic spec file to outSpecPath,
// has rpmbuild run its prep stage and returns the Source and Patch URLs it printed.
// Any failure of rpmbuild is returned as an *rpm.EvalError, a toolchain that cannot be
// found as an *rpm.ToolchainError before anything is written.
func (h *Handler) EvalSpecFile(ctx context.Context, in io.Reader, outSpecPath string, definitions []string) (result *SourcePatchMap, err error) {
	err = h.toolchain.Verify()
	if err != nil {
		return
	}

	logger.Log.Debugf("Writing synthetic spec file (%s)", outSpecPath)
	err = h.writeSyntheticSpec(ctx, in, outSpecPath, definitions)
	if err != nil {
		return
	}

	stdout, err := h.toolchain.BuildPrep(ctx, outSpecPath, h.tmpDir)
	if err != nil {
		return
	}

	result = ParseBuildOutput(stdout)
	logger.Log.Debugf("Found %d sources and %d patches, source directory (%s)", len(result.Sources), len(result.Patches), result.SrcDir)
	return
}

func (h *Handler) writeSyntheticSpec(ctx context.Context, in io.Reader, outSpecPath string, definitions []string) (err error) {
	outSpec, err := os.Create(outSpecPath)
	if err != nil {
		return fmt.Errorf("failed to create synthetic spec file (%s):\n%w", outSpecPath, err)
	}
	defer func() {
		closeErr := outSpec.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to write synthetic spec file (%s):\n%w", outSpecPath, closeErr)
		}
	}()

	err = WriteRecipeHeader(ctx, outSpec, h.toolchain, definitions)
	if err != nil {
		return
	}

	preamble, err := ExtractPreamble(in, outSpec)
	if err != nil {
		return
	}

	if !preamble.ReachedDelimiter {
		logger.Log.Warnf("No section start found, using the whole spec file as preamble (%s)", outSpecPath)
	}
	if preamble.ClosedConditionals > 0 {
		logger.Log.Debugf("Closed %d conditional block(s) left open at the end of the preamble", preamble.ClosedConditionals)
	}

	return WriteRecipeTrailer(outSpec, preamble.Bytes())
}
