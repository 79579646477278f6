// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpmspec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/rpm"
)

const (
	heredocBaseDelimiter   = "EOF"
	heredocDelimiterSuffix = "_EOF"

	conditionalsQuirkComment = "# RPM conditionals quirk\n"
)

// conditionalsQuirkShims replace the conditional test macros missing from old rpm
// versions, in the order they are defined.
var conditionalsQuirkShims = []struct {
	macro     string
	expansion string
}{
	{"defined", `%%{?%{1}:1}%%{!?%{1}:0}`},
	{"undefined", `%%{?%{1}:0}%%{!?%{1}:1}`},
	{"with", `%%{?with_%{1}:1}%%{!?with_%{1}:0}`},
	{"without", `%%{?with_%{1}:0}%%{!?with_%{1}:1}`},
	{"bcond_with", `%%{?_with_%{1}:%%global with_%{1} 1}`},
	{"bcond_without", `%%{!?_without_%{1}:%%global with_%{1} 1}`},
}

// WriteRecipeHeader writes everything the synthetic spec file needs before the preamble:
// the build path macros as the toolchain currently resolves them, the caller supplied
// definitions and, for old rpm versions, the conditionals shims.
func WriteRecipeHeader(ctx context.Context, w io.Writer, toolchain *rpm.Toolchain, definitions []string) (err error) {
	var header strings.Builder

	for _, macro := range rpm.BuildPathDefines {
		value, err := toolchain.EvalMacro(ctx, macro)
		if err != nil {
			return fmt.Errorf("failed to query build path macro (%s):\n%w", macro, err)
		}
		if !strings.HasSuffix(value, "\n") {
			value += "\n"
		}

		logger.Log.Debugf("Build path macro (%s) is (%s)", macro, strings.TrimSpace(value))
		fmt.Fprintf(&header, "%%undefine %s\n%%define %s %s", macro, macro, value)
	}
	header.WriteString("\n")

	for _, definition := range definitions {
		fmt.Fprintf(&header, "%%define %s\n", definition)
	}

	needQuirk, err := toolchain.NeedsConditionalsQuirk(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe rpm for conditional macros:\n%w", err)
	}
	if needQuirk {
		writeConditionalsQuirk(&header)
	}

	_, err = io.WriteString(w, header.String())
	if err != nil {
		err = fmt.Errorf("failed to write spec file header:\n%w", err)
	}
	return
}

func writeConditionalsQuirk(header *strings.Builder) {
	header.WriteString(conditionalsQuirkComment)
	for _, shim := range conditionalsQuirkShims {
		header.WriteString("%undefine " + shim.macro + "\n")
		header.WriteString("%define " + shim.macro + "() %{expand:" + shim.expansion + "}\n")
	}
}

// WriteRecipeTrailer writes the sections after the preamble. Its %prep stage prints the
// preamble again, now with every macro expanded, followed by the source directory.
func WriteRecipeTrailer(w io.Writer, preamble []byte) (err error) {
	delimiter := HeredocDelimiter(preamble)

	var trailer bytes.Buffer
	trailer.WriteString("%description\n%prep\ncat << " + delimiter + "\n")
	trailer.Write(preamble)
	trailer.WriteString("\nSrcDir: %{_sourcedir}\n")
	trailer.WriteString(delimiter + "\n")

	_, err = w.Write(trailer.Bytes())
	if err != nil {
		err = fmt.Errorf("failed to write spec file trailer:\n%w", err)
	}
	return
}

// HeredocDelimiter returns the shortest here-document delimiter in the sequence EOF,
// EOF_EOF, EOF_EOF_EOF... that does not occur anywhere in preamble.
func HeredocDelimiter(preamble []byte) (delimiter string) {
	delimiter = heredocBaseDelimiter
	for bytes.Contains(preamble, []byte(delimiter)) {
		delimiter += heredocDelimiterSuffix
	}
	return
}
