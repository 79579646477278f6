// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpmspec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nphilipp/rpmspectool/internal/exe"
)

var (
	closingConditionalLine = []byte("%endif\n")
	placeholderGroupLine   = []byte("Group: " + exe.ToolName + "\n")
)

// Preamble is the declarative head of a spec file, cleaned up for evaluation.
type Preamble struct {
	lines bytes.Buffer

	// GroupSeen is set if the preamble carries its own Group tag.
	GroupSeen bool
	// ReachedDelimiter is set if extraction stopped at a section start rather than at
	// the end of the input.
	ReachedDelimiter bool
	// ClosedConditionals is the number of %endif lines added to close conditional
	// blocks left open at the section start.
	ClosedConditionals int
	// Dropped counts the architecture restriction lines left out.
	Dropped int
}

// Bytes returns the extracted preamble, ending in a placeholder Group line if the
// spec file did not have one.
func (p *Preamble) Bytes() []byte {
	content := bytes.Clone(p.lines.Bytes())
	if p.GroupSeen {
		return content
	}
	return append(content, placeholderGroupLine...)
}

// ExtractPreamble reads spec file lines from in until the first section start. Every
// kept line is also written to live as soon as it has been processed, a missing final
// newline is added. The placeholder Group line is only part of Bytes(), never of what
// was written to live.
func ExtractPreamble(in io.Reader, live io.Writer) (preamble *Preamble, err error) {
	preamble = &Preamble{}
	reader := bufio.NewReader(in)
	depth := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			err = fmt.Errorf("failed to read spec file:\n%w", readErr)
			return
		}
		if len(line) == 0 {
			break
		}

		class := ClassifyLine(line)

		if class.IsPreambleDelimiter {
			preamble.ReachedDelimiter = true
			err = preamble.closeConditionals(depth, live)
			return
		}

		if class.IsConditionalOpen {
			depth++
		} else if class.IsConditionalClose {
			depth--
		}

		if class.IsArchRestriction {
			preamble.Dropped++
			if readErr != nil {
				break
			}
			continue
		}

		if class.IsLegacyTag {
			line = class.Rewritten
		}
		if line[len(line)-1] != '\n' {
			line = append(line, '\n')
		}

		err = preamble.keep(line, live)
		if err != nil {
			return
		}

		if class.IsGroupTag {
			preamble.GroupSeen = true
		}

		if readErr != nil {
			break
		}
	}

	return
}

func (p *Preamble) keep(line []byte, live io.Writer) (err error) {
	p.lines.Write(line)

	_, err = live.Write(line)
	if err != nil {
		err = fmt.Errorf("failed to write preamble line:\n%w", err)
	}
	return
}

// closeConditionals keeps one %endif for each conditional block still open. A negative
// depth from stray %endif lines closes nothing.
func (p *Preamble) closeConditionals(depth int, live io.Writer) (err error) {
	for i := 0; i < depth; i++ {
		err = p.keep(closingConditionalLine, live)
		if err != nil {
			return
		}
		p.ClosedConditionals++
	}
	return
}
