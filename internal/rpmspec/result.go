// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpmspec

import (
	"sort"
	"strings"

	"github.com/nphilipp/rpmspectool/internal/logger"
)

// SourcePatchMap holds the Source and Patch URLs of a spec file by index.
type SourcePatchMap struct {
	Sources map[int]string
	Patches map[int]string
	// SrcDir is the resolved %{_sourcedir}, empty if the output did not report one.
	SrcDir string
}

// NewSourcePatchMap returns an empty map.
func NewSourcePatchMap() *SourcePatchMap {
	return &SourcePatchMap{
		Sources: make(map[int]string),
		Patches: make(map[int]string),
	}
}

// SourceIndexes returns the Source indexes in ascending order.
func (m *SourcePatchMap) SourceIndexes() []int {
	return sortedIndexes(m.Sources)
}

// PatchIndexes returns the Patch indexes in ascending order.
func (m *SourcePatchMap) PatchIndexes() []int {
	return sortedIndexes(m.Patches)
}

func sortedIndexes(urls map[int]string) (indexes []int) {
	indexes = make([]int, 0, len(urls))
	for index := range urls {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return
}

// indexTracker numbers tags without an explicit index. Each kind continues after the
// highest index seen for it so far, starting at 0.
type indexTracker struct {
	highest map[TagKind]int
}

func newIndexTracker() *indexTracker {
	return &indexTracker{
		highest: map[TagKind]int{
			KindSource: -1,
			KindPatch:  -1,
		},
	}
}

func (t *indexTracker) resolve(tag SourcePatchTag) (index int) {
	if tag.HasIndex {
		index = tag.Index
	} else {
		index = t.highest[tag.Kind] + 1
	}
	t.highest[tag.Kind] = max(t.highest[tag.Kind], index)
	return
}

// ParseBuildOutput collects the Source, Patch and SrcDir lines printed by the prep stage
// of a synthetic spec file. Later lines overwrite earlier ones with the same index.
func ParseBuildOutput(output string) (result *SourcePatchMap) {
	result = NewSourcePatchMap()
	tracker := newIndexTracker()

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if tag, ok := MatchSourceOrPatch(line); ok {
			index := tracker.resolve(tag)
			logger.Log.Debugf("Found %s%d: %s", tag.Kind, index, tag.URL)

			if tag.Kind == KindPatch {
				result.Patches[index] = tag.URL
			} else {
				result.Sources[index] = tag.URL
			}
		}

		if srcDir, ok := MatchSrcDir(line); ok {
			result.SrcDir = srcDir
		}
	}

	return
}
