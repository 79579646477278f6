// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nphilipp/rpmspectool/internal/rpmspec"
)

// indexList is a repeatable flag value holding comma separated indexes and inclusive
// ranges, e.g. "0,2-4".
type indexList struct {
	indexes []int
	set     bool
}

func (l *indexList) Set(value string) (err error) {
	for _, item := range strings.Split(value, ",") {
		indexes, err := parseIndexItem(item)
		if err != nil {
			return err
		}
		l.indexes = append(l.indexes, indexes...)
	}
	l.set = true
	return
}

func (l *indexList) String() string {
	items := make([]string, 0, len(l.indexes))
	for _, index := range l.indexes {
		items = append(items, strconv.Itoa(index))
	}
	return strings.Join(items, ",")
}

// IsCumulative makes kingpin accept the flag more than once.
func (l *indexList) IsCumulative() bool {
	return true
}

func parseIndexItem(item string) (indexes []int, err error) {
	item = strings.TrimSpace(item)

	index, err := strconv.Atoi(item)
	if err == nil {
		return []int{index}, nil
	}

	startString, endString, isRange := strings.Cut(item, "-")
	if !isRange {
		return nil, fmt.Errorf("can't convert '%s' to list of ints", item)
	}
	start, startErr := strconv.Atoi(strings.TrimSpace(startString))
	end, endErr := strconv.Atoi(strings.TrimSpace(endString))
	if startErr != nil || endErr != nil {
		return nil, fmt.Errorf("can't convert '%s' to list of ints", item)
	}

	for index := start; index <= end; index++ {
		indexes = append(indexes, index)
	}
	return indexes, nil
}

// selection describes which Source and Patch entries the user asked for.
type selection struct {
	allSources bool
	sources    indexList
	allPatches bool
	patches    indexList
}

func (s *selection) validate() error {
	if s.allSources && s.sources.set {
		return fmt.Errorf("--sources and --source are mutually exclusive")
	}
	if s.allPatches && s.patches.set {
		return fmt.Errorf("--patches and --patch are mutually exclusive")
	}
	return nil
}

// apply filters result. Explicit index lists select the listed entries that exist, the
// --sources/--patches flags select a whole kind, and without any of them everything is
// selected.
func (s *selection) apply(result *rpmspec.SourcePatchMap) (selected *rpmspec.SourcePatchMap) {
	selected = rpmspec.NewSourcePatchMap()
	selected.SrcDir = result.SrcDir

	sourcesGiven := s.allSources || s.sources.set
	patchesGiven := s.allPatches || s.patches.set
	if !sourcesGiven && !patchesGiven {
		copyAll(selected.Sources, result.Sources)
		copyAll(selected.Patches, result.Patches)
		return
	}

	if s.sources.set {
		copySelected(selected.Sources, result.Sources, s.sources.indexes)
	} else if s.allSources {
		copyAll(selected.Sources, result.Sources)
	}

	if s.patches.set {
		copySelected(selected.Patches, result.Patches, s.patches.indexes)
	} else if s.allPatches {
		copyAll(selected.Patches, result.Patches)
	}

	return
}

func copyAll(dst, src map[int]string) {
	for index, url := range src {
		dst[index] = url
	}
}

// copySelected copies the entries of src listed in indexes that exist.
func copySelected(dst, src map[int]string, indexes []int) {
	for _, index := range indexes {
		if url, ok := src[index]; ok {
			dst[index] = url
		}
	}
}
