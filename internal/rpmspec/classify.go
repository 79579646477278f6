// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpmspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nphilipp/rpmspectool/internal/logger"
)

var (
	// macroRegex captures the macro name of a line starting with '%', e.g. '%if 0%{?fedora}'.
	macroRegex = regexp.MustCompile(`^\s*%(\w+)`)

	// archRestrictionRegex matches tags that restrict where a package may be built.
	// Left in place they would make the prep-only build refuse to run on this machine.
	archRestrictionRegex = regexp.MustCompile(`^\s*(` + foldASCII(`BuildArch(itectures)?|Exclu(d|siv)e(Arch|OS)|Icon`) + `)\s*:`)

	// Obsolete tags and the group of each that holds the tag name.
	copyrightRegex = regexp.MustCompile(`^(\s*)(` + foldASCII(`Copyright`) + `)(\s*:)`)
	serialRegex    = regexp.MustCompile(`^(\s*)(` + foldASCII(`Serial`) + `)(\s*:)`)

	groupRegex = regexp.MustCompile(`^\s*` + foldASCII(`Group`) + `\s*:`)

	// sourcePatchRegex matches 'Source:', 'Source3:', 'Patch12:' etc. with the value trimmed.
	sourcePatchRegex = regexp.MustCompile(`^\s*(` + foldASCII(`Source|Patch`) + `)(\d+)?\s*:\s*(.*\S)\s*$`)

	srcDirRegex = regexp.MustCompile(`^\s*` + foldASCII(`srcdir`) + `\s*:\s*(.*\S)\s*$`)
)

// foldASCII makes the letters of a regular expression fragment match either case. Unlike
// the (?i) flag it leaves non-ASCII letters out, so 'ſ' does not count as an 's'. The
// fragment must not contain escapes.
func foldASCII(fragment string) string {
	var b strings.Builder
	for _, r := range fragment {
		lower, upper := unicode.ToLower(r), unicode.ToUpper(r)
		if r >= utf8.RuneSelf || lower == upper {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "[%c%c]", upper, lower)
	}
	return b.String()
}

const (
	sourcePatchRegexKindIndex  = 1
	sourcePatchRegexIndexIndex = 2
	sourcePatchRegexURLIndex   = 3
	srcDirRegexPathIndex       = 1
)

var (
	// preambleDelimiters are the macros that end the preamble: section names, plus
	// macros that generate sections and cannot be evaluated out of context.
	preambleDelimiters = map[string]bool{
		"package":                true,
		"prep":                   true,
		"generate_buildrequires": true,
		"conf":                   true,
		"build":                  true,
		"install":                true,
		"check":                  true,
		"clean":                  true,
		"preun":                  true,
		"postun":                 true,
		"pretrans":               true,
		"posttrans":              true,
		"preuntrans":             true,
		"postuntrans":            true,
		"pre":                    true,
		"post":                   true,
		"files":                  true,
		"changelog":              true,
		"description":            true,
		"triggerpostun":          true,
		"triggerprein":           true,
		"triggerun":              true,
		"triggerin":              true,
		"trigger":                true,
		"verifyscript":           true,
		"sepolicy":               true,
		"filetriggerin":          true,
		"filetrigger":            true,
		"filetriggerun":          true,
		"filetriggerpostun":      true,
		"transfiletriggerin":     true,
		"transfiletrigger":       true,
		"transfiletriggerun":     true,
		"transfiletriggerpostun": true,
		"end":                    true,
		"patchlist":              true,
		"sourcelist":             true,

		"python_subpackages": true,
	}

	conditionalOpeners = map[string]bool{
		"if":      true,
		"ifos":    true,
		"ifnos":   true,
		"ifarch":  true,
		"ifnarch": true,
	}
)

const conditionalCloser = "endif"

// TagKind tells Source tags from Patch tags.
type TagKind int

const (
	// KindSource is a 'SourceN:' tag.
	KindSource TagKind = iota
	// KindPatch is a 'PatchN:' tag.
	KindPatch
)

func (k TagKind) String() string {
	switch k {
	case KindSource:
		return "Source"
	case KindPatch:
		return "Patch"
	default:
		return "Unknown"
	}
}

// SourcePatchTag is a parsed 'SourceN:' or 'PatchN:' line.
type SourcePatchTag struct {
	Kind     TagKind
	Index    int
	HasIndex bool
	URL      string
}

// LineClass describes what a single spec file line is.
type LineClass struct {
	// MacroName is the name of the macro the line starts with, empty if none.
	MacroName string

	IsPreambleDelimiter bool
	IsConditionalOpen   bool
	IsConditionalClose  bool
	IsArchRestriction   bool
	IsGroupTag          bool

	// IsLegacyTag is set for 'Copyright:' and 'Serial:', Rewritten then holds the
	// line with the tag name replaced by 'License' or 'Epoch'.
	IsLegacyTag bool
	Rewritten   []byte
}

// ClassifyLine classifies one line of a spec file. The line is not modified.
func ClassifyLine(line []byte) (class LineClass) {
	if m := macroRegex.FindSubmatch(line); m != nil {
		class.MacroName = string(m[1])
		class.IsPreambleDelimiter = preambleDelimiters[class.MacroName]
		class.IsConditionalOpen = conditionalOpeners[class.MacroName]
		class.IsConditionalClose = class.MacroName == conditionalCloser
	}

	class.IsArchRestriction = archRestrictionRegex.Match(line)
	class.IsGroupTag = groupRegex.Match(line)
	class.Rewritten, class.IsLegacyTag = rewriteLegacyTag(line)

	return
}

// rewriteLegacyTag replaces an obsolete tag name at the start of the line with its
// modern equivalent, keeping the rest of the line as is.
func rewriteLegacyTag(line []byte) (rewritten []byte, isLegacy bool) {
	legacyTags := []struct {
		regex       *regexp.Regexp
		replacement string
	}{
		{copyrightRegex, "${1}License${3}"},
		{serialRegex, "${1}Epoch${3}"},
	}

	for _, tag := range legacyTags {
		loc := tag.regex.FindSubmatchIndex(line)
		if loc == nil {
			continue
		}

		rewritten = tag.regex.Expand(nil, []byte(tag.replacement), line, loc)
		rewritten = append(rewritten, line[loc[1]:]...)
		return rewritten, true
	}

	return nil, false
}

// MatchSourceOrPatch parses a 'SourceN:' or 'PatchN:' line. Tags without a number have
// HasIndex unset.
func MatchSourceOrPatch(line string) (tag SourcePatchTag, ok bool) {
	m := sourcePatchRegex.FindStringSubmatch(line)
	if m == nil {
		return
	}

	if strings.EqualFold(m[sourcePatchRegexKindIndex], "patch") {
		tag.Kind = KindPatch
	} else {
		tag.Kind = KindSource
	}

	if indexString := m[sourcePatchRegexIndexIndex]; indexString != "" {
		index, err := strconv.Atoi(indexString)
		if err != nil {
			// Only reachable for numbers too large for an int.
			logger.Log.Debugf("Ignoring %s tag with an index out of range (%s)", m[sourcePatchRegexKindIndex], line)
			return SourcePatchTag{}, false
		}
		tag.Index = index
		tag.HasIndex = true
	}

	tag.URL = m[sourcePatchRegexURLIndex]
	return tag, true
}

// MatchSrcDir parses the 'SrcDir:' line printed by the synthetic %prep section.
func MatchSrcDir(line string) (path string, ok bool) {
	m := srcDirRegex.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[srcDirRegexPathIndex], true
}
