// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Shared helpers for the command-line tools.

package exe

import (
	"github.com/nphilipp/rpmspectool/internal/logger"

	"gopkg.in/alecthomas/kingpin.v2"
)

// ToolkitVersion is stamped at build time with -ldflags "-X ...exe.ToolkitVersion=<version>".
var ToolkitVersion = "git"

// ToolName is the name the tools report in placeholders and user agents.
const ToolName = "rpmspectool"

// UserAgent returns the HTTP user agent string used for downloads.
func UserAgent() string {
	return ToolName + "/" + ToolkitVersion
}

// SetupLogFlags registers the common logging flags on the application.
func SetupLogFlags(k *kingpin.Application) *logger.LogFlags {
	return &logger.LogFlags{
		LogFile:  LogFileFlag(k),
		LogLevel: LogLevelFlag(k),
		LogColor: LogColorFlag(k),
	}
}

// LogFileFlag registers the --log-file flag.
func LogFileFlag(k *kingpin.Application) *string {
	return k.Flag("log-file", "Path to a file to write logs to (in addition to stderr).").String()
}

// LogLevelFlag registers the --log-level flag.
func LogLevelFlag(k *kingpin.Application) *string {
	return k.Flag("log-level", "The minimum log level.").Default("info").Enum(logger.Levels...)
}

// LogColorFlag registers the --log-color flag.
func LogColorFlag(k *kingpin.Application) *string {
	return k.Flag("log-color", "Color setting for log terminal output.").Default(logger.ColorAuto).Enum(logger.Colors...)
}
