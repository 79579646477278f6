// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// ColorAuto enables colors only when stderr is a terminal.
	ColorAuto = "auto"
	// ColorAlways forces colored output.
	ColorAlways = "always"
	// ColorNever disables colored output.
	ColorNever = "never"

	defaultLogLevel = logrus.InfoLevel
	defaultLogColor = ColorAuto
	logFileMode     = 0o664
)

var (
	// Log is the process-wide logger.
	Log *logrus.Logger

	// Levels lists the accepted --log-level values.
	Levels = []string{"panic", "fatal", "error", "warn", "info", "debug", "trace"}

	// Colors lists the accepted --log-color values.
	Colors = []string{ColorAuto, ColorAlways, ColorNever}
)

// LogFlags holds the values of the common logging command-line flags.
type LogFlags struct {
	LogFile  *string
	LogLevel *string
	LogColor *string
}

func init() {
	// Keep Log usable even if a tool forgets to initialize it.
	Log = newLogger(os.Stderr, defaultLogLevel, defaultLogColor)
}

// InitStderrLog initializes the logger to write to stderr at the default level.
func InitStderrLog() {
	Log = newLogger(os.Stderr, defaultLogLevel, defaultLogColor)
}

// InitBestEffort initializes the logger from command-line flags. Problems with
// the log file are reported on stderr but do not stop the program.
func InitBestEffort(flags *LogFlags) {
	level := defaultLogLevel
	color := defaultLogColor
	logFile := ""

	if flags != nil {
		if flags.LogLevel != nil && *flags.LogLevel != "" {
			parsed, err := logrus.ParseLevel(*flags.LogLevel)
			if err == nil {
				level = parsed
			} else {
				fmt.Fprintf(os.Stderr, "invalid log level (%s), using %s\n", *flags.LogLevel, defaultLogLevel)
			}
		}
		if flags.LogColor != nil && *flags.LogColor != "" {
			color = *flags.LogColor
		}
		if flags.LogFile != nil {
			logFile = *flags.LogFile
		}
	}

	Log = newLogger(os.Stderr, level, color)

	if logFile != "" {
		err := addFileHook(Log, logFile, level)
		if err != nil {
			Log.Warnf("Failed to open log file (%s), logging to stderr only: %s", logFile, err)
		}
	}
}

// SetLevel changes the level of the stderr logger and every attached file hook.
func SetLevel(level logrus.Level) {
	Log.SetLevel(level)
	for _, hooks := range Log.Hooks {
		for _, hook := range hooks {
			if fileHook, ok := hook.(*writerHook); ok {
				fileHook.level = level
			}
		}
	}
}

func newLogger(out io.Writer, level logrus.Level, color string) *logrus.Logger {
	formatter := &logrus.TextFormatter{
		DisableTimestamp: true,
	}
	switch strings.ToLower(color) {
	case ColorAlways:
		formatter.ForceColors = true
	case ColorNever:
		formatter.DisableColors = true
	}

	return &logrus.Logger{
		Out:       out,
		Formatter: formatter,
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
}

func addFileHook(log *logrus.Logger, path string, level logrus.Level) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return err
	}

	log.AddHook(newWriterHook(file, level))
	return nil
}
