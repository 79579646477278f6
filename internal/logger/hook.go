// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// writerHook copies every entry at or above level to a writer, without colors.
type writerHook struct {
	mutex     sync.Mutex
	writer    io.Writer
	level     logrus.Level
	formatter logrus.Formatter
}

func newWriterHook(writer io.Writer, level logrus.Level) *writerHook {
	return &writerHook{
		writer: writer,
		level:  level,
		formatter: &logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		},
	}
}

// Levels returns every level; filtering happens in Fire so SetLevel can adjust it later.
func (h *writerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.level {
		return nil
	}

	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	_, err = h.writer.Write(line)
	return err
}
