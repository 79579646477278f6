// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package directory

import (
	"fmt"
	"os"

	"github.com/nphilipp/rpmspectool/internal/logger"
)

// EnsureDirExists creates the directory and any parents if they do not exist yet.
func EnsureDirExists(dirName string) (err error) {
	_, err = os.Stat(dirName)
	if os.IsNotExist(err) {
		err = os.MkdirAll(dirName, os.ModePerm)
	}
	return
}

// CreateTempDir creates a new temporary directory whose name starts with prefix.
func CreateTempDir(prefix string) (dir string, err error) {
	dir, err = os.MkdirTemp("", prefix)
	if err != nil {
		err = fmt.Errorf("failed to create temporary directory:\n%w", err)
		return
	}

	logger.Log.Debugf("Created temporary directory (%s)", dir)
	return
}

// RemoveBestEffort removes the directory tree. Failures are logged, never returned.
func RemoveBestEffort(dir string) {
	if dir == "" {
		return
	}

	err := os.RemoveAll(dir)
	if err != nil {
		logger.Log.Errorf("Couldn't remove (%s): %s", dir, err)
		return
	}

	logger.Log.Debugf("Removed temporary directory (%s)", dir)
}
