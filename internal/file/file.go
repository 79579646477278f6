// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package file

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
)

// CommandExists checks if a command can be found on PATH (or at the given path).
func CommandExists(name string) (exists bool, err error) {
	_, err = exec.LookPath(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// PathExists checks if the path exists, without following a final symlink.
func PathExists(path string) (exists bool, err error) {
	_, err = os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
