// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package network

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrFileExists is returned if the destination file exists and Force is not set.
	ErrFileExists = fmt.Errorf("destination file already exists: %w", fs.ErrExist)

	// ErrNotURL is returned for values without an ftp, http or https scheme.
	ErrNotURL = errors.New("not a downloadable URL")

	// ErrNoFileName is returned for URLs ending with '/'.
	ErrNoFileName = errors.New("URL does not name a file")
)

// DownloadError reports a failed transfer. StatusCode is the HTTP status, or 0 if the
// server never answered with one.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("couldn't download (%s): server returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("couldn't download (%s):\n%s", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
