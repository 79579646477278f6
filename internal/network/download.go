// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nphilipp/rpmspectool/internal/file"
	"github.com/nphilipp/rpmspectool/internal/logger"
	"golang.org/x/sys/unix"
)

const defaultFileMode fs.FileMode = 0o666

var urlSchemeRegex = regexp.MustCompile(`^(?:[Ff][Tt][Pp]|[Hh][Tt][Tt][Pp][Ss]?)://`)

var (
	umaskOnce sync.Once
	umask     int
)

// Options control a single download.
type Options struct {
	// Directory receives the file, the current directory if empty.
	Directory string
	// DryRun only reports what would be downloaded.
	DryRun bool
	// Insecure disables TLS certificate verification.
	Insecure bool
	// Force replaces an existing destination file.
	Force bool
	// UserAgent is sent with HTTP requests.
	UserAgent string
	// Output receives the progress messages, os.Stdout if nil.
	Output io.Writer
}

// IsURL reports whether value has a scheme DownloadFile can fetch.
func IsURL(value string) bool {
	return urlSchemeRegex.MatchString(value)
}

// DestinationPath returns where DownloadFile stores the file named by the last path
// component of rawURL.
func DestinationPath(rawURL, directory string) (destPath string, err error) {
	if !IsURL(rawURL) {
		return "", fmt.Errorf("%w: %s", ErrNotURL, rawURL)
	}
	if strings.HasSuffix(rawURL, "/") {
		return "", fmt.Errorf("%w: %s", ErrNoFileName, rawURL)
	}

	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	return filepath.Join(directory, name), nil
}

// DownloadFile fetches rawURL into opts.Directory, keeping the remote modification time
// when the server reports one. The file only appears under its final name once it has
// been downloaded completely.
func DownloadFile(ctx context.Context, rawURL string, opts Options) (destPath string, err error) {
	directory := opts.Directory
	if directory == "" {
		directory, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory:\n%w", err)
		}
	}

	destPath, err = DestinationPath(rawURL, directory)
	if err != nil {
		return
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	if opts.DryRun {
		fmt.Fprintf(output, "NOT downloading '%s' to '%s'\n", rawURL, destPath)
		return
	}

	if !opts.Force {
		exists, statErr := file.PathExists(destPath)
		if statErr != nil {
			return "", fmt.Errorf("failed to check destination (%s):\n%w", destPath, statErr)
		}
		if exists {
			return "", fmt.Errorf("%w: %s", ErrFileExists, destPath)
		}
	}

	fmt.Fprintf(output, "Downloading '%s' to '%s'\n", rawURL, destPath)

	tmpFile, err := os.CreateTemp(directory, filepath.Base(destPath))
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file in (%s):\n%w", directory, err)
	}
	defer func() {
		removeErr := os.Remove(tmpFile.Name())
		if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			logger.Log.Warnf("Failed to remove temporary file (%s): %s", tmpFile.Name(), removeErr)
		}
	}()

	modTime, err := fetch(ctx, rawURL, tmpFile, opts)
	closeErr := tmpFile.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to write (%s):\n%w", tmpFile.Name(), closeErr)
	}

	err = finalizeFile(tmpFile.Name(), modTime)
	if err != nil {
		return
	}

	err = linkIntoPlace(tmpFile.Name(), destPath, opts.Force)
	if err != nil {
		return
	}

	logger.Log.Debugf("Downloaded (%s) to (%s)", rawURL, destPath)
	return destPath, nil
}

func fetch(ctx context.Context, rawURL string, w io.Writer, opts Options) (modTime time.Time, err error) {
	if strings.HasPrefix(strings.ToLower(rawURL), "ftp://") {
		return fetchFTP(ctx, rawURL, w)
	}
	return fetchHTTP(ctx, rawURL, w, opts)
}

// finalizeFile gives the downloaded file the mode a newly created file would have and
// the remote modification time, if known.
func finalizeFile(path string, modTime time.Time) (err error) {
	err = os.Chmod(path, defaultFileMode&^fs.FileMode(currentUmask()))
	if err != nil {
		return fmt.Errorf("failed to set mode of (%s):\n%w", path, err)
	}

	if modTime.IsZero() {
		return
	}

	err = os.Chtimes(path, time.Now(), modTime)
	if err != nil {
		return fmt.Errorf("failed to set modification time of (%s):\n%w", path, err)
	}
	return
}

func linkIntoPlace(tmpPath, destPath string, force bool) (err error) {
	if force {
		err = os.Remove(destPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove existing file (%s):\n%w", destPath, err)
		}
	}

	err = os.Link(tmpPath, destPath)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrFileExists, destPath)
	}
	if err != nil {
		return fmt.Errorf("failed to move download into place (%s):\n%w", destPath, err)
	}
	return
}

// currentUmask reads the process umask once. Reading it means setting it, so it is done
// only the first time, before any download creates files.
func currentUmask() int {
	umaskOnce.Do(func() {
		umask = unix.Umask(0)
		unix.Umask(umask)
	})
	return umask
}
