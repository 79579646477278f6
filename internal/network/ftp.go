// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/nphilipp/rpmspectool/internal/logger"
)

const (
	defaultFTPPort    = "21"
	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"
)

// fetchFTP retrieves rawURL with a passive transfer. The path is relative to the
// directory the server puts the user in after login.
func fetchFTP(ctx context.Context, rawURL string, w io.Writer) (modTime time.Time, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: err}
	}

	conn, err := ftp.Dial(ftpAddress(u), ftp.DialWithContext(ctx))
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: err}
	}
	// Closing the control connection aborts a transfer in progress.
	stop := context.AfterFunc(ctx, func() {
		conn.Quit()
	})
	defer func() {
		if stop() {
			conn.Quit()
		}
	}()

	user, password := ftpCredentials(u)
	err = conn.Login(user, password)
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: fmt.Errorf("login as (%s) failed:\n%w", user, err)}
	}

	remotePath := strings.TrimPrefix(u.Path, "/")
	resp, err := conn.Retr(remotePath)
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: ctxOr(ctx, err)}
	}

	_, err = io.Copy(w, resp)
	closeErr := resp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: ctxOr(ctx, err)}
	}

	modTime, err = conn.GetTime(remotePath)
	if err != nil {
		logger.Log.Debugf("Server did not report a modification time for (%s): %s", rawURL, err)
		return time.Time{}, nil
	}
	return
}

func ftpAddress(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = defaultFTPPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// ftpCredentials returns the user and password from the URL, anonymous if it has none.
func ftpCredentials(u *url.URL) (user, password string) {
	if u.User == nil || u.User.Username() == "" {
		return anonymousUser, anonymousPassword
	}

	user = u.User.Username()
	password, _ = u.User.Password()
	return
}

// ctxOr prefers the context's error over the one caused by aborting the connection.
func ctxOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
