// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package network

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/nphilipp/rpmspectool/internal/logger"
)

func newHTTPClient(insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport}
}

// fetchHTTP copies the body of rawURL to w, following redirects. Any status outside of
// 2xx is an error.
func fetchHTTP(ctx context.Context, rawURL string, w io.Writer, opts Options) (modTime time.Time, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: err}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := newHTTPClient(opts.Insecure).Do(req)
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return modTime, &DownloadError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	_, err = io.Copy(w, resp.Body)
	if err != nil {
		return modTime, &DownloadError{URL: rawURL, Err: err}
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		modTime, err = http.ParseTime(lastModified)
		if err != nil {
			logger.Log.Debugf("Ignoring unparsable Last-Modified header (%s) from (%s)", lastModified, rawURL)
			return time.Time{}, nil
		}
	}

	return
}
