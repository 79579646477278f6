// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"

	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/network"
	"github.com/nphilipp/rpmspectool/internal/rpmspec"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// downloadURLs returns the downloadable values of the selection, sources first, each
// kind in index order.
func downloadURLs(selected *rpmspec.SourcePatchMap) (urls []string) {
	kinds := []struct {
		name    string
		entries map[int]string
		indexes []int
	}{
		{"Source", selected.Sources, selected.SourceIndexes()},
		{"Patch", selected.Patches, selected.PatchIndexes()},
	}

	for _, kind := range kinds {
		for _, index := range kind.indexes {
			url := kind.entries[index]
			if !network.IsURL(url) {
				logger.Log.Debugf("Skipping %s%d, not a URL (%s)", kind.name, index, url)
				continue
			}
			urls = append(urls, url)
		}
	}
	return
}

// downloadAll fetches urls with at most jobs downloads running at once, in the order
// given. The first failure stops any further downloads from starting and is returned.
func downloadAll(ctx context.Context, urls []string, opts network.Options, jobs int) (err error) {
	if jobs < 1 {
		jobs = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobSemaphore := semaphore.NewWeighted(int64(jobs))
	var group errgroup.Group

	for _, url := range urls {
		if acquireErr := jobSemaphore.Acquire(ctx, 1); acquireErr != nil {
			break
		}
		// A failed download cancels before it gives back its slot.
		if ctx.Err() != nil {
			jobSemaphore.Release(1)
			break
		}

		url := url
		group.Go(func() error {
			defer jobSemaphore.Release(1)

			_, downloadErr := network.DownloadFile(ctx, url, opts)
			if downloadErr != nil {
				cancel()
			}
			return downloadErr
		})
	}

	err = group.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return
}
