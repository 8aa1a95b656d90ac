// Package fetch downloads each category's raw feed file into a dated
// snapshot directory, bounding in-flight downloads so a slow or stalled
// upstream cannot starve the others.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/foae/riskdet/catalog"
)

// ErrDownloadFailed wraps any non-200 response or transport failure for a
// single category's feed.
var ErrDownloadFailed = errors.New("fetch: download failed")

const (
	maxInFlight     = 5
	requestDeadline = time.Minute * 10
)

var defaultTransport = &http.Transport{
	TLSClientConfig: &tls.Config{
		InsecureSkipVerify: false,
	},
	IdleConnTimeout:       time.Second * 10,
	TLSHandshakeTimeout:   time.Second * 10,
	ResponseHeaderTimeout: time.Second * 10,
	ExpectContinueTimeout: time.Second * 10,
	DisableKeepAlives:     false,
	MaxConnsPerHost:       0,
	DisableCompression:    true,
	MaxIdleConns:          300,
	MaxIdleConnsPerHost:   100,
}

// Fetcher downloads the configured set of category feeds.
type Fetcher struct {
	http *http.Client
	urls map[catalog.Category]string
}

// NewFetcher returns a Fetcher that downloads from urls. The client carries
// no blanket Timeout: each request gets its own requestDeadline (§4.1),
// which a large threat-feed body can legitimately approach.
func NewFetcher(urls map[catalog.Category]string) *Fetcher {
	return &Fetcher{
		http: &http.Client{
			Transport: defaultTransport,
		},
		urls: urls,
	}
}

// FetchAll downloads every configured category's feed into dir, named
// "<category>.txt". Up to maxInFlight downloads run concurrently, and each
// gets its own requestDeadline regardless of how long it waited for a
// semaphore slot. Every failed category is logged at error level; FetchAll
// returns the first error encountered but still lets in-flight downloads
// finish.
func (f *Fetcher) FetchAll(ctx context.Context, dir string) error {
	sem := semaphore.NewWeighted(maxInFlight)

	errCh := make(chan error, len(f.urls))
	for cat, url := range f.urls {
		cat, url := cat, url
		if err := sem.Acquire(ctx, 1); err != nil {
			errCh <- err
			continue
		}
		go func() {
			defer sem.Release(1)
			errCh <- f.fetchOne(ctx, dir, cat, url)
		}()
	}

	var firstErr error
	for range f.urls {
		if err := <-errCh; err != nil {
			log.Printf("ERROR fetch: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (f *Fetcher) fetchOne(ctx context.Context, dir string, cat catalog.Category, url string) error {
	ctx, cancel := context.WithTimeout(ctx, requestDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request for %s: %w", cat, err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, cat, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrDownloadFailed, cat, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: reading body: %v", ErrDownloadFailed, cat, err)
	}

	path := filepath.Join(dir, string(cat)+".txt")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("fetch: writing %s: %w", path, err)
	}
	return nil
}
