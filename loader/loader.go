// Package loader owns the refresh lifecycle: booting from the latest
// on-disk snapshot, periodic and retry-driven refreshes, and a status
// surface for the admin API. It is the single process-wide orchestrator
// tying the fetcher, builder, registry, and IP matcher together.
package loader

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	"golang.org/x/sync/singleflight"

	"github.com/foae/riskdet/build"
	"github.com/foae/riskdet/catalog"
	"github.com/foae/riskdet/entry"
	"github.com/foae/riskdet/fetch"
	"github.com/foae/riskdet/index"
	"github.com/foae/riskdet/ipmatch"
)

const (
	refreshInterval = 24 * time.Hour
	retryInterval   = 1 * time.Hour
)

const (
	statusPending = "pending"
	statusOK      = "ok"
	statusError   = "error"
)

// Status is the read-only snapshot returned by Supervisor.Status.
type Status struct {
	LastUpdate       time.Time                `json:"last_update"`
	LastStatus       string                   `json:"last_status"`
	LastError        string                   `json:"last_error,omitempty"`
	UpdateCount      int                      `json:"update_count"`
	NextUpdateAt     time.Time                `json:"next_update_at"`
	PerCategorySizes map[catalog.Category]int `json:"per_category_sizes"`
}

// Supervisor drives the blocklist refresh lifecycle.
type Supervisor struct {
	reg     *index.Registry
	matcher *ipmatch.Matcher
	fetcher *fetch.Fetcher
	builder *build.Builder
	baseDir string

	group singleflight.Group

	mu     sync.Mutex
	status Status

	timerMu sync.Mutex
	timer   *time.Timer
}

// New returns a Supervisor that snapshots feed downloads under baseDir.
func New(reg *index.Registry, matcher *ipmatch.Matcher, fetcher *fetch.Fetcher, baseDir string) *Supervisor {
	return &Supervisor{
		reg:     reg,
		matcher: matcher,
		fetcher: fetcher,
		builder: build.NewBuilder(reg),
		baseDir: baseDir,
		status:  Status{LastStatus: statusPending},
	}
}

// Boot creates empty live indexes for every category, attempts to load the
// most recent on-disk snapshot, and schedules the next periodic refresh.
// If no usable snapshot exists, it falls back to an immediate live fetch.
func (s *Supervisor) Boot(ctx context.Context) {
	for _, cat := range catalog.All() {
		s.reg.Create(string(cat))
	}
	s.reg.Create(catalog.MXCacheIndex)

	if err := s.loadLatestSnapshot(); err != nil {
		log.Printf("loader: no usable snapshot (%v), fetching live", err)
		go s.refreshWithRetry(ctx)
		return
	}

	log.Printf("loader: booted from on-disk snapshot")
	s.scheduleNext(refreshInterval, ctx)
}

// loadLatestSnapshot lists baseDir for dated snapshot directories and
// loads the lexicographically greatest (chronologically latest) one.
func (s *Supervisor) loadLatestSnapshot() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("loader: reading %s: %w", s.baseDir, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return fmt.Errorf("loader: no snapshot directories under %s", s.baseDir)
	}
	sort.Strings(dirs)
	latest := dirs[len(dirs)-1]

	dir := filepath.Join(s.baseDir, latest)
	if err := s.builder.BuildAll(dir); err != nil {
		return fmt.Errorf("loader: building from snapshot %s: %w", latest, err)
	}
	if err := s.builder.SwapAll(); err != nil {
		return fmt.Errorf("loader: swapping snapshot %s: %w", latest, err)
	}

	s.invalidateIPCaches()
	s.recordSuccess()
	return nil
}

// UpdateNow triggers an immediate refresh, coalescing with any refresh
// already in flight.
func (s *Supervisor) UpdateNow(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

// refreshWithRetry runs one refresh cycle and schedules either the next
// periodic refresh on success or a 1h retry on failure.
func (s *Supervisor) refreshWithRetry(ctx context.Context) {
	if err := s.UpdateNow(ctx); err != nil {
		log.Printf("loader: refresh failed, retrying in %s: %v", retryInterval, err)
		s.scheduleNext(retryInterval, ctx)
		return
	}
	s.scheduleNext(refreshInterval, ctx)
}

func (s *Supervisor) scheduleNext(d time.Duration, ctx context.Context) {
	s.mu.Lock()
	s.status.NextUpdateAt = time.Now().Add(d)
	s.mu.Unlock()

	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() {
		s.refreshWithRetry(ctx)
	})
}

// refresh performs one full fetch -> build -> swap cycle, tagged with a
// correlation id for log grepping.
func (s *Supervisor) refresh(ctx context.Context) error {
	cycleID := uuid.NewV4().String()
	dateDir := time.Now().UTC().Format("20060102")
	dir := filepath.Join(s.baseDir, dateDir)

	log.Printf("loader[%s]: starting refresh into %s", cycleID, dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.recordFailure("download_failed")
		return fmt.Errorf("%w: creating %s: %v", fetch.ErrDownloadFailed, dir, err)
	}

	if err := s.fetcher.FetchAll(ctx, dir); err != nil {
		s.recordFailure("download_failed")
		return err
	}

	if err := s.builder.BuildAll(dir); err != nil {
		s.recordFailure("load_failed")
		return err
	}

	if err := s.builder.SwapAll(); err != nil {
		s.recordFailure("swap_failed")
		return err
	}

	s.invalidateIPCaches()
	s.recordSuccess()
	log.Printf("loader[%s]: refresh complete", cycleID)
	return nil
}

func (s *Supervisor) invalidateIPCaches() {
	for _, cat := range catalog.All() {
		meta, _ := catalog.Get(cat)
		if meta.Kind == entry.KindIP {
			s.matcher.Invalidate(string(cat))
		}
	}
}

func (s *Supervisor) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastUpdate = time.Now()
	s.status.LastStatus = statusOK
	s.status.LastError = ""
	s.status.UpdateCount++
	s.status.PerCategorySizes = s.collectSizesLocked()
}

func (s *Supervisor) recordFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastStatus = statusError
	s.status.LastError = reason
}

func (s *Supervisor) collectSizesLocked() map[catalog.Category]int {
	out := make(map[catalog.Category]int, len(catalog.All()))
	for _, cat := range catalog.All() {
		out[cat] = s.reg.Size(string(cat))
	}
	return out
}

// Status returns a defensive copy of the current refresh status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.PerCategorySizes = make(map[catalog.Category]int, len(s.status.PerCategorySizes))
	for k, v := range s.status.PerCategorySizes {
		st.PerCategorySizes[k] = v
	}
	return st
}
