package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/foae/riskdet/catalog"
	"github.com/foae/riskdet/fetch"
	"github.com/foae/riskdet/index"
	"github.com/foae/riskdet/ipmatch"
)

func newTestSupervisor(t *testing.T, srv *httptest.Server) (*Supervisor, *index.Registry, string) {
	t.Helper()
	reg := index.NewRegistry()
	matcher := ipmatch.NewMatcher(reg)

	urls := make(map[catalog.Category]string, len(catalog.All()))
	for _, cat := range catalog.All() {
		urls[cat] = srv.URL
	}
	f := fetch.NewFetcher(urls)

	dir := t.TempDir()
	sup := New(reg, matcher, f, dir)
	return sup, reg, dir
}

func okFeedServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("1.2.3.4\n"))
	}))
}

func TestBootWithNoSnapshotFetchesLive(t *testing.T) {
	srv := okFeedServer()
	defer srv.Close()

	sup, reg, _ := newTestSupervisor(t, srv)
	sup.Boot(context.Background())

	assert.Eventually(t, func() bool {
		return reg.Lookup(string(catalog.MaliciousIP), "1.2.3.4")
	}, 2*time.Second, 10*time.Millisecond)

	st := sup.Status()
	assert.Equal(t, statusOK, st.LastStatus)
	assert.Equal(t, 1, st.UpdateCount)
}

func TestBootLoadsLatestSnapshot(t *testing.T) {
	srv := okFeedServer()
	defer srv.Close()

	sup, reg, dir := newTestSupervisor(t, srv)

	older := filepath.Join(dir, "20200101")
	newer := filepath.Join(dir, "20260101")
	assert.NoError(t, os.MkdirAll(older, 0o755))
	assert.NoError(t, os.MkdirAll(newer, 0o755))

	for _, cat := range catalog.All() {
		assert.NoError(t, os.WriteFile(filepath.Join(older, string(cat)+".txt"), []byte("9.9.9.9\n"), 0o644))
		assert.NoError(t, os.WriteFile(filepath.Join(newer, string(cat)+".txt"), []byte("8.8.8.8\n"), 0o644))
	}

	sup.Boot(context.Background())

	assert.True(t, reg.Lookup(string(catalog.MaliciousIP), "8.8.8.8"))
	assert.False(t, reg.Lookup(string(catalog.MaliciousIP), "9.9.9.9"))

	st := sup.Status()
	assert.Equal(t, statusOK, st.LastStatus)
}

func TestUpdateNowCoalescesConcurrentCalls(t *testing.T) {
	srv := okFeedServer()
	defer srv.Close()

	sup, _, _ := newTestSupervisor(t, srv)

	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() { errCh <- sup.UpdateNow(context.Background()) }()
	}
	for i := 0; i < 5; i++ {
		assert.NoError(t, <-errCh)
	}
}

func TestRefreshFailureLeavesLiveIndexesIntact(t *testing.T) {
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()

	reg := index.NewRegistry()
	reg.LoadStaging("staging_malicious_ip", index.Snapshot{"1.1.1.1": {}})
	assert.NoError(t, reg.Swap("staging_malicious_ip", string(catalog.MaliciousIP)))

	matcher := ipmatch.NewMatcher(reg)
	urls := make(map[catalog.Category]string, len(catalog.All()))
	for _, cat := range catalog.All() {
		urls[cat] = badSrv.URL
	}
	f := fetch.NewFetcher(urls)
	sup := New(reg, matcher, f, t.TempDir())

	err := sup.UpdateNow(context.Background())
	assert.Error(t, err)

	assert.True(t, reg.Lookup(string(catalog.MaliciousIP), "1.1.1.1"))
	st := sup.Status()
	assert.Equal(t, statusError, st.LastStatus)
	assert.Equal(t, "download_failed", st.LastError)
}

func TestStatusReturnsDefensiveCopy(t *testing.T) {
	srv := okFeedServer()
	defer srv.Close()
	sup, _, _ := newTestSupervisor(t, srv)

	assert.NoError(t, sup.UpdateNow(context.Background()))

	st := sup.Status()
	st.PerCategorySizes[catalog.MaliciousIP] = 99999

	st2 := sup.Status()
	assert.NotEqual(t, 99999, st2.PerCategorySizes[catalog.MaliciousIP])
}
