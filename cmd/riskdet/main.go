package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foae/riskdet/catalog"
	"github.com/foae/riskdet/classify"
	"github.com/foae/riskdet/fetch"
	"github.com/foae/riskdet/index"
	"github.com/foae/riskdet/ipmatch"
	"github.com/foae/riskdet/loader"
	"github.com/foae/riskdet/mxresolver"
)

const (
	httpServerReadTimeout  = time.Second * 30
	httpServerWriteTimeout = time.Second * 30
)

func main() {
	log.Println("Starting up riskdet...")

	snapshotDir := os.Getenv("RISKDET_SNAPSHOT_DIR")
	if snapshotDir == "" {
		snapshotDir = "priv/blocklists"
		log.Printf("RISKDET_SNAPSHOT_DIR is empty, using default %q", snapshotDir)
	}
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		log.Fatalf("creating snapshot dir %s: %v", snapshotDir, err)
	}

	accessKey := os.Getenv("RISKDET_ACCESS_KEY")
	if accessKey == "" {
		log.Println("RISKDET_ACCESS_KEY is empty, admin endpoints are unauthenticated")
	}

	port := os.Getenv("RISKDET_HTTP_PORT")
	if port == "" {
		port = "8888"
		log.Printf("RISKDET_HTTP_PORT is empty, using default port %s", port)
	}

	reg := index.NewRegistry()
	matcher := ipmatch.NewMatcher(reg)

	mxRes := mxresolver.New()
	defer mxRes.Close()

	fetcher := fetch.NewFetcher(catalog.FeedURLs())
	sup := loader.New(reg, matcher, fetcher, snapshotDir)
	classifier := classify.New(reg, matcher, mxRes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup.Boot(ctx)

	router := NewRouter(accessKey, sup, classifier)
	mux := http.NewServeMux()
	mux.HandleFunc("/classify", router.handleClassify)
	mux.HandleFunc("/admin/update", router.handleUpdateNow)
	mux.HandleFunc("/admin/status", router.handleStatus)
	mux.HandleFunc("/health", router.handleHealth)

	srv := &http.Server{
		Addr:         "127.0.0.1:" + port,
		Handler:      mux,
		ReadTimeout:  httpServerReadTimeout,
		WriteTimeout: httpServerWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
