// Package mxresolver resolves MX records against a small, fixed pool of
// public DNS servers, rather than the system resolver, so lookups are
// bounded and reproducible independent of host network configuration.
package mxresolver

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when every upstream's token bucket is
// exhausted.
var ErrRateLimited = errors.New("mxresolver: all upstreams rate limited")

const bucketCapacity = 100

type upstream struct {
	addr   string
	name   string
	tokens int
}

func defaultUpstreams() []upstream {
	return []upstream{
		{addr: "1.1.1.1:53", name: "cloudflare-primary", tokens: bucketCapacity},
		{addr: "1.0.0.1:53", name: "cloudflare-secondary", tokens: bucketCapacity},
		{addr: "8.8.8.8:53", name: "google-primary", tokens: bucketCapacity},
		{addr: "8.8.4.4:53", name: "google-secondary", tokens: bucketCapacity},
		{addr: "9.9.9.9:53", name: "quad9-primary", tokens: bucketCapacity},
		{addr: "149.112.112.112:53", name: "quad9-secondary", tokens: bucketCapacity},
		{addr: "208.67.222.222:53", name: "opendns-primary", tokens: bucketCapacity},
		{addr: "208.67.220.220:53", name: "opendns-secondary", tokens: bucketCapacity},
		{addr: "64.6.64.6:53", name: "verisign-primary", tokens: bucketCapacity},
		{addr: "77.88.8.8:53", name: "yandex-primary", tokens: bucketCapacity},
	}
}

// pool is a round-robin, token-bucket-limited set of upstream resolvers.
// Selection holds the mutex only long enough to pick and debit an upstream;
// the DNS exchange itself always happens outside the lock.
type pool struct {
	mu        sync.Mutex
	upstreams []upstream
	cursor    int

	stop chan struct{}
}

func newPool(upstreams []upstream) *pool {
	p := &pool{upstreams: upstreams, stop: make(chan struct{})}
	go p.refillLoop()
	return p
}

func (p *pool) refillLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.refill()
		case <-p.stop:
			return
		}
	}
}

func (p *pool) refill() {
	p.mu.Lock()
	for i := range p.upstreams {
		p.upstreams[i].tokens = bucketCapacity
	}
	p.mu.Unlock()
}

// Close stops the refill loop.
func (p *pool) Close() {
	close(p.stop)
}

// selectUpstream scans from the cursor for the next upstream with a
// spendable token, debits it, and advances the cursor past it.
func (p *pool) selectUpstream() (upstream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.upstreams)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if p.upstreams[idx].tokens > 0 {
			p.upstreams[idx].tokens--
			p.cursor = (idx + 1) % n
			return p.upstreams[idx], nil
		}
	}
	return upstream{}, ErrRateLimited
}
