package mxresolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/miekg/dns"
)

// ErrLookupFailed wraps any transport or protocol failure during an MX
// lookup. NXDOMAIN is not an error: it resolves to an empty record set.
var ErrLookupFailed = errors.New("mxresolver: lookup failed")

const queryTimeout = 2 * time.Second

// Record is a single resolved MX record.
type Record struct {
	Priority uint16
	Host     string
}

// exchanger is the slice of *dns.Client.ExchangeContext this package
// depends on, narrowed so tests can substitute a fake without opening a
// real socket.
type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// Resolver looks up MX records against the upstream pool.
type Resolver struct {
	client exchanger
	pool   *pool
}

// New returns a Resolver backed by the default public DNS upstream pool.
func New() *Resolver {
	cl := &dns.Client{
		ReadTimeout:  queryTimeout,
		WriteTimeout: queryTimeout,
		DialTimeout:  queryTimeout,
		Timeout:      queryTimeout,
	}
	return &Resolver{client: cl, pool: newPool(defaultUpstreams())}
}

// Close releases the resolver's background resources.
func (r *Resolver) Close() {
	r.pool.Close()
}

// LookupMX resolves domain's MX records using a single round-robin
// upstream from the pool, sorted ascending by priority. A domain with no
// MX records (NXDOMAIN or an empty answer) returns a nil slice and a nil
// error.
func (r *Resolver) LookupMX(ctx context.Context, domain string) ([]Record, error) {
	up, err := r.pool.selectUpstream()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, up.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s via %s: %v", ErrLookupFailed, domain, up.name, err)
	}

	if resp.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: %s via %s: rcode %d", ErrLookupFailed, domain, up.name, resp.Rcode)
	}

	var records []Record
	for _, rr := range resp.Answer {
		mx, ok := rr.(*dns.MX)
		if !ok {
			continue
		}
		records = append(records, Record{Priority: mx.Preference, Host: mx.Mx})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Priority < records[j].Priority })
	return records, nil
}
