// Package classify is the policy engine: a pure function over the index
// registry, the IP matcher, and the MX resolver that turns an
// email/IP pair into a final risk tier and a reason list.
package classify

import (
	"context"
	"strings"

	"github.com/foae/riskdet/catalog"
	"github.com/foae/riskdet/index"
	"github.com/foae/riskdet/ipmatch"
	"github.com/foae/riskdet/mxresolver"
)

const (
	mxValid = "valid_mx"
	mxNone  = "no_mx"
)

var trustedFreeProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"icloud.com":     {},
	"me.com":         {},
	"mac.com":        {},
	"aol.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"zoho.com":       {},
}

// ipScanOrder fixes the IP sub-classifier's scan order: high-tier
// categories first, then medium (old_attacker_ip included, despite its own
// fixed tier being low), then the remaining low-tier category. The first
// category hit wins the scan; the tier it contributes is always that
// category's own fixed tier from the catalog, not its position in this
// scan order.
var ipScanOrder = []catalog.Category{
	catalog.CriminalNetworkIP, catalog.MaliciousIP, catalog.TorNetworkIP, catalog.RecentAttackerIP,
	catalog.WeekAttackerIP, catalog.SuspiciousIP, catalog.VPNIP, catalog.DatacenterIP, catalog.OldAttackerIP,
	catalog.ReportedIP,
}

// Verdict is the outcome of classifying one side (IP or email) or the
// merged final result.
type Verdict struct {
	Level   catalog.Tier
	Reasons []string
}

// Request is the classifier's input: either field may be empty.
type Request struct {
	Email string
	IP    string
}

// Classifier evaluates Requests against live indexes, CIDR matching, and
// MX resolution.
type Classifier struct {
	reg     *index.Registry
	matcher *ipmatch.Matcher
	mx      *mxresolver.Resolver
}

// New returns a Classifier wired to reg, matcher, and mx.
func New(reg *index.Registry, matcher *ipmatch.Matcher, mx *mxresolver.Resolver) *Classifier {
	return &Classifier{reg: reg, matcher: matcher, mx: mx}
}

// Classify never fails: any internal error (rate-limited or failed MX
// lookup) collapses to a no_mx verdict rather than propagating an error.
func (c *Classifier) Classify(ctx context.Context, req Request) Verdict {
	ipVerdict := Verdict{Level: catalog.TierNone}
	if req.IP != "" {
		ipVerdict = c.classifyIP(req.IP)
	}

	emailVerdict := Verdict{Level: catalog.TierNone}
	if req.Email != "" {
		emailVerdict = c.classifyEmail(ctx, req.Email)
	}

	return merge(ipVerdict, emailVerdict)
}

func (c *Classifier) classifyIP(ip string) Verdict {
	for _, cat := range ipScanOrder {
		if c.matcher.Matches(string(cat), ip) {
			meta, _ := catalog.Get(cat)
			return Verdict{Level: meta.Tier, Reasons: []string{string(cat)}}
		}
	}
	return Verdict{Level: catalog.TierNone}
}

func (c *Classifier) classifyEmail(ctx context.Context, email string) Verdict {
	domain := domainOf(email)
	if domain == "" {
		return Verdict{Level: catalog.TierNone}
	}

	if c.reg.Lookup(string(catalog.DisposableEmail), domain) {
		return Verdict{Level: catalog.TierHigh, Reasons: []string{string(catalog.DisposableEmail)}}
	}
	if c.reg.Lookup(string(catalog.PrivacyEmail), domain) {
		return Verdict{Level: catalog.TierMedium, Reasons: []string{string(catalog.PrivacyEmail)}}
	}
	if _, ok := trustedFreeProviders[domain]; ok {
		return Verdict{Level: catalog.TierLow, Reasons: []string{"free_email"}}
	}

	if c.mxCacheHasValidMX(ctx, domain) {
		return Verdict{Level: catalog.TierNone}
	}
	return Verdict{Level: catalog.TierHigh, Reasons: []string{"invalid_email"}}
}

func domainOf(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[idx+1:]))
}

func cacheKeyValid(domain string) string { return domain + "\x00" + mxValid }
func cacheKeyNone(domain string) string  { return domain + "\x00" + mxNone }

// mxCacheHasValidMX consults the MX cache for domain, populating it with a
// live lookup on first sight. Any resolver failure (rate_limited,
// lookup_failed) is treated as no_mx, per the propagation policy: the
// classifier itself never fails.
func (c *Classifier) mxCacheHasValidMX(ctx context.Context, domain string) bool {
	if c.reg.Lookup(catalog.MXCacheIndex, cacheKeyValid(domain)) {
		return true
	}
	if c.reg.Lookup(catalog.MXCacheIndex, cacheKeyNone(domain)) {
		return false
	}

	records, err := c.mx.LookupMX(ctx, domain)
	valid := err == nil && len(records) > 0

	if valid {
		c.reg.InsertOnce(catalog.MXCacheIndex, cacheKeyValid(domain))
	} else {
		c.reg.InsertOnce(catalog.MXCacheIndex, cacheKeyNone(domain))
	}
	return valid
}

// merge resolves the IP verdict (cur) and the email verdict (latest) into
// the final verdict under the classifier's override algebra.
func merge(cur, latest Verdict) Verdict {
	finalTier := resolveTier(cur.Level, latest.Level)

	if finalTier == catalog.TierNone && cur.Level == catalog.TierLow && latest.Level == catalog.TierNone {
		return Verdict{Level: catalog.TierNone, Reasons: nil}
	}
	if finalTier == latest.Level && latest.Level != catalog.TierNone {
		return Verdict{Level: finalTier, Reasons: uniquePreserveOrder(append(append([]string{}, latest.Reasons...), cur.Reasons...))}
	}
	if finalTier == cur.Level {
		return Verdict{Level: finalTier, Reasons: cur.Reasons}
	}
	return Verdict{Level: finalTier, Reasons: uniquePreserveOrder(append(append([]string{}, latest.Reasons...), cur.Reasons...))}
}

// resolveTier implements the merge table: the numeric max under
// high>medium>low>none, except the single override cell (low, none) →
// none — a corporate email with a confirmed MX cleans a low-tier IP hit.
func resolveTier(cur, latest catalog.Tier) catalog.Tier {
	if cur == catalog.TierLow && latest == catalog.TierNone {
		return catalog.TierNone
	}
	if cur > latest {
		return cur
	}
	return latest
}

func uniquePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
