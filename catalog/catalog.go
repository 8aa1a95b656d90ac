// Package catalog holds the fixed, compile-time table of risk categories:
// their tier, entry kind, and default feed URL.
package catalog

import "github.com/foae/riskdet/entry"

// Tier is the fixed risk level associated with a category, ordered so that
// numeric comparison gives high > medium > low > none.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMedium
	TierHigh
)

// String renders a Tier the way it's serialized at the classifier boundary.
func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "none"
	}
}

// Category names a fixed catalog member.
type Category string

const (
	CriminalNetworkIP Category = "criminal_network_ip"
	MaliciousIP       Category = "malicious_ip"
	TorNetworkIP      Category = "tor_network_ip"
	RecentAttackerIP  Category = "recent_attacker_ip"
	DisposableEmail   Category = "disposable_email"
	WeekAttackerIP    Category = "week_attacker_ip"
	SuspiciousIP      Category = "suspicious_ip"
	VPNIP             Category = "vpn_ip"
	DatacenterIP      Category = "datacenter_ip"
	PrivacyEmail      Category = "privacy_email"
	ReportedIP        Category = "reported_ip"
	OldAttackerIP     Category = "old_attacker_ip"
)

// MXCacheIndex is the name of the dedicated registry index caching
// domain -> valid_mx|no_mx verdicts. It is not a catalog member: it has no
// tier or feed URL, and is populated by live resolution, not by fetch.
const MXCacheIndex = "mx_cache"

// Meta is a category's fixed compile-time metadata.
type Meta struct {
	Tier Tier
	Kind entry.Kind
	URL  string
}

const defaultFeedBase = "https://feeds.riskdet.internal/v1"

var catalogTable = map[Category]Meta{
	CriminalNetworkIP: {Tier: TierHigh, Kind: entry.KindIP, URL: defaultFeedBase + "/criminal_network_ip.txt"},
	MaliciousIP:       {Tier: TierHigh, Kind: entry.KindIP, URL: defaultFeedBase + "/malicious_ip.txt"},
	TorNetworkIP:      {Tier: TierHigh, Kind: entry.KindIP, URL: defaultFeedBase + "/tor_network_ip.txt"},
	RecentAttackerIP:  {Tier: TierHigh, Kind: entry.KindIP, URL: defaultFeedBase + "/recent_attacker_ip.txt"},
	DisposableEmail:   {Tier: TierHigh, Kind: entry.KindEmail, URL: defaultFeedBase + "/disposable_email.txt"},
	WeekAttackerIP:    {Tier: TierMedium, Kind: entry.KindIP, URL: defaultFeedBase + "/week_attacker_ip.txt"},
	SuspiciousIP:      {Tier: TierMedium, Kind: entry.KindIP, URL: defaultFeedBase + "/suspicious_ip.txt"},
	VPNIP:             {Tier: TierMedium, Kind: entry.KindIP, URL: defaultFeedBase + "/vpn_ip.txt"},
	DatacenterIP:      {Tier: TierMedium, Kind: entry.KindIP, URL: defaultFeedBase + "/datacenter_ip.txt"},
	PrivacyEmail:      {Tier: TierMedium, Kind: entry.KindEmail, URL: defaultFeedBase + "/privacy_email.txt"},
	ReportedIP:        {Tier: TierLow, Kind: entry.KindIP, URL: defaultFeedBase + "/reported_ip.txt"},
	OldAttackerIP:     {Tier: TierLow, Kind: entry.KindIP, URL: defaultFeedBase + "/old_attacker_ip.txt"},
}

// orderedCategories fixes iteration order wherever it matters: staging
// builds and swaps, bootstrap index creation, status reporting.
var orderedCategories = []Category{
	CriminalNetworkIP, MaliciousIP, TorNetworkIP, RecentAttackerIP, DisposableEmail,
	WeekAttackerIP, SuspiciousIP, VPNIP, DatacenterIP, PrivacyEmail,
	ReportedIP, OldAttackerIP,
}

// All returns every category in a stable order.
func All() []Category {
	out := make([]Category, len(orderedCategories))
	copy(out, orderedCategories)
	return out
}

// Get returns a category's fixed metadata.
func Get(c Category) (Meta, bool) {
	m, ok := catalogTable[c]
	return m, ok
}

// FeedURLs returns the default category -> feed URL map.
func FeedURLs() map[Category]string {
	out := make(map[Category]string, len(catalogTable))
	for cat, meta := range catalogTable {
		out[cat] = meta.URL
	}
	return out
}
