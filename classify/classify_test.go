package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foae/riskdet/catalog"
	"github.com/foae/riskdet/index"
	"github.com/foae/riskdet/ipmatch"
)

func newTestClassifier(t *testing.T, seed map[catalog.Category][]string) (*Classifier, *index.Registry) {
	t.Helper()
	reg := index.NewRegistry()
	reg.Create(catalog.MXCacheIndex)

	for _, cat := range catalog.All() {
		entries := index.Snapshot{}
		for _, e := range seed[cat] {
			entries[e] = struct{}{}
		}
		reg.LoadStaging("staging_"+string(cat), entries)
		assert.NoError(t, reg.Swap("staging_"+string(cat), string(cat)))
	}

	matcher := ipmatch.NewMatcher(reg)
	return New(reg, matcher, nil), reg
}

func seedValidMX(reg *index.Registry, domain string) {
	reg.InsertOnce(catalog.MXCacheIndex, cacheKeyValid(domain))
}

func seedNoMX(reg *index.Registry, domain string) {
	reg.InsertOnce(catalog.MXCacheIndex, cacheKeyNone(domain))
}

func TestClassifyEmptyRequest(t *testing.T) {
	c, _ := newTestClassifier(t, nil)
	got := c.Classify(context.Background(), Request{})
	assert.Equal(t, catalog.TierNone, got.Level)
	assert.Empty(t, got.Reasons)
}

func TestScenario1DisposableEmail(t *testing.T) {
	c, _ := newTestClassifier(t, map[catalog.Category][]string{
		catalog.DisposableEmail: {"tempmail.com"},
	})
	got := c.Classify(context.Background(), Request{Email: "test@tempmail.com"})
	assert.Equal(t, catalog.TierHigh, got.Level)
	assert.Equal(t, []string{"disposable_email"}, got.Reasons)
}

func TestScenario2TorIP(t *testing.T) {
	c, _ := newTestClassifier(t, map[catalog.Category][]string{
		catalog.TorNetworkIP: {"185.220.101.1"},
	})
	got := c.Classify(context.Background(), Request{IP: "185.220.101.1"})
	assert.Equal(t, catalog.TierHigh, got.Level)
	assert.Equal(t, []string{"tor_network_ip"}, got.Reasons)
}

func TestScenario3FreeEmailDowngradesCleanIP(t *testing.T) {
	c, _ := newTestClassifier(t, nil)
	got := c.Classify(context.Background(), Request{Email: "john@gmail.com", IP: "8.8.8.8"})
	assert.Equal(t, catalog.TierLow, got.Level)
	assert.Equal(t, []string{"free_email"}, got.Reasons)
}

func TestScenario4CorporateEmailCleansLowIP(t *testing.T) {
	c, reg := newTestClassifier(t, map[catalog.Category][]string{
		catalog.ReportedIP: {"198.51.100.1"},
	})
	seedValidMX(reg, "acme.com")

	got := c.Classify(context.Background(), Request{Email: "john@acme.com", IP: "198.51.100.1"})
	assert.Equal(t, catalog.TierNone, got.Level)
	assert.Empty(t, got.Reasons)
}

func TestScenario5HighIPSurvivesValidMX(t *testing.T) {
	c, reg := newTestClassifier(t, map[catalog.Category][]string{
		catalog.TorNetworkIP: {"185.220.101.1"},
	})
	seedValidMX(reg, "acme.com")

	got := c.Classify(context.Background(), Request{Email: "john@acme.com", IP: "185.220.101.1"})
	assert.Equal(t, catalog.TierHigh, got.Level)
	assert.Equal(t, []string{"tor_network_ip"}, got.Reasons)
}

func TestDisposableEmailAlwaysHighRegardlessOfMXCache(t *testing.T) {
	c, reg := newTestClassifier(t, map[catalog.Category][]string{
		catalog.DisposableEmail: {"tempmail.com"},
	})
	seedValidMX(reg, "tempmail.com")

	got := c.Classify(context.Background(), Request{Email: "test@tempmail.com"})
	assert.Equal(t, catalog.TierHigh, got.Level)
}

func TestInvalidEmailNoMXIsHigh(t *testing.T) {
	c, reg := newTestClassifier(t, nil)
	seedNoMX(reg, "nomx.example")

	got := c.Classify(context.Background(), Request{Email: "john@nomx.example"})
	assert.Equal(t, catalog.TierHigh, got.Level)
	assert.Equal(t, []string{"invalid_email"}, got.Reasons)
}

func TestPrivacyEmailIsMedium(t *testing.T) {
	c, _ := newTestClassifier(t, map[catalog.Category][]string{
		catalog.PrivacyEmail: {"privaterelay.appleid.com"},
	})
	got := c.Classify(context.Background(), Request{Email: "x@privaterelay.appleid.com"})
	assert.Equal(t, catalog.TierMedium, got.Level)
	assert.Equal(t, []string{"privacy_email"}, got.Reasons)
}

func TestIPScanOrderFirstHitWins(t *testing.T) {
	c, _ := newTestClassifier(t, map[catalog.Category][]string{
		catalog.MaliciousIP: {"1.2.3.4"},
		catalog.VPNIP:       {"1.2.3.4"},
	})
	got := c.classifyIP("1.2.3.4")
	assert.Equal(t, catalog.TierHigh, got.Level)
	assert.Equal(t, []string{"malicious_ip"}, got.Reasons)
}

func TestOldAttackerIPReturnsLowDespiteMediumScanPosition(t *testing.T) {
	c, _ := newTestClassifier(t, map[catalog.Category][]string{
		catalog.OldAttackerIP: {"9.9.9.9"},
	})
	got := c.classifyIP("9.9.9.9")
	assert.Equal(t, catalog.TierLow, got.Level)
	assert.Equal(t, []string{"old_attacker_ip"}, got.Reasons)
}

func TestMergeAlgebraMatchesMaxExceptSpecialCells(t *testing.T) {
	tiers := []catalog.Tier{catalog.TierNone, catalog.TierLow, catalog.TierMedium, catalog.TierHigh}

	for _, cur := range tiers {
		for _, newT := range tiers {
			got := resolveTier(cur, newT)
			if cur == catalog.TierLow && newT == catalog.TierNone {
				assert.Equal(t, catalog.TierNone, got)
				continue
			}
			want := cur
			if newT > want {
				want = newT
			}
			assert.Equal(t, want, got, "cur=%v new=%v", cur, newT)
		}
	}
}

func TestMXCacheHitAvoidsSecondLookup(t *testing.T) {
	c, reg := newTestClassifier(t, nil)
	seedValidMX(reg, "acme.com")

	// mx resolver is nil; if the cache weren't consulted first this would
	// panic on a nil pointer dereference.
	got := c.Classify(context.Background(), Request{Email: "x@acme.com"})
	assert.Equal(t, catalog.TierNone, got.Level)
}
