// Package build turns a directory of downloaded category feed files into
// live registry indexes: parse each file into a staging index, then swap
// every staging index into its live name in one pass. A missing or
// unreadable feed file for any category aborts the whole cycle and discards
// every staging index already built, so a partially refreshed catalog is
// never promoted. Unparseable lines are dropped, never an error.
package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foae/riskdet/catalog"
	"github.com/foae/riskdet/entry"
	"github.com/foae/riskdet/index"
)

// ErrLoadFailed wraps a failure to read a category's feed file.
var ErrLoadFailed = errors.New("build: load failed")

const stagingPrefix = "staging:"

// Builder loads category feed files into a Registry.
type Builder struct {
	reg *index.Registry
}

// NewBuilder returns a Builder backed by reg.
func NewBuilder(reg *index.Registry) *Builder {
	return &Builder{reg: reg}
}

// StagingName returns the staging index name for cat.
func StagingName(cat catalog.Category) string {
	return stagingPrefix + string(cat)
}

// BuildAll reads every category's feed file from dir, parses it, and loads
// it into a staging index. On success every category has a populated
// staging index ready for SwapAll. On any failure, every staging index
// created during this call is removed before returning.
func (b *Builder) BuildAll(dir string) error {
	var staged []string

	for _, cat := range catalog.All() {
		meta, _ := catalog.Get(cat)
		path := filepath.Join(dir, string(cat)+".txt")

		body, err := os.ReadFile(path)
		if err != nil {
			b.cleanup(staged)
			return fmt.Errorf("%w: %s: %v", ErrLoadFailed, cat, err)
		}

		parsed := entry.ParseFile(body, meta.Kind)
		stagingName := StagingName(cat)
		b.reg.LoadStaging(stagingName, parsed)
		staged = append(staged, stagingName)
	}

	return nil
}

func (b *Builder) cleanup(staged []string) {
	for _, name := range staged {
		b.reg.Delete(name)
	}
}

// SwapAll promotes every category's staging index to its live name. Safe
// to call only after a successful BuildAll. A successful Swap consumes its
// staging index as it promotes it; on a mid-loop failure, every
// not-yet-swapped staging index is deleted before returning, so a failed
// refresh never leaves staging indexes resident (§4.3).
func (b *Builder) SwapAll() error {
	all := catalog.All()
	for i, cat := range all {
		if err := b.reg.Swap(StagingName(cat), string(cat)); err != nil {
			remaining := make([]string, 0, len(all)-i)
			for _, c := range all[i:] {
				remaining = append(remaining, StagingName(c))
			}
			b.cleanup(remaining)
			return fmt.Errorf("build: swap %s: %w", cat, err)
		}
	}
	return nil
}
