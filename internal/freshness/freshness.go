// Package freshness implements the staleness oracle: whether a package must
// be rebuilt before its outputs can be trusted as seed content.
package freshness

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/snev68/cubicle/internal/diskusage"
	"github.com/snev68/cubicle/internal/registry"
)

// refreshInterval is the periodic-refresh threshold: a buildable package is
// considered stale if it has not been rebuilt in this long, even if nothing
// about its source or dependencies changed.
const refreshInterval = 12 * time.Hour

// Oracle answers staleness questions against one home-directories root.
type Oracle struct {
	homeDirs string
}

// New returns an Oracle that resolves last-built timestamps under homeDirs
// (the layout.Layout.HomeDirs root).
func New(homeDirs string) *Oracle {
	return &Oracle{homeDirs: homeDirs}
}

// LastBuilt returns the mtime of package p's .UPDATED sentinel, or the zero
// value if p has never been built.
func (o *Oracle) LastBuilt(p string) time.Time {
	fi, err := os.Stat(filepath.Join(o.homeDirs, registry.PackageEnvironmentName(p), ".UPDATED"))
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

// SourceMtime returns the maximum mtime across pkg's source tree, using the
// disk-usage external tool.
func (o *Oracle) SourceMtime(ctx context.Context, pkg *registry.Package) (time.Time, error) {
	result, err := diskusage.Probe(ctx, pkg.SourceDir)
	if err != nil {
		return time.Time{}, err
	}
	return result.Mtime, nil
}

// Stale reports whether pkg must be rebuilt. now is passed in explicitly
// (rather than read via time.Now() internally) so one scheduling pass can use
// a single consistent snapshot of "now" for every package it considers; the
// 12-hour periodic-refresh rule is anchored to LastBuilt alone, never
// recomputed against SourceMtime (see SPEC_FULL.md §4.3).
func (o *Oracle) Stale(ctx context.Context, reg *registry.Registry, pkg *registry.Package, deps map[string]struct{}, now time.Time) (bool, error) {
	if !pkg.Buildable() {
		return false, nil
	}

	lastBuilt := o.LastBuilt(pkg.Name)
	if lastBuilt.IsZero() {
		return true, nil
	}

	sourceMtime, err := o.SourceMtime(ctx, pkg)
	if err != nil {
		return false, err
	}
	if !sourceMtime.Before(lastBuilt) {
		return true, nil
	}

	if now.Sub(lastBuilt) >= refreshInterval {
		return true, nil
	}

	for dep := range deps {
		if dep == pkg.Name {
			continue
		}
		if !o.LastBuilt(dep).Before(lastBuilt) {
			return true, nil
		}
	}

	return false, nil
}
