package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snev68/cubicle/internal/registry"
)

func touchUpdated(t *testing.T, homeDirs, pkg string, mtime time.Time) {
	t.Helper()
	dir := filepath.Join(homeDirs, registry.PackageEnvironmentName(pkg))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	sentinel := filepath.Join(dir, ".UPDATED")
	if err := os.WriteFile(sentinel, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(sentinel, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func buildablePackage(t *testing.T, name string) *registry.Package {
	t.Helper()
	srcDir := t.TempDir()
	script := filepath.Join(srcDir, "update.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return &registry.Package{
		Name:         name,
		SourceDir:    srcDir,
		Depends:      map[string]struct{}{},
		UpdateScript: script,
	}
}

func TestNeverBuilt(t *testing.T) {
	homeDirs := t.TempDir()
	o := New(homeDirs)
	pkg := buildablePackage(t, "a")

	stale, err := o.Stale(context.Background(), nil, pkg, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("never-built buildable package should be stale")
	}
}

func TestFreshWhenRecentlyBuiltAndDepsOlder(t *testing.T) {
	homeDirs := t.TempDir()
	o := New(homeDirs)
	pkg := buildablePackage(t, "a")

	now := time.Now()
	builtAt := now.Add(-1 * time.Hour)
	touchUpdated(t, homeDirs, "a", builtAt)
	// source tree mtime (directory and update.sh) predates the build.
	if err := os.Chtimes(pkg.SourceDir, builtAt.Add(-time.Minute), builtAt.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(pkg.UpdateScript, builtAt.Add(-time.Minute), builtAt.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	touchUpdated(t, homeDirs, "dep", builtAt.Add(-2*time.Hour))

	stale, err := o.Stale(context.Background(), nil, pkg, map[string]struct{}{"dep": {}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Error("package should be fresh: built recently, source and deps older")
	}
}

func TestStaleAfterRefreshInterval(t *testing.T) {
	homeDirs := t.TempDir()
	o := New(homeDirs)
	pkg := buildablePackage(t, "a")

	now := time.Now()
	builtAt := now.Add(-13 * time.Hour)
	touchUpdated(t, homeDirs, "a", builtAt)
	if err := os.Chtimes(pkg.SourceDir, builtAt.Add(-time.Minute), builtAt.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(pkg.UpdateScript, builtAt.Add(-time.Minute), builtAt.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	stale, err := o.Stale(context.Background(), nil, pkg, nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("package built over 12h ago should be stale")
	}
}

func TestStaticPackageNeverStale(t *testing.T) {
	homeDirs := t.TempDir()
	o := New(homeDirs)
	pkg := &registry.Package{Name: "static", SourceDir: t.TempDir()}

	stale, err := o.Stale(context.Background(), nil, pkg, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Error("static package (no update_script) must never be stale")
	}
}

func TestStaleWhenDependencyRebuiltAfter(t *testing.T) {
	homeDirs := t.TempDir()
	o := New(homeDirs)
	pkg := buildablePackage(t, "a")

	now := time.Now()
	builtAt := now.Add(-1 * time.Hour)
	touchUpdated(t, homeDirs, "a", builtAt)
	if err := os.Chtimes(pkg.SourceDir, builtAt.Add(-time.Minute), builtAt.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(pkg.UpdateScript, builtAt.Add(-time.Minute), builtAt.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	touchUpdated(t, homeDirs, "dep", builtAt.Add(time.Minute))

	stale, err := o.Stale(context.Background(), nil, pkg, map[string]struct{}{"dep": {}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("package should be stale: a dependency was built after it")
	}
}
