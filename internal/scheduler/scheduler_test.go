package scheduler

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/snev68/cubicle/internal/builder"
	"github.com/snev68/cubicle/internal/freshness"
	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/registry"
	"github.com/snev68/cubicle/internal/runner"
)

func writePackage(t *testing.T, dir, name string, depends []string, buildable bool) {
	t.Helper()
	pkgDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if len(depends) > 0 {
		content := ""
		for _, d := range depends {
			content += d + "\n"
		}
		if err := os.WriteFile(filepath.Join(pkgDir, "depends.txt"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if buildable {
		if err := os.WriteFile(filepath.Join(pkgDir, "update.sh"), []byte("#!/bin/sh\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestRegistry(t *testing.T, setup func(builtin string)) *registry.Registry {
	t.Helper()
	builtin := t.TempDir()
	user := t.TempDir()
	writePackage(t, builtin, "auto", nil, false)
	if setup != nil {
		setup(builtin)
	}
	reg, err := registry.Load(user, builtin)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func newScheduler(reg *registry.Registry, homeDirs string, bld *builder.Builder) *Scheduler {
	return New(reg, freshness.New(homeDirs), bld)
}

func TestEnsureBuildsInDependencyOrder(t *testing.T) {
	homeDirs := t.TempDir()
	reg := newTestRegistry(t, func(builtin string) {
		writePackage(t, builtin, "base", nil, true)
		writePackage(t, builtin, "top", []string{"base"}, true)
	})

	l := &layout.Layout{HomeDirs: homeDirs, WorkDirs: t.TempDir(), InstallDir: t.TempDir()}
	run := &fakeRun{}
	bld := builder.New(l, run, log.New(os.Stderr, "", 0))

	s := newScheduler(reg, homeDirs, bld)
	records, err := s.Ensure(context.Background(), []string{"top"})
	if err != nil {
		t.Fatal(err)
	}

	order := make(map[string]int)
	for i, r := range records {
		order[r.PackageName] = i
	}
	if _, ok := order["base"]; !ok {
		t.Fatal("expected base to be built")
	}
	if _, ok := order["top"]; !ok {
		t.Fatal("expected top to be built")
	}
	if order["base"] >= order["top"] {
		t.Errorf("base must build before top; order=%v", order)
	}
}

func TestEnsureSkipsFreshPackages(t *testing.T) {
	homeDirs := t.TempDir()
	reg := newTestRegistry(t, func(builtin string) {
		writePackage(t, builtin, "static", nil, false)
	})

	l := &layout.Layout{HomeDirs: homeDirs, WorkDirs: t.TempDir(), InstallDir: t.TempDir()}
	run := &fakeRun{}
	bld := builder.New(l, run, log.New(os.Stderr, "", 0))

	s := newScheduler(reg, homeDirs, bld)
	records, err := s.Ensure(context.Background(), []string{"static"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("static package must never be built, got %v", records)
	}
}

func TestEnsureDetectsCycle(t *testing.T) {
	homeDirs := t.TempDir()
	builtin := t.TempDir()
	user := t.TempDir()
	writePackage(t, builtin, "auto", nil, false)
	writePackage(t, builtin, "a", []string{"b"}, true)
	writePackage(t, builtin, "b", []string{"a"}, true)
	reg, err := registry.Load(user, builtin)
	if err != nil {
		t.Fatal(err)
	}

	l := &layout.Layout{HomeDirs: homeDirs, WorkDirs: t.TempDir(), InstallDir: t.TempDir()}
	bld := builder.New(l, &fakeRun{}, log.New(os.Stderr, "", 0))

	s := newScheduler(reg, homeDirs, bld)
	if _, err := s.Ensure(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected unsatisfiable-dependencies error for a cycle")
	}
}

// fakeRun satisfies the runner.Runner-shaped dependency the Builder needs,
// letting Ensure exercise the scheduling algorithm without a real sandbox.
type fakeRun struct{}

func (f *fakeRun) Run(ctx context.Context, req runner.Request) error { return nil }
