package builder

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/registry"
	"github.com/snev68/cubicle/internal/runner"
)

func TestBuildRejectsStaticPackage(t *testing.T) {
	l := &layout.Layout{WorkDirs: t.TempDir(), HomeDirs: t.TempDir()}
	b := New(l, nil, log.New(os.Stderr, "", 0))
	pkg := &registry.Package{Name: "static"}

	if _, err := b.Build(context.Background(), pkg); err == nil {
		t.Fatal("expected error building a static package")
	}
}

func TestBuildCreatesWorkDirAndReturnsRecord(t *testing.T) {
	root := t.TempDir()
	l := &layout.Layout{
		WorkDirs:   filepath.Join(root, "work"),
		HomeDirs:   filepath.Join(root, "home"),
		InstallDir: root,
	}
	pkg := &registry.Package{
		Name:         "demo",
		Origin:       "built-in",
		SourceDir:    t.TempDir(),
		Depends:      map[string]struct{}{},
		UpdateScript: "update.sh",
	}

	run := &recordingRunner{}
	b := &Builder{layout: l, run: run, logger: log.New(os.Stderr, "", 0)}

	record, err := b.Build(context.Background(), pkg)
	if err != nil {
		t.Fatal(err)
	}
	if record.PackageName != "demo" {
		t.Errorf("record.PackageName = %q, want %q", record.PackageName, "demo")
	}
	if record.BuiltAt.IsZero() {
		t.Error("record.BuiltAt should be set")
	}

	workDir := l.EnvironmentWork(registry.PackageEnvironmentName("demo"))
	if fi, err := os.Stat(workDir); err != nil || !fi.IsDir() {
		t.Errorf("expected work dir %s to exist", workDir)
	}

	if run.req.Name != registry.PackageEnvironmentName("demo") {
		t.Errorf("runner invoked with name %q, want %q", run.req.Name, registry.PackageEnvironmentName("demo"))
	}
}

type recordingRunner struct {
	req runner.Request
}

func (r *recordingRunner) Run(ctx context.Context, req runner.Request) error {
	r.req = req
	return nil
}
