// Package builder invokes the Environment Runner to rebuild one package's
// outputs into its dedicated home directory.
package builder

import (
	"context"
	"log"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/registry"
	"github.com/snev68/cubicle/internal/runner"
	"github.com/snev68/cubicle/internal/trace"
)

// BuildRecord is the outcome of one successful build, handed back to
// scheduler-level callers for reporting without re-stat-ing the sentinel.
type BuildRecord struct {
	PackageName string
	BuiltAt     time.Time
}

// environmentRunner is the subset of *runner.Runner the Builder needs;
// narrowing it to an interface lets tests exercise Build without spawning a
// real bwrap/tar.
type environmentRunner interface {
	Run(ctx context.Context, req runner.Request) error
}

// Builder rebuilds buildable packages by invoking the Environment Runner with
// the package's source seeded under its own environment name.
type Builder struct {
	layout *layout.Layout
	run    environmentRunner
	logger *log.Logger
}

// New returns a Builder that runs package builds via run.
func New(l *layout.Layout, run environmentRunner, logger *log.Logger) *Builder {
	return &Builder{layout: l, run: run, logger: logger}
}

// Build rebuilds pkg. Its depends become seed packages; its own source
// directory is seeded in under the archive name package-<pkg.Name>, and the
// shared dev-init.sh script drives the build inside the sandbox.
func (b *Builder) Build(ctx context.Context, pkg *registry.Package) (BuildRecord, error) {
	if !pkg.Buildable() {
		return BuildRecord{}, xerrors.Errorf("builder: package %s has no update script", pkg.Name)
	}

	envName := registry.PackageEnvironmentName(pkg.Name)
	workDir := b.layout.EnvironmentWork(envName)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return BuildRecord{}, xerrors.Errorf("builder: creating work dir %s: %w", workDir, err)
	}

	b.logger.Printf("building package %s (origin %s)", pkg.Name, pkg.Origin)
	ev := trace.Event("build:"+pkg.Name, 0)
	defer ev.Done()
	start := time.Now()

	req := runner.Request{
		Name:     envName,
		Packages: pkg.Depends,
		ExtraSeeds: []runner.ExtraSeed{{
			Directory: pkg.SourceDir,
			Files:     []string{"."},
			Transform: "s,^\\.,package-" + pkg.Name + ",",
		}},
		Init: b.layout.DevInitScript(),
	}
	if err := b.run.Run(ctx, req); err != nil {
		return BuildRecord{}, xerrors.Errorf("builder: building %s: %w", pkg.Name, err)
	}

	builtAt := time.Now()
	b.logger.Printf("built package %s in %s", pkg.Name, builtAt.Sub(start).Round(time.Millisecond))

	return BuildRecord{PackageName: pkg.Name, BuiltAt: builtAt}, nil
}
