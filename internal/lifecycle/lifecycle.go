// Package lifecycle implements the environment operations (new, enter, exec,
// reset, purge) layered over the Scheduler, Builder, and Runner.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/builder"
	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/registry"
	"github.com/snev68/cubicle/internal/runner"
	"github.com/snev68/cubicle/internal/scheduler"
)

// Sentinel errors distinguishing user errors from filesystem/external
// failures at the CLI layer.
var (
	ErrEnvironmentExists  = xerrors.New("environment already exists")
	ErrEnvironmentMissing = xerrors.New("environment does not exist")
	ErrUnknownPackage     = xerrors.New("unknown package")
)

var packageEnvPattern = regexp.MustCompile(`^package-(.+)$`)

// environmentRunner is the subset of *runner.Runner the Manager needs;
// narrowing it to an interface lets tests exercise the lifecycle operations
// without spawning a real bwrap/tar.
type environmentRunner interface {
	Run(ctx context.Context, req runner.Request) error
}

// Manager exposes the environment lifecycle operations over one Layout,
// Registry, Scheduler, Builder, and Runner.
type Manager struct {
	layout    *layout.Layout
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	builder   *builder.Builder
	runner    environmentRunner
}

// New returns a Manager wired to the given components.
func New(l *layout.Layout, reg *registry.Registry, sched *scheduler.Scheduler, bld *builder.Builder, run environmentRunner) *Manager {
	return &Manager{layout: l, registry: reg, scheduler: sched, builder: bld, runner: run}
}

func (m *Manager) exists(name string) bool {
	return dirExists(m.layout.EnvironmentWork(name)) || dirExists(m.layout.EnvironmentHome(name))
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// packagesFile returns the packages.txt path for environment name.
func (m *Manager) packagesFile(name string) string {
	return filepath.Join(m.layout.EnvironmentWork(name), "packages.txt")
}

// writePackagesFile persists the sorted, newline-terminated package list
// atomically.
func (m *Manager) writePackagesFile(name string, packages []string) error {
	sorted := append([]string{}, packages...)
	sort.Strings(sorted)
	content := ""
	if len(sorted) > 0 {
		content = strings.Join(sorted, "\n") + "\n"
	}
	if err := renameio.WriteFile(m.packagesFile(name), []byte(content), 0644); err != nil {
		return xerrors.Errorf("lifecycle: writing packages.txt for %s: %w", name, err)
	}
	return nil
}

// readPackagesFile returns the previously selected package list for name, or
// nil if it has never been written.
func (m *Manager) readPackagesFile(name string) ([]string, error) {
	b, err := os.ReadFile(m.packagesFile(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("lifecycle: reading packages.txt for %s: %w", name, err)
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func (m *Manager) validatePackages(packages []string) error {
	for _, p := range packages {
		if _, ok := m.registry.Get(p); !ok {
			return xerrors.Errorf("package %q: %w", p, ErrUnknownPackage)
		}
	}
	return nil
}

// NewEnvironment creates environment name seeded with packages.
func (m *Manager) NewEnvironment(ctx context.Context, name string, packages []string) error {
	if m.exists(name) {
		return xerrors.Errorf("environment %q: %w", name, ErrEnvironmentExists)
	}
	if err := m.validatePackages(packages); err != nil {
		return err
	}
	if _, err := m.scheduler.Ensure(ctx, packages); err != nil {
		return err
	}
	if err := os.MkdirAll(m.layout.EnvironmentWork(name), 0755); err != nil {
		return xerrors.Errorf("lifecycle: creating work dir for %s: %w", name, err)
	}
	if err := m.writePackagesFile(name, packages); err != nil {
		return err
	}
	return m.runner.Run(ctx, runner.Request{
		Name:     name,
		Packages: setOf(packages),
		Init:     m.layout.DevInitScript(),
	})
}

// Enter opens an interactive shell in an existing environment, with no seed
// and no init.
func (m *Manager) Enter(ctx context.Context, name string) error {
	if !dirExists(m.layout.EnvironmentWork(name)) {
		return xerrors.Errorf("environment %q: %w", name, ErrEnvironmentMissing)
	}
	return m.runner.Run(ctx, runner.Request{Name: name})
}

// Exec runs cmd+args inside an existing environment.
func (m *Manager) Exec(ctx context.Context, name string, cmd string, args []string) error {
	if !dirExists(m.layout.EnvironmentWork(name)) {
		return xerrors.Errorf("environment %q: %w", name, ErrEnvironmentMissing)
	}
	return m.runner.Run(ctx, runner.Request{
		Name: name,
		Exec: append([]string{cmd}, args...),
	})
}

// Reset rebuilds environment name's home directory from scratch. If packages
// is nil, the prior packages.txt selection is reused. If clean is true, the
// home directory is removed and nothing is reconstructed.
func (m *Manager) Reset(ctx context.Context, name string, packages []string, clean bool) error {
	if !dirExists(m.layout.EnvironmentWork(name)) {
		return xerrors.Errorf("environment %q: %w", name, ErrEnvironmentMissing)
	}
	if err := RMTree(m.layout.EnvironmentHome(name)); err != nil {
		return xerrors.Errorf("lifecycle: removing home dir for %s: %w", name, err)
	}
	if clean {
		return nil
	}

	selected := packages
	if selected == nil {
		prior, err := m.readPackagesFile(name)
		if err != nil {
			return err
		}
		selected = prior
	}
	if err := m.validatePackages(selected); err != nil {
		return err
	}

	if packageEnvPattern.MatchString(name) {
		return m.resetBuiltPackage(ctx, name, selected)
	}

	if _, err := m.scheduler.Ensure(ctx, selected); err != nil {
		return err
	}
	if err := m.writePackagesFile(name, selected); err != nil {
		return err
	}
	return m.runner.Run(ctx, runner.Request{
		Name:     name,
		Packages: setOf(selected),
		Init:     m.layout.DevInitScript(),
	})
}

// resetBuiltPackage forces a rebuild of the package named by a
// package-<name> environment, regardless of its staleness, per §4.7.
func (m *Manager) resetBuiltPackage(ctx context.Context, name string, selected []string) error {
	key := packageEnvPattern.FindStringSubmatch(name)[1]
	pkg, ok := m.registry.Get(key)
	if !ok {
		return xerrors.Errorf("package %q: %w", key, ErrUnknownPackage)
	}

	full := setUnion(selected, pkg.SortedDepends())
	if _, err := m.scheduler.Ensure(ctx, full); err != nil {
		return err
	}
	if _, err := m.builder.Build(ctx, pkg); err != nil {
		return err
	}
	if err := m.writePackagesFile(name, full); err != nil {
		return err
	}
	return m.runner.Run(ctx, runner.Request{
		Name:     name,
		Packages: setOf(full),
		Init:     m.layout.DevInitScript(),
	})
}

// Purge removes both the work and home directories of name, if present.
// Missing directories are not an error; if neither exists, a warning is
// printed to stderr.
func (m *Manager) Purge(name string) error {
	if !m.exists(name) {
		fmt.Fprintf(os.Stderr, "warning: environment %q does not exist\n", name)
		return nil
	}
	if err := RMTree(m.layout.EnvironmentWork(name)); err != nil {
		return xerrors.Errorf("lifecycle: purging work dir for %s: %w", name, err)
	}
	if err := RMTree(m.layout.EnvironmentHome(name)); err != nil {
		return xerrors.Errorf("lifecycle: purging home dir for %s: %w", name, err)
	}
	return nil
}

func setOf(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func setUnion(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, group := range [][]string{a, b} {
		for _, n := range group {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
