// Package registry discovers cubicle package definitions from the built-in
// collection and any user collections, and exposes the transitive-dependency
// closure operator used by the scheduler and the environment runner.
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/xerrors"
)

// autoPackage is the synthetic sentinel every non-auto package implicitly
// depends on; see §4.2.
const autoPackage = "auto"

// PackageEnvironmentName returns the synthetic built-package environment name
// for package name p, e.g. "make" -> "package-make".
func PackageEnvironmentName(p string) string {
	return "package-" + p
}

// Package is one registry entry: a named source directory with optional
// dependency, provides, and update-script metadata. It is a plain record, not
// a type hierarchy — distinguishing "buildable" (UpdateScript != "") from
// "static" is a predicate, not a subtype.
type Package struct {
	Name       string
	Origin     string
	SourceDir  string
	Depends    map[string]struct{}
	Provides   []string
	UpdateScript string // empty if the package is static
}

// Buildable reports whether the package has an update script and can
// therefore become stale and be rebuilt.
func (p *Package) Buildable() bool {
	return p.UpdateScript != ""
}

// SortedDepends returns p.Depends as a sorted slice.
func (p *Package) SortedDepends() []string {
	out := make([]string, 0, len(p.Depends))
	for d := range p.Depends {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ErrUnsatisfiableDependencies is wrapped into errors raised when a
// transitive-dependency walk or the scheduler encounters a package name that
// does not resolve in the registry, or a dependency cycle that can never
// complete.
var ErrUnsatisfiableDependencies = xerrors.New("unsatisfiable dependencies")

// Registry is the immutable, process-wide set of known packages for one
// invocation. Per DESIGN NOTES, it is owned by the command dispatcher and
// passed by reference; it is never a package-level global.
type Registry struct {
	byName map[string]*Package
}

// Load populates a Registry from userPackagesDir (each immediate subdirectory
// is an origin containing package directories) and then builtinPackagesDir
// (every immediate subdirectory is a package with origin "built-in"). A
// package name already present from an earlier origin wins; later origins
// are skipped for that name.
func Load(userPackagesDir, builtinPackagesDir string) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Package)}

	origins, err := sortedSubdirs(userPackagesDir)
	if err != nil {
		return nil, xerrors.Errorf("registry: scanning %s: %w", userPackagesDir, err)
	}
	for _, origin := range origins {
		if err := r.addOrigin(filepath.Join(userPackagesDir, origin), origin); err != nil {
			return nil, err
		}
	}

	if err := r.addOrigin(builtinPackagesDir, "built-in"); err != nil {
		return nil, err
	}

	if _, ok := r.byName[autoPackage]; !ok {
		return nil, xerrors.Errorf("registry: built-in collection must define the %q package", autoPackage)
	}
	autoClosure, err := r.TransitiveDepends([]string{autoPackage})
	if err != nil {
		return nil, xerrors.Errorf("registry: resolving %q: %w", autoPackage, err)
	}
	for name := range autoClosure {
		delete(r.byName[name].Depends, autoPackage)
	}

	return r, nil
}

// addOrigin adds every immediate subdirectory of dir as a package with the
// given origin, skipping names already known from an earlier origin.
func (r *Registry) addOrigin(dir, origin string) error {
	names, err := sortedSubdirs(dir)
	if err != nil {
		return xerrors.Errorf("registry: scanning %s: %w", dir, err)
	}
	for _, name := range names {
		if _, ok := r.byName[name]; ok {
			continue // first origin wins
		}
		pkg, err := loadPackage(filepath.Join(dir, name), name, origin)
		if err != nil {
			return xerrors.Errorf("registry: loading package %s (origin %s): %w", name, origin, err)
		}
		r.byName[name] = pkg
	}
	return nil
}

func loadPackage(dir, name, origin string) (*Package, error) {
	dependLines, err := readLines(filepath.Join(dir, "depends.txt"))
	if err != nil {
		return nil, err
	}
	depends := make(map[string]struct{}, len(dependLines)+1)
	for _, d := range dependLines {
		depends[d] = struct{}{}
	}
	depends[autoPackage] = struct{}{}

	provides, err := readLines(filepath.Join(dir, "provides.txt"))
	if err != nil {
		return nil, err
	}
	for _, p := range provides {
		if err := ValidateProvide(p); err != nil {
			return nil, xerrors.Errorf("provides.txt: %w", err)
		}
	}

	updateScript := ""
	if fileExists(filepath.Join(dir, "update.sh")) {
		updateScript = filepath.Join(dir, "update.sh")
	}

	return &Package{
		Name:         name,
		Origin:       origin,
		SourceDir:    dir,
		Depends:      depends,
		Provides:     provides,
		UpdateScript: updateScript,
	}, nil
}

// ValidateProvide returns an error if p is not a clean relative path: it must
// not be absolute, must not be anchored at the home directory with "~/", and
// must not contain a ".." segment.
func ValidateProvide(p string) error {
	if strings.HasPrefix(p, "/") {
		return xerrors.Errorf("%q must be a relative path", p)
	}
	if strings.HasPrefix(p, "~/") {
		return xerrors.Errorf("%q must not be anchored at the home directory", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return xerrors.Errorf("%q must not contain a \"..\" segment", p)
		}
	}
	return nil
}

// Get looks up a package by name.
func (r *Registry) Get(name string) (*Package, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns every known package name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TransitiveDepends computes deps*(names): the smallest set containing names
// and closed under Depends. Cycles are handled by skipping already-visited
// nodes; an unknown package name surfaces ErrUnsatisfiableDependencies.
func (r *Registry) TransitiveDepends(names []string) (map[string]struct{}, error) {
	visited := make(map[string]struct{})
	var visit func(string) error
	visit = func(name string) error {
		if _, ok := visited[name]; ok {
			return nil
		}
		visited[name] = struct{}{}
		pkg, ok := r.byName[name]
		if !ok {
			return xerrors.Errorf("package %q: %w", name, ErrUnsatisfiableDependencies)
		}
		for dep := range pkg.Depends {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, xerrors.Errorf("package %q: %w", name, err)
		}
	}
	return visited, nil
}

func sortedSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func readLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
