// Package scheduler computes the build order for a set of requested
// packages and drives the Freshness Oracle and Builder over it.
package scheduler

import (
	"context"
	"sort"
	"time"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/snev68/cubicle/internal/builder"
	"github.com/snev68/cubicle/internal/freshness"
	"github.com/snev68/cubicle/internal/registry"
)

// Scheduler drives the fixpoint build-order algorithm described in
// SPEC_FULL.md §4.5 over one Registry.
type Scheduler struct {
	registry *registry.Registry
	oracle   *freshness.Oracle
	builder  *builder.Builder
}

// New returns a Scheduler wired to reg, oracle, and bld.
func New(reg *registry.Registry, oracle *freshness.Oracle, bld *builder.Builder) *Scheduler {
	return &Scheduler{registry: reg, oracle: oracle, builder: bld}
}

// Ensure computes deps*(requested), rebuilds every stale buildable package in
// it in dependency order, and returns the BuildRecords for whatever was
// actually rebuilt (in the order builds happened).
func (s *Scheduler) Ensure(ctx context.Context, requested []string) ([]builder.BuildRecord, error) {
	closure, err := s.registry.TransitiveDepends(requested)
	if err != nil {
		return nil, err
	}

	todoSet := closure
	if err := s.precheckCycles(todoSet); err != nil {
		return nil, err
	}

	todo := make([]string, 0, len(todoSet))
	for name := range todoSet {
		todo = append(todo, name)
	}
	sort.Strings(todo)

	now := time.Now()
	done := make(map[string]struct{}, len(todo))
	var records []builder.BuildRecord

	for len(todo) > 0 {
		var later []string
		progressed := false

		for _, name := range todo {
			pkg, ok := s.registry.Get(name)
			if !ok {
				return nil, xerrors.Errorf("package %q: %w", name, registry.ErrUnsatisfiableDependencies)
			}
			if !dependsSatisfied(pkg, done) {
				later = append(later, name)
				continue
			}

			deps, err := s.registry.TransitiveDepends([]string{name})
			if err != nil {
				return nil, err
			}
			stale, err := s.oracle.Stale(ctx, s.registry, pkg, deps, now)
			if err != nil {
				return nil, err
			}
			if stale {
				record, err := s.builder.Build(ctx, pkg)
				if err != nil {
					return nil, err
				}
				records = append(records, record)
			}

			done[name] = struct{}{}
			progressed = true
		}

		if !progressed && len(later) == len(todo) {
			return nil, xerrors.Errorf("packages %v: %w", later, registry.ErrUnsatisfiableDependencies)
		}
		todo = later
	}

	return records, nil
}

func dependsSatisfied(pkg *registry.Package, done map[string]struct{}) bool {
	for dep := range pkg.Depends {
		if dep == pkg.Name {
			continue
		}
		if _, ok := done[dep]; !ok {
			return false
		}
	}
	return true
}

// precheckCycles builds a directed graph over names (an edge p -> q for every
// q in p.Depends) and runs a topological sort purely to produce a friendlier
// error than the fixpoint loop's flattened "no progress" message: when the
// graph is unorderable, it names one concrete cycle.
func (s *Scheduler) precheckCycles(names map[string]struct{}) error {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(names))
	next := int64(0)
	idFor := func(name string) int64 {
		if id, ok := ids[name]; ok {
			return id
		}
		ids[name] = next
		next++
		return ids[name]
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		g.AddNode(simple.Node(idFor(name)))
	}
	for _, name := range sorted {
		pkg, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		for dep := range pkg.Depends {
			if _, ok := names[dep]; !ok {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(idFor(name)), simple.Node(idFor(dep))))
		}
	}

	idToName := make(map[int64]string, len(ids))
	for name, id := range ids {
		idToName[id] = name
	}

	if _, err := topo.Sort(g); err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok || len(uo) == 0 {
			return xerrors.Errorf("scheduler: %w", registry.ErrUnsatisfiableDependencies)
		}
		cycle := make([]string, 0, len(uo[0]))
		for _, node := range uo[0] {
			cycle = append(cycle, idToName[node.ID()])
		}
		sort.Strings(cycle)
		return xerrors.Errorf("dependency cycle %v: %w", cycle, registry.ErrUnsatisfiableDependencies)
	}
	return nil
}
