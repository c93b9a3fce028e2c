package main

import (
	"log"
	"os"

	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/builder"
	"github.com/snev68/cubicle/internal/freshness"
	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/lifecycle"
	"github.com/snev68/cubicle/internal/registry"
	"github.com/snev68/cubicle/internal/runner"
	"github.com/snev68/cubicle/internal/scheduler"
)

// app bundles the wired components every subcommand needs.
type app struct {
	layout   *layout.Layout
	registry *registry.Registry
	manager  *lifecycle.Manager
}

func newApp() (*app, error) {
	l, err := layout.Discover()
	if err != nil {
		return nil, xerrors.Errorf("cubicle: %w", err)
	}

	reg, err := registry.Load(l.UserPackages, l.BuiltinPackages)
	if err != nil {
		return nil, xerrors.Errorf("cubicle: %w", err)
	}

	logger := log.New(os.Stderr, "", 0)
	run := runner.New(l, reg, logger)
	bld := builder.New(l, run, logger)
	oracle := freshness.New(l.HomeDirs)
	sched := scheduler.New(reg, oracle, bld)
	mgr := lifecycle.New(l, reg, sched, bld, run)

	return &app{layout: l, registry: reg, manager: mgr}, nil
}
