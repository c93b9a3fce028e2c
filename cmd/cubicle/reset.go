package main

import (
	"context"
	"flag"

	"golang.org/x/xerrors"
)

func cmdReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	clean := fs.Bool("clean", false, "only remove the home directory, do not reconstruct it")
	var pkgs packagesFlag
	pkgs.register(fs, "")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return xerrors.New("usage: cubicle reset [-clean] [-packages list] <name>...")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	// An unset -packages flag means "reuse the prior selection", which the
	// Manager distinguishes from an explicit empty/"none" list by nil-ness.
	var packages []string
	if pkgs.raw != "" {
		packages, err = pkgs.resolve(a.registry)
		if err != nil {
			return err
		}
		if packages == nil {
			packages = []string{}
		}
	}

	return runPerName(fs.Args(), func(name string) error {
		if err := a.manager.Reset(ctx, name, packages, *clean); err != nil {
			return xerrors.Errorf("reset %s: %w", name, err)
		}
		return nil
	})
}
