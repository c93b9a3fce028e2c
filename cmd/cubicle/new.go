package main

import (
	"context"
	"flag"

	"golang.org/x/xerrors"
)

func cmdNew(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	enter := fs.Bool("enter", false, "enter the environment after creating it")
	var pkgs packagesFlag
	pkgs.register(fs, "default")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return xerrors.New("usage: cubicle new [-enter] [-packages list] <name>")
	}
	name := fs.Arg(0)

	a, err := newApp()
	if err != nil {
		return err
	}
	packages, err := pkgs.resolve(a.registry)
	if err != nil {
		return err
	}
	if err := a.manager.NewEnvironment(ctx, name, packages); err != nil {
		return err
	}
	if *enter {
		return a.manager.Enter(ctx, name)
	}
	return nil
}
