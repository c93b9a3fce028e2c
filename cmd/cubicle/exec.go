package main

import (
	"context"
	"flag"

	"golang.org/x/xerrors"
)

func cmdExec(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		return xerrors.New("usage: cubicle exec <name> <command> [args...]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	return a.manager.Exec(ctx, fs.Arg(0), fs.Arg(1), fs.Args()[2:])
}
