package main

import (
	"context"
	"flag"

	"golang.org/x/xerrors"
)

func cmdEnter(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enter", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return xerrors.New("usage: cubicle enter <name>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	return a.manager.Enter(ctx, fs.Arg(0))
}
