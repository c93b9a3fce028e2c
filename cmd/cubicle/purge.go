package main

import (
	"context"
	"flag"

	"golang.org/x/xerrors"
)

func cmdPurge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return xerrors.New("usage: cubicle purge <name>...")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	return runPerName(fs.Args(), func(name string) error {
		if err := a.manager.Purge(name); err != nil {
			return xerrors.Errorf("purge %s: %w", name, err)
		}
		return nil
	})
}
