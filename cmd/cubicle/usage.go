package main

import (
	"fmt"
	"os"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, "cubicle [-flags] <command> [-flags] <args>\n")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "To get help on any command, use cubicle <command> -help or cubicle help <command>.\n")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Environment commands:\n")
	fmt.Fprintf(os.Stderr, "\tnew      - create a new environment (and enter it with -enter)\n")
	fmt.Fprintf(os.Stderr, "\tenter    - open a shell in an existing environment\n")
	fmt.Fprintf(os.Stderr, "\texec     - run a command in an existing environment\n")
	fmt.Fprintf(os.Stderr, "\treset    - rebuild an environment's home directory from scratch\n")
	fmt.Fprintf(os.Stderr, "\tpurge    - delete an environment entirely\n")
	fmt.Fprintf(os.Stderr, "\ttmp      - create and enter a scratch environment under a generated name\n")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Inspection commands:\n")
	fmt.Fprintf(os.Stderr, "\tlist     - list environments\n")
	fmt.Fprintf(os.Stderr, "\tpackages - list known packages\n")
}
