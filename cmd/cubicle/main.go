package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/snev68/cubicle"
	internaltrace "github.com/snev68/cubicle/internal/trace"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	cpuprofile = flag.String("cpuprofile", "", "path to store a CPU profile at")
	tracefile  = flag.String("tracefile", "", "path to store a runtime trace at")
	ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

// bumpRlimitNOFILE raises RLIMIT_NOFILE to the kernel-wide maximum, since
// sandboxed builds can legitimately open many file descriptors.
func bumpRlimitNOFILE() error {
	var fileMax, nrOpen uint64
	{
		b, err := ioutil.ReadFile("/proc/sys/fs/file-max")
		if err != nil {
			return err
		}
		fileMax, err = strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
		if err != nil {
			return err
		}
	}
	{
		b, err := ioutil.ReadFile("/proc/sys/fs/nr_open")
		if err != nil {
			return err
		}
		nrOpen, err = strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
		if err != nil {
			return err
		}
	}
	max := fileMax
	if nrOpen < max {
		max = nrOpen
	}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{Max: max, Cur: max})
}

func funcmain() error {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *tracefile != "" {
		f, err := os.Create(*tracefile)
		if err != nil {
			return err
		}
		trace.Start(f)
		defer trace.Stop()
	}

	if *ctracefile != "" {
		f, err := os.Create(*ctracefile)
		if err != nil {
			return err
		}
		internaltrace.Sink(f)
	}

	if err := bumpRlimitNOFILE(); err != nil {
		log.Printf("Warning: bumping RLIMIT_NOFILE failed: %v", err)
	}

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"new":      {cmdNew},
		"enter":    {cmdEnter},
		"exec":     {cmdExec},
		"reset":    {cmdReset},
		"purge":    {cmdPurge},
		"tmp":      {cmdTmp},
		"list":     {cmdList},
		"packages": {cmdPackages},
	}

	args := flag.Args()
	verb := ""
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "" {
		printUsage()
		os.Exit(1)
	}
	if verb == "help" {
		if len(args) != 1 {
			printUsage()
			os.Exit(0)
		}
		verb, args = args[0], []string{"-help"}
	}

	ctx, canc := cubicle.InterruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: cubicle <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}

	return cubicle.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
