package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Args are the server's command line arguments, grounded on the teacher's
// args.go.
type Args struct {
	ConfigDir string
}

func getArgs() *Args {
	configDir := flag.String("conf", "", "Directory containing pyrcd.json, the MOTD, and the rules file.")

	flag.Parse()

	if len(*configDir) == 0 {
		printUsage(fmt.Errorf("you must provide a configuration directory"))
		return nil
	}

	dir, err := filepath.Abs(*configDir)
	if err != nil {
		printUsage(fmt.Errorf("unable to determine path to the configuration directory: %s", err))
		return nil
	}

	return &Args{ConfigDir: dir}
}

func printUsage(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)
	_, _ = fmt.Fprintf(os.Stderr, "Usage: %s <arguments>\n", os.Args[0])
	flag.PrintDefaults()
}
