// Package main is the entry point for the hpcmaker CLI.
//
// hpcmaker creates and tears down HPC clusters and jumphost bastions on
// AWS. It allocates a serial number per entity, provisions the dependent
// AWS resources, renders the configuration record and drives
// ansible-playbook and terraform.
//
// Commands: jumphost, cluster, list, doctor, version, completion.
//
// For detailed usage information, run:
//
//	hpcmaker --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
