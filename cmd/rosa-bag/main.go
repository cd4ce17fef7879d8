package main

import (
	"os"

	"github.com/lherman-cs/rosa-bag/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
