package main

import (
	"os"

	"github.com/vitos/portfolio_sim/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
