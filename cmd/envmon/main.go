package main

import (
	"os"

	"github.com/afroash/env-monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
