// Package main is the tansaku CLI entry point.
package main

import (
	"os"

	"github.com/hyperjump/tansaku/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
