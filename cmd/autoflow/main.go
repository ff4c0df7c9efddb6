// Package main provides the autoflow CLI entrypoint.
package main

import (
	"os"

	"github.com/chrisdreid/autoflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
