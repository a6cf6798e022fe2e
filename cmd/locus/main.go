// Command locus resolves service implementations from binding manifests.
package main

import (
	"context"
	"os"

	"github.com/deep-rent/locus/internal/cli"
)

// Set via -ldflags "-X main.version=..." at build time.
var version = "dev"

func main() {
	if err := cli.Execute(context.Background(), version); err != nil {
		os.Exit(1)
	}
}
