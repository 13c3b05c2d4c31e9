// RACM Interlink - CLI client for the RACM document analysis service.
package main

import (
	"os"

	"github.com/racmlabs/racm-int/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
