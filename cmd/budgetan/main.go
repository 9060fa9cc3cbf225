// Command budgetan is a terminal client for the Budgetan budgeting
// service.
package main

import (
	"os"

	"github.com/budgetan/budgetan-cli/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
