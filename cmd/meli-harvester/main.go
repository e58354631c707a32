// Package main is the entry point for meli-harvester.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/donaldgifford/meli-harvester/cmd/meli-harvester/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
