package main

import (
	"fmt"
	"os"

	"github.com/dyluth/retinue/cmd/retinue/commands"
	"github.com/dyluth/retinue/internal/printer"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors are printed directly by the printer package with color formatting
	if err := commands.Execute(); err != nil {
		if !printer.Reported(err) {
			fmt.Fprintf(printer.ErrOut, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
