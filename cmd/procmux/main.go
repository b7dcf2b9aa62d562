package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/butter-bot-machines/procmux/pkg/cmd"
)

func main() {
	// windows only
	cobra.MousetrapHelpText = ""

	cli := cmd.NewCLI()
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
