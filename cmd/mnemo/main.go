package main

import (
	"os"

	"github.com/bnema/mnemo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
