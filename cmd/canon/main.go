// Package main is the entry point for the canon CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/canon/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands that reported through the formatter already printed the
	// error; only bare errors (bad args, unknown flags) reach stderr here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
