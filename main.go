package main

import (
	"fmt"
	"os"

	"taskapi/internal/cli"
	"taskapi/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer logger.OnExit()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
