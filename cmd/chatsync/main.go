package main

import (
	"fmt"
	"os"

	"github.com/starrybamboo/chatsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
