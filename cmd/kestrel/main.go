package main

import (
	"fmt"
	"os"

	"github.com/kestrelgraph/kestrel-go/internal/cli"

	_ "github.com/kestrelgraph/kestrel-go/internal/sqlengine"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
