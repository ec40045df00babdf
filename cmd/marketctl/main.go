package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RugileVa/TiGets/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "marketctl:", err)
		os.Exit(1)
	}
}
