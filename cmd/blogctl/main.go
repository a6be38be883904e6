package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bloghub/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
