package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tweetrelay/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.OpenDatabase).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
