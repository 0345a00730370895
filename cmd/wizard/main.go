package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goliatone/go-wizard/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
