// Package main provides the entry point for the veritasctl CLI.
package main

import (
	"context"
	"os"

	"ergoveritas/internal/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
