// Package main provides the entry point for the treesum CLI.
package main

import (
	"context"
	"os"
)

func main() {
	if err := Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
