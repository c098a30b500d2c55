// Package main provides the entry point for the conceptrag CLI.
package main

import (
	"fmt"
	"os"

	"github.com/concept-rag/conceptrag/cmd/conceptrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
