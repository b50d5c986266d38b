// Package main is the entry point for the dashcast application.
package main

import (
	"os"

	"github.com/dashcast/dashcast/cmd/dashcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
