package main

import (
	"os"

	"github.com/tailored-agentic-units/converse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
