package main

import (
	"os"

	"github.com/briansoule/poa-bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
