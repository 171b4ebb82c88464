package main

import (
	"os"

	turnpikecmder "github.com/turnpike-ai/turnpike/cmd/turnpike"
)

func main() {
	cmd := turnpikecmder.NewTurnpikeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
