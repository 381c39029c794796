package main

import (
	"os"

	"paper-trade-bot-go/cmd/trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
