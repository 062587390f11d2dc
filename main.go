package main

import (
	"os"

	"github.com/concierge-tc/portal-backend/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
