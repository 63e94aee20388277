package main

import (
	"os"

	"github.com/lherron/roster/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
