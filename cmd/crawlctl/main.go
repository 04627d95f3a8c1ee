package main

import (
	"os"

	"github.com/markdave123-py/ragcrawl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
