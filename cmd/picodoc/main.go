package main

import (
	"os"

	"github.com/picodoc/picodoc-go/cmd/picodoc/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
