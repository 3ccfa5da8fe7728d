package main

import (
	"os"

	"github.com/ganot/perfscan/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
