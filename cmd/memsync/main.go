package main

import (
	"os"

	"github.com/memsync-oss/memsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
