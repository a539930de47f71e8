package main

import (
	"os"

	"github.com/JGibbsWork/lifestack/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
