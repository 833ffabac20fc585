package main

import (
	"os"

	"github.com/solatis/regcheck/cmd/regcheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
