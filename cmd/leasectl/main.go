package main

import (
	"fmt"
	"os"

	"github.com/V4T54L/tenancy-engine/internal/pkg/config"
)

func main() {
	rootCmd := newRootCmd(os.Stdout, config.Load)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
