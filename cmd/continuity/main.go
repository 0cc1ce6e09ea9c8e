package main

import (
	"os"

	"github.com/rcliao/story-continuity/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
