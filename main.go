package main

import (
	"fmt"
	"os"

	"github.com/aiphotofinder/photofinder/cmd"
	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	logging.Init()

	ctx := conf.NewContext(version)
	rootCmd := cmd.RootCommand(ctx)

	err := rootCmd.Execute()
	if closeErr := ctx.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
