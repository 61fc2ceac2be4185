package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/onvifscout/scout-release/cmd"
	"github.com/onvifscout/scout-release/internal/service"
)

func main() {
	if err := cmd.InitCommands(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize commands: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// A failing tool's exit code becomes ours
		var exitErr *service.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
