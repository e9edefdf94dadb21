package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the deployed version information",
	Long: `Version prints the build metadata file the deployment pipeline
bakes into the image, or an empty JSON object when there is none.`,
	RunE: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(cfg.VersionFile)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Println("{}")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading version file: %w", err)
	}

	os.Stdout.Write(b)
	if len(b) == 0 || b[len(b)-1] != '\n' {
		fmt.Println()
	}
	return nil
}
