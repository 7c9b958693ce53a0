// Command riskctl runs change risk assessments from the command line
// against a reference data snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"change-risk/backend/pkg/models"
)

var rootCmd = &cobra.Command{
	Use:          "riskctl",
	Short:        "Evaluate change requests offline",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(assessCmd, validateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readRequest(path string) (models.ChangeRequest, error) {
	var req models.ChangeRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
