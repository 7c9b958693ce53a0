package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"change-risk/backend/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate <request.yaml>",
	Short: "Check that a change request is complete and well formed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(args[0])
		if err != nil {
			return err
		}
		if err := engine.Validate(req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}
