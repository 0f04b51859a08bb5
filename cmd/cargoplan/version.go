package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cargoplan/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			data, err := json.MarshalIndent(buildinfo.Info(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		return nil
	},
}
