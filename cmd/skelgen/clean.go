package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skelgen/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop the generation cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := driver.OpenDiskCache("skelgen")
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "cache dropped")
		}
		return nil
	},
}
