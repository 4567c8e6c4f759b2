package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"skelgen/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "skelgen",
	Short: "BPF type catalogue to Go binding generator",
	Long:  `skelgen reads compiled BPF objects and generates Go skeleton bindings for their types, data sections and programs`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cleanCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether the file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
