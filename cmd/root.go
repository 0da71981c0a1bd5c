package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mentorcall",
	Short: "MentorCall books paid one-to-one calls between students and developers.",
	Long: "Without a subcommand starts the API server with the signaling relay. " +
		"`migrate` manages the schema, `call` joins a session as a headless participant.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		runApp()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
