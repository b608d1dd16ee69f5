package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rendezvous-peer",
	Short: "Command-line participant for rendezvous rooms",
	Long: `rendezvous-peer joins a named room on a rendezvousd server and runs the
WebRTC offer/answer exchange with whoever shares the room. The first
participant to name a room creates it and sends the offer; the second
answers.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
