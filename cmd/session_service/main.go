// Package main provides the entry point for the CVPerfect session service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "session_service",
	Short: "CVPerfect Session Service",
	Long:  "Session service persists in-progress CV sessions across the payment redirect and recovers them on the success page via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
