package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "habitlog",
		Short: "Habit tracker API server and weekly digest tools",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
