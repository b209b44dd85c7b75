package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "nominactl",
		Short:         "Operate the payroll receipt ingestion pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(receiptsCmd())
	rootCmd.AddCommand(dbCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
