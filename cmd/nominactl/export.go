package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nomina-receipts/internal/export"
)

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Write an XLSX report for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := export.NewService(a.store.Batches, a.store.BatchFiles, a.store.Receipts, a.logger)
			data, err := svc.ExportBatchXLSX(cmd.Context(), id)
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("batch-%d.xlsx", id)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default batch-<id>.xlsx)")
	return cmd
}
