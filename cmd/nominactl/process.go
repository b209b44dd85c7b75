package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nomina-receipts/internal/employees"
	"github.com/joseph-ayodele/nomina-receipts/internal/identify"
	"github.com/joseph-ayodele/nomina-receipts/internal/pipeline"
	"github.com/joseph-ayodele/nomina-receipts/internal/reconcile"
	"github.com/joseph-ayodele/nomina-receipts/internal/storage"
)

func processCmd() *cobra.Command {
	var (
		pf      periodFlags
		batchID int
		inmem   bool
	)
	cmd := &cobra.Command{
		Use:   "process <archive.zip>",
		Short: "Process one archive synchronously",
		Long: `Process one archive in the foreground and print the per-file outcomes.

Without --batch a new batch is created from the period flags.

Examples:
  nominactl process lote.zip --batch 12
  nominactl process lote.zip --inmem --period-id 2024-01 --fecha 2024-01-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			archivePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cmd, inmem)
			if err != nil {
				return err
			}
			defer a.Close()

			if batchID == 0 {
				b, err := pf.batch()
				if err != nil {
					return err
				}
				created, err := a.store.Batches.Create(ctx, b)
				if err != nil {
					return err
				}
				batchID = created.ID
			}
			if err := a.store.Batches.AttachArchive(ctx, batchID, filepath.Base(archivePath), archivePath); err != nil {
				return err
			}

			resolver, err := employees.NewResolver(a.cfg.Ingest.InitialCredential, a.logger)
			if err != nil {
				return err
			}
			proc := pipeline.NewProcessor(pipeline.Deps{
				Batches:    a.store.Batches,
				Audit:      a.store.BatchFiles,
				Tx:         a.store,
				Identifier: identify.NewIdentifier(identify.Options{Workers: a.cfg.Ingest.IdentifyWorkers, ValidatePDF: a.cfg.Ingest.ValidatePDF}, a.logger),
				Employees:  resolver,
				Reconciler: reconcile.NewReconciler(storage.NewLayout(a.cfg.Storage.Root, a.logger), a.logger),
			}, pipeline.Options{
				WorkspaceRoot:   a.cfg.Storage.WorkspaceDir,
				ArchiveMaxBytes: a.cfg.Ingest.ArchiveMaxBytes,
			}, a.logger)

			res, err := proc.ProcessBatch(ctx, batchID, archivePath)
			if err != nil {
				return fmt.Errorf("batch %d failed (retryable=%t): %w", batchID, pipeline.IsRetryable(err), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode=%s linked: employee-number=%d name=%d unresolved=%d\n",
				res.Mode, res.Links.ByEmployeeNumber, res.Links.ByName, res.Links.Unresolved)
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return printBatch(ctx, cmd, a.store, batchID)
		},
	}
	pf.register(cmd)
	cmd.Flags().IntVar(&batchID, "batch", 0, "Existing batch id")
	cmd.Flags().BoolVar(&inmem, "inmem", false, "Use a throwaway in-memory SQLite database instead of DB_URL")
	return cmd
}
