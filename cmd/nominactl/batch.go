package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	repo "github.com/joseph-ayodele/nomina-receipts/internal/repository"
)

type periodFlags struct {
	periodType string
	periodID   string
	fecha      string
	createdBy  string
}

func (p *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.periodType, "period-type", string(constants.PeriodBiweekly),
		"Period type ("+strings.Join(constants.PeriodTypesAsStringSlice(), ", ")+")")
	cmd.Flags().StringVar(&p.periodID, "period-id", "", "Period identifier, e.g. 2024-01")
	cmd.Flags().StringVar(&p.fecha, "fecha", "", "Period date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.createdBy, "created-by", "", "Operator name recorded on the batch")
}

func (p *periodFlags) batch() (*entity.Batch, error) {
	pt, ok := constants.CanonicalPeriodType(p.periodType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown period type %q", common.ErrInvalidInput, p.periodType)
	}
	v := common.NewValidator().
		Field("period-id", p.periodID, common.Required, common.MaxLength(32)).
		Field("fecha", p.fecha, common.Required)
	if err := v.Error(); err != nil {
		return nil, err
	}
	fecha, err := time.Parse(constants.PeriodDateLayout, p.fecha)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha must be YYYY-MM-DD: %v", common.ErrInvalidInput, err)
	}
	b := &entity.Batch{PeriodType: pt, PeriodID: p.periodID, FechaPeriodo: fecha}
	if p.createdBy != "" {
		b.CreatedBy = &p.createdBy
	}
	return b, nil
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Create, upload and inspect batches",
	}
	cmd.AddCommand(batchCreateCmd(), batchUploadCmd(), batchListCmd(), batchShowCmd())
	return cmd
}

func batchCreateCmd() *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a batch in status CREATED",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := pf.batch()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			created, err := a.store.Batches.Create(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d created (%s %s)\n", created.ID, created.PeriodType, created.PeriodDate())
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}

func batchUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <batch-id> <archive.zip>",
		Short: "Attach an archive to a batch and mark it UPLOADED for the worker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.Batches.AttachArchive(cmd.Context(), id, filepath.Base(path), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d uploaded: %s\n", id, path)
			return nil
		},
	}
}

func batchListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			batches, err := a.store.Batches.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPERIOD\tSTATUS\tTOTAL\tSUCCESS\tERRORS")
			for _, b := range batches {
				fmt.Fprintf(w, "%d\t%s %s\t%s\t%d\t%d\t%d\n", b.ID, b.PeriodType, b.PeriodDate(), b.Status, b.TotalFiles, b.SuccessFiles, b.ErrorFiles)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum batches")
	return cmd
}

func batchShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a batch and its per-file outcomes",
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
			return printBatch(cmd.Context(), cmd, a.store, id)
		},
	}
}

func printBatch(ctx context.Context, cmd *cobra.Command, store *repo.Store, id int) error {
	b, err := store.Batches.GetByID(ctx, id)
	if err != nil {
		return err
	}
	files, err := store.BatchFiles.ListByBatch(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "batch %d  %s %s  status=%s  total=%d success=%d errors=%d\n",
		b.ID, b.PeriodType, b.PeriodDate(), b.Status, b.TotalFiles, b.SuccessFiles, b.ErrorFiles)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tSTATUS\tRFC\tERROR")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Filename, f.FileType, f.Status, strOr(f.RFCExtracted), strOr(f.ErrorMessage))
	}
	return w.Flush()
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a valid id", common.ErrInvalidInput, s)
	}
	return id, nil
}

func strOr(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
