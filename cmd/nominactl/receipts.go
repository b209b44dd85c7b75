package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/receipts"
	"github.com/joseph-ayodele/nomina-receipts/internal/storage"
)

func receiptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipts <rfc>",
		Short: "List an employee's receipts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := receipts.NewService(a.store.Receipts, storage.NewLayout(a.cfg.Storage.Root, a.logger), a.logger)
			recs, err := svc.ListByRFC(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEY\tPDF1\tPDF2\tXML")
			for _, r := range recs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.RFCFecha,
					strOr(r.PDF1Filename), strOr(r.PDF2Filename), strOr(r.XMLFilename))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(receiptFileCmd())
	return cmd
}

func receiptFileCmd() *cobra.Command {
	var asEmployee string
	cmd := &cobra.Command{
		Use:   "file <receipt-id> <pdf1|pdf2|xml>",
		Short: "Print the stored path of one receipt document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			slot := entity.Slot(args[1])
			switch slot {
			case entity.SlotPDF1, entity.SlotPDF2, entity.SlotXML:
			default:
				return fmt.Errorf("unknown slot %q", args[1])
			}

			a, err := openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var who entity.Principal = entity.StaffPrincipal{Username: "nominactl", Role: "operator"}
			if asEmployee != "" {
				who = entity.EmployeePrincipal{RFC: asEmployee}
			}
			svc := receipts.NewService(a.store.Receipts, storage.NewLayout(a.cfg.Storage.Root, a.logger), a.logger)
			path, err := svc.ResolveFile(cmd.Context(), who, id, slot)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&asEmployee, "as-employee", "", "Resolve as the employee with this RFC")
	return cmd
}
