package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-cli/internal/export"
	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/pricing"
)

var (
	invoiceFormat  string
	invoiceOutput  string
	invoiceRecalcs []string
	invoiceDrivers bool
	invoiceStatus  string
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice <file>",
	Short: "Price an invoice for a delivery-order export",
	Long:  "Runs the full pipeline and writes the priced invoice. Use --recalc to override a route's distance; the item keeps its original distance for audit.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, args[0])
		if err != nil {
			return err
		}
		inv := result.Invoice

		for _, spec := range invoiceRecalcs {
			routeKey, miles, err := parseRecalc(spec)
			if err != nil {
				return err
			}
			if err := pricing.RecalculateItem(inv, routeKey, miles, cfg.Pricing.Rates()); err != nil {
				return err
			}
		}

		if invoiceStatus != "" {
			if err := pricing.AdvanceStatus(inv, model.InvoiceStatus(invoiceStatus)); err != nil {
				return err
			}
		}

		if len(invoiceRecalcs) > 0 || invoiceStatus != "" {
			if err := env.Store.SaveInvoice(ctx, result.Ingest.ID, inv); err != nil {
				return eris.Wrap(err, "save invoice")
			}
		}

		return writeInvoice(inv)
	},
}

// parseRecalc splits a "routeKey=miles" override.
func parseRecalc(spec string) (string, float64, error) {
	key, raw, ok := strings.Cut(spec, "=")
	if !ok || key == "" {
		return "", 0, eris.Errorf("invalid --recalc %q, want routeKey=miles", spec)
	}
	miles, err := strconv.ParseFloat(raw, 64)
	if err != nil || miles < 0 {
		return "", 0, eris.Errorf("invalid --recalc distance %q", raw)
	}
	return key, miles, nil
}

func writeInvoice(inv *model.Invoice) error {
	switch invoiceFormat {
	case "json":
		out := os.Stdout
		if invoiceOutput != "" {
			f, err := os.Create(invoiceOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	case "csv":
		out := os.Stdout
		if invoiceOutput != "" {
			f, err := os.Create(invoiceOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		if invoiceDrivers {
			return export.WriteDriverSummaryCSV(out, inv)
		}
		return export.WriteInvoiceCSV(out, inv)
	case "xlsx":
		if invoiceOutput == "" {
			return eris.New("--output is required for xlsx format")
		}
		if err := export.WriteInvoiceXLSX(invoiceOutput, inv); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", invoiceOutput)
		return nil
	default:
		return eris.Errorf("unsupported format: %s", invoiceFormat)
	}
}

func init() {
	invoiceCmd.Flags().StringVar(&invoiceFormat, "format", "json", "output format: json, csv, or xlsx")
	invoiceCmd.Flags().StringVar(&invoiceOutput, "output", "", "output file (default stdout; required for xlsx)")
	invoiceCmd.Flags().StringArrayVar(&invoiceRecalcs, "recalc", nil, "override a route distance, routeKey=miles (repeatable)")
	invoiceCmd.Flags().BoolVar(&invoiceDrivers, "drivers", false, "write the per-driver summary instead of line items (csv only)")
	invoiceCmd.Flags().StringVar(&invoiceStatus, "advance-to", "", "advance invoice status: reviewed or finalized")
	rootCmd.AddCommand(invoiceCmd)
}
