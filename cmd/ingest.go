package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-cli/internal/fetch"
	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/parser"
)

var (
	ingestJSON   bool
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-url>",
	Short: "Ingest a delivery-order export end to end",
	Long:  "Parses the export, estimates missing distances, organizes routes, prices the invoice, flags issues, and persists the run. The source may be a local file or an http(s) download link.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		src, cleanup, err := fetch.Resolve(ctx, args[0], nil)
		if err != nil {
			return err
		}
		defer cleanup()

		if ingestDryRun {
			res, err := parser.ParseOrdersFile(src, parser.Options{})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Orders)
		}

		env, err := initPipeline(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, src)
		if err != nil {
			return err
		}

		if ingestJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Stats())
		}

		fmt.Printf("Ingest %s\n", result.Ingest.ID)
		fmt.Printf("  orders:   %d (%d noise rows skipped, %d unparsable)\n",
			len(result.Orders), result.Skipped, result.Invalid)
		fmt.Printf("  routes:   %d\n", len(result.Routes))
		fmt.Printf("  invoice:  $%.2f over %.1f miles\n",
			result.Invoice.TotalCost, result.Invoice.TotalDistance)
		fmt.Printf("  issues:   %d\n", len(result.Issues))

		for _, iss := range result.Issues {
			if iss.Severity == model.SeverityError {
				fmt.Printf("    ! %s: %s\n", iss.OrderID, iss.Message)
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print run stats as JSON")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse only: print orders as JSON, no store writes")
	rootCmd.AddCommand(ingestCmd)
}
