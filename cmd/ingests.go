package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/store"
)

var ingestsCmd = &cobra.Command{
	Use:   "ingests",
	Short: "Inspect ingest run history",
}

// -- ingests list --

var ingestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		sinceHours, _ := cmd.Flags().GetInt("since-hours")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.IngestFilter{
			Status: model.IngestStatus(status),
			Limit:  limit,
		}
		if sinceHours > 0 {
			filter.CreatedAfter = time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour)
		}

		runs, err := st.ListIngests(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "ingests list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No ingests found.")
			return nil
		}

		formatIngestList(os.Stdout, runs)
		return nil
	},
}

// -- ingests show --

var ingestsShowCmd = &cobra.Command{
	Use:   "show <ingest-id>",
	Short: "Show full details of an ingest run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetIngest(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "ingests show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func formatIngestList(w io.Writer, runs []model.IngestRun) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSOURCE\tORDERS\tISSUES\tTOTAL\tCREATED")
	for _, r := range runs {
		orders, issues := "-", "-"
		total := "-"
		if r.Stats != nil {
			orders = fmt.Sprintf("%d", r.Stats.Orders)
			issues = fmt.Sprintf("%d", r.Stats.Issues)
			total = fmt.Sprintf("$%.2f", r.Stats.InvoiceTotal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.SourceFile, orders, issues, total,
			r.CreatedAt.Format(time.RFC3339),
		)
	}
	_ = tw.Flush()
}

func init() {
	ingestsListCmd.Flags().String("status", "", "filter by status (running|complete|failed)")
	ingestsListCmd.Flags().Int("since-hours", 0, "only ingests created in the last N hours")
	ingestsListCmd.Flags().Int("limit", 50, "max ingests to list")

	ingestsCmd.AddCommand(ingestsListCmd)
	ingestsCmd.AddCommand(ingestsShowCmd)
	rootCmd.AddCommand(ingestsCmd)
}
