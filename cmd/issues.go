package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-cli/internal/issues"
	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/parser"
)

var (
	issuesJSON  bool
	issuesOrder string
)

var issuesCmd = &cobra.Command{
	Use:   "issues <file>",
	Short: "Flag orders that need dispatcher review",
	Long:  "Parses the file and reports incomplete data, long routes, tight windows, overloaded drivers, and oversized trips. Advisory only; nothing blocks.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parser.ParseOrdersFile(args[0], parser.Options{})
		if err != nil {
			return err
		}

		found := issues.Detect(res.Orders, cfg.Issues)
		if issuesOrder != "" {
			found = issues.ForOrder(found, issuesOrder)
		}

		if issuesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(found)
		}

		if len(found) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		formatIssues(os.Stdout, found)
		fmt.Printf("%d issue(s) across %d order(s)\n", len(found), len(res.Orders))
		return nil
	},
}

func formatIssues(w io.Writer, found []model.Issue) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tDRIVER\tSEVERITY\tMESSAGE\tDETAILS")
	for _, iss := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			iss.OrderID, iss.Driver, iss.Severity, iss.Message, iss.Details)
	}
	_ = tw.Flush()
}

func init() {
	issuesCmd.Flags().BoolVar(&issuesJSON, "json", false, "print issues as JSON")
	issuesCmd.Flags().StringVar(&issuesOrder, "order", "", "only issues for this order ID")
	rootCmd.AddCommand(issuesCmd)
}
