package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/parser"
	"github.com/sells-group/dispatch-cli/internal/routes"
)

var routesJSON bool

var routesCmd = &cobra.Command{
	Use:   "routemap <file>",
	Short: "Organize orders into billable routes",
	Long:  "Groups orders by trip number, falling back to driver plus ready hour, then to one route per order. Prints each route with its resolved distance.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := parser.ParseOrdersFile(args[0], parser.Options{})
		if err != nil {
			return err
		}

		rts := routes.Organize(res.Orders)

		if routesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rts)
		}

		calc := routes.NewDistanceCalculator(env.Client, env.Store)
		formatRoutes(ctx, os.Stdout, rts, calc)
		return nil
	},
}

func formatRoutes(ctx context.Context, w io.Writer, rts []model.OrderRoute, calc *routes.DistanceCalculator) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tDRIVER\tSTOPS\tPUMP\tMILES")
	for i := range rts {
		r := &rts[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\n",
			r.RouteKey, r.Driver(), r.Stops(), r.PumpPickupCount(),
			calc.RouteDistance(ctx, *r),
		)
	}
	_ = tw.Flush()
}

func init() {
	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "print routes as JSON")
	rootCmd.AddCommand(routesCmd)
}
