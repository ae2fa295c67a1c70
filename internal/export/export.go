// Package export renders invoices to the file formats the billing side
// consumes.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-cli/internal/model"
)

var invoiceHeader = []string{
	"route_key", "driver", "order_ids", "route_type", "stops",
	"distance_mi", "base_cost", "add_ons", "total_cost", "recalculated",
}

// WriteInvoiceCSV writes the invoice as CSV: one line per route, then a totals
// row.
func WriteInvoiceCSV(w io.Writer, inv *model.Invoice) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(invoiceHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, item := range inv.Items {
		rec := []string{
			item.RouteKey,
			item.Driver,
			strings.Join(item.OrderIDs, ";"),
			string(item.RouteType),
			strconv.Itoa(item.Stops),
			money(item.Distance),
			money(item.BaseCost),
			money(item.AddOns),
			money(item.TotalCost),
			strconv.FormatBool(item.Recalculated),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "export: write item %s", item.RouteKey)
		}
	}

	totals := []string{
		"TOTAL", "", "", "", "",
		money(inv.TotalDistance), "", "", money(inv.TotalCost), "",
	}
	if err := cw.Write(totals); err != nil {
		return eris.Wrap(err, "export: write totals")
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// WriteDriverSummaryCSV writes the per-driver rollup.
func WriteDriverSummaryCSV(w io.Writer, inv *model.Invoice) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"driver", "routes", "stops", "distance_mi", "total_cost"}); err != nil {
		return eris.Wrap(err, "export: write summary header")
	}
	for _, s := range inv.DriverSummaries {
		rec := []string{
			s.Driver,
			strconv.Itoa(s.Routes),
			strconv.Itoa(s.Stops),
			money(s.TotalDistance),
			money(s.TotalCost),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "export: write summary %s", s.Driver)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush summary")
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
