package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dispatch-cli/internal/model"
)

// WriteInvoiceXLSX writes the invoice as a workbook with an Invoice sheet and
// a Drivers rollup sheet.
func WriteInvoiceXLSX(path string, inv *model.Invoice) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Invoice")
	if err != nil {
		return eris.Wrap(err, "export: add invoice sheet")
	}

	hdr := sheet.AddRow()
	for _, col := range invoiceHeader {
		hdr.AddCell().SetString(col)
	}

	for _, item := range inv.Items {
		row := sheet.AddRow()
		row.AddCell().SetString(item.RouteKey)
		row.AddCell().SetString(item.Driver)
		row.AddCell().SetString(strings.Join(item.OrderIDs, ";"))
		row.AddCell().SetString(string(item.RouteType))
		row.AddCell().SetInt(item.Stops)
		row.AddCell().SetFloatWithFormat(item.Distance, "0.00")
		row.AddCell().SetFloatWithFormat(item.BaseCost, "0.00")
		row.AddCell().SetFloatWithFormat(item.AddOns, "0.00")
		row.AddCell().SetFloatWithFormat(item.TotalCost, "0.00")
		row.AddCell().SetBool(item.Recalculated)
	}

	totals := sheet.AddRow()
	totals.AddCell().SetString("TOTAL")
	for i := 0; i < 4; i++ {
		totals.AddCell()
	}
	totals.AddCell().SetFloatWithFormat(inv.TotalDistance, "0.00")
	totals.AddCell()
	totals.AddCell()
	totals.AddCell().SetFloatWithFormat(inv.TotalCost, "0.00")

	drivers, err := f.AddSheet("Drivers")
	if err != nil {
		return eris.Wrap(err, "export: add drivers sheet")
	}
	dh := drivers.AddRow()
	for _, col := range []string{"driver", "routes", "stops", "distance_mi", "total_cost"} {
		dh.AddCell().SetString(col)
	}
	for _, s := range inv.DriverSummaries {
		row := drivers.AddRow()
		row.AddCell().SetString(s.Driver)
		row.AddCell().SetInt(s.Routes)
		row.AddCell().SetInt(s.Stops)
		row.AddCell().SetFloatWithFormat(s.TotalDistance, "0.00")
		row.AddCell().SetFloatWithFormat(s.TotalCost, "0.00")
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}
