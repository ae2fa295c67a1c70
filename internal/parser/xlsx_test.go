package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Orders")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestParseOrdersXLSX(t *testing.T) {
	t.Parallel()

	path := writeTestWorkbook(t, [][]string{
		{"Trip Number", "Driver", "Pickup Address", "Delivery Address 1", "Order Number"},
		{"TR-1001", "Alice", "100 Main St", "200 Oak Ave", "ORD-1"},
		{"TR-1002", "Bob", "300 Elm St", "400 Pine Rd", "ORD-2"},
	})

	res, err := ParseOrdersXLSX(path, Options{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)

	trip, ok := res.Orders[0].TripNumber.Get()
	require.True(t, ok)
	assert.Equal(t, "TR-1001", trip)
	assert.Equal(t, "200 Oak Ave", res.Orders[0].Dropoff)
	assert.Equal(t, "order-1", res.Orders[0].ID)
}

func TestParseOrdersXLSX_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ParseOrdersXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), Options{})
	require.Error(t, err)
}

func TestParseOrdersFile_DispatchesByExtension(t *testing.T) {
	t.Parallel()

	csvPath := filepath.Join(t.TempDir(), "orders.csv")
	data := "Trip Number,Driver,Pickup Address,Delivery Address 1,Order Number\nTR-1001,Alice,100 Main St,200 Oak Ave,ORD-1\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(data), 0o644))

	res, err := ParseOrdersFile(csvPath, Options{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)

	xlsxPath := writeTestWorkbook(t, [][]string{
		{"Trip Number", "Driver", "Pickup Address", "Delivery Address 1", "Order Number"},
		{"TR-1001", "Alice", "100 Main St", "200 Oak Ave", "ORD-1"},
	})
	res, err = ParseOrdersFile(xlsxPath, Options{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
}
