package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "items.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestReadItemsXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"ID", "Description", "Max Price", "Quantity", "Region"},
			{"item-001", "NOTEBOOK DELL INSPIRON 15 3520 I5 8GB", "3500.00", "2", "BR-SP"},
			{"item-002", "CABO HDMI 2.1 8K 2M", "89,90", "", ""},
		},
	})

	items, err := ReadItemsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "item-001", items[0].ID)
	assert.Equal(t, "NOTEBOOK DELL INSPIRON 15 3520 I5 8GB", items[0].Description)
	require.NotNil(t, items[0].MaxPrice)
	assert.InDelta(t, 3500.0, *items[0].MaxPrice, 0.001)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "BR-SP", items[0].Region)

	// Decimal comma and defaulted quantity.
	require.NotNil(t, items[1].MaxPrice)
	assert.InDelta(t, 89.90, *items[1].MaxPrice, 0.001)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestReadItemsXLSX_GeneratesMissingID(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"description"},
			{"MOUSE SEM FIO LOGITECH M185"},
		},
	})

	items, err := ReadItemsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
}

func TestReadItemsXLSX_SkipsBlankRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"description"},
			{""},
			{"TECLADO USB ABNT2"},
		},
	})

	items, err := ReadItemsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "TECLADO USB ABNT2", items[0].Description)
}

func TestReadItemsXLSX_MissingDescriptionColumn(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "max_price"},
			{"item-001", "10.00"},
		},
	})

	_, err := ReadItemsXLSX(path, XLSXOptions{})
	assert.Error(t, err)
}

func TestReadItemsXLSX_InvalidQuantity(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"description", "quantity"},
			{"PAPEL A4 500 FOLHAS", "zero"},
		},
	})

	_, err := ReadItemsXLSX(path, XLSXOptions{})
	assert.Error(t, err)
}

func TestReadItemsXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Ignore": {{"description"}, {"WRONG SHEET"}},
		"Items":  {{"description"}, {"MONITOR LG 24 FULL HD"}},
	})

	items, err := ReadItemsXLSX(path, XLSXOptions{SheetName: "Items"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "MONITOR LG 24 FULL HD", items[0].Description)
}

func TestReadItemsXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"description"}},
	})

	_, err := ReadItemsXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}
