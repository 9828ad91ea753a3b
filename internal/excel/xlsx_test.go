package excel

import (
	"context"
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
	path := filepath.Join(t.TempDir(), "test.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func collectRows(path string, opts Options) ([][]string, error) {
	rowCh, errCh := StreamXLSX(context.Background(), path, opts)
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	return rows, <-errCh
}

func collectRecords(path string, opts Options) ([]Record, error) {
	recCh, errCh := StreamRecords(context.Background(), path, opts)
	var recs []Record
	for rec := range recCh {
		recs = append(recs, rec)
	}
	return recs, <-errCh
}

func TestStreamXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Leads": {{"x"}},
	})

	rows, err := collectRows(path, Options{SheetName: "Leads"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}}, rows)

	_, err = collectRows(path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestStreamXLSX_MissingFile(t *testing.T) {
	_, err := collectRows(filepath.Join(t.TempDir(), "nope.xlsx"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestStreamRecords(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{" Company Name ", "Address", ""},
			{"Acme Widgets ", "1 Main St", "ignored"},
			{"", "", ""},
			{"Zeta Foods"},
		},
	})

	recs, err := collectRecords(path, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Row)
	assert.Equal(t, map[string]string{"Company Name": "Acme Widgets", "Address": "1 Main St"}, recs[0].Fields)
	assert.Equal(t, 4, recs[1].Row)
	assert.Equal(t, map[string]string{"Company Name": "Zeta Foods"}, recs[1].Fields)
}

func TestStreamRecords_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Q3 Lead Export"},
			{"Company Name", "Address"},
			{"Acme Widgets", "1 Main St"},
		},
	})

	recs, err := collectRecords(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].Row)
	assert.Equal(t, "Acme Widgets", recs[0].Fields["Company Name"])
}

func TestStreamXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"a", "b"},
			{"1", "2"},
		},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, Options{SkipRows: 1})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Equal(t, [][]string{{"1", "2"}}, rows)
}

func TestStreamXLSX_ContextCancellation(t *testing.T) {
	sheetData := make([][]string, 1000)
	for i := range sheetData {
		sheetData[i] = []string{"a", "b", "c"}
	}
	path := createTestXLSX(t, map[string][][]string{"Sheet1": sheetData})

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamXLSX(ctx, path, Options{})

	count := 0
	for range rowCh {
		count++
		if count >= 5 {
			cancel()
			break
		}
	}
	for range rowCh { //nolint:revive // drain
	}
	for range errCh { //nolint:revive // drain
	}
	cancel()
}
