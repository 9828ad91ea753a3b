// Package excel reads lead spreadsheets and writes deduplication reports.
package excel

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Options configures the XLSX reader.
type Options struct {
	SheetName string // defaults to the first sheet
	SkipRows  int    // rows above the header, such as a title banner
}

// Record is one non-blank data row keyed by trimmed header text.
type Record struct {
	Row    int // 1-based sheet row number
	Fields map[string]string
}

// StreamXLSX reads an XLSX file and sends rows to a channel.
// Both channels are closed when processing completes.
func StreamXLSX(ctx context.Context, path string, opts Options) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}

		sheet, err := getSheet(f, opts)
		if err != nil {
			errCh <- err
			return
		}

		for i, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
			if i < opts.SkipRows {
				continue
			}

			select {
			case rowCh <- rowToStrings(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// StreamRecords streams the data rows of a sheet whose first row after
// SkipRows is the header. Blank rows are dropped and empty cells omitted.
// Both channels are closed when processing completes.
func StreamRecords(ctx context.Context, path string, opts Options) (<-chan Record, <-chan error) {
	rowCh, rowErrCh := StreamXLSX(ctx, path, opts)
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		var header []string
		rowNum := opts.SkipRows
		for row := range rowCh {
			rowNum++
			if header == nil {
				header = normalizeHeader(row)
				continue
			}
			if isBlank(row) {
				continue
			}

			// On cancellation keep draining so StreamXLSX can report it.
			select {
			case recCh <- Record{Row: rowNum, Fields: toRecord(header, row)}:
			case <-ctx.Done():
			}
		}
		if err := <-rowErrCh; err != nil {
			errCh <- err
		}
	}()

	return recCh, errCh
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func normalizeHeader(row []string) []string {
	header := make([]string, len(row))
	for i, h := range row {
		header[i] = strings.TrimSpace(h)
	}
	return header
}

func toRecord(header, row []string) map[string]string {
	rec := make(map[string]string, len(header))
	for i, key := range header {
		if key == "" || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			rec[key] = v
		}
	}
	return rec
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
