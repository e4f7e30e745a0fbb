package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/invoice-extractor/internal/invoice"
)

const (
	numFmtMoney     = 4 // #,##0.00
	timestampFormat = "yyyy-mm-dd hh:mm:ss"
)

// WriteXLSX writes records as a workbook with a single Summary sheet. Money
// columns are numeric cells, timestamps are date-time cells and fields that
// were not found read "unknown".
func WriteXLSX(w io.Writer, records []*invoice.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := invoice.Headers()
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, rec := range records {
		rowNum := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}

		row := rowValues(rec)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rowNum, err)
		}
	}

	if err := styles.apply(f, len(headers), len(records)+1); err != nil {
		return err
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// rowValues converts a record into cell values in Headers order
func rowValues(rec *invoice.Record) []interface{} {
	row := make([]interface{}, 0, len(invoice.Headers()))
	row = append(row, rec.Timestamp(), rec.Filename())

	for _, field := range invoice.Fields() {
		v := rec.Value(field)
		if n, ok := v.Number(); ok && field.Kind() == invoice.KindMoney {
			row = append(row, n.InexactFloat64())
			continue
		}
		row = append(row, v.String())
	}
	return row
}

type styles struct {
	header    int
	timestamp int
	money     int
}

func newStyles(f *excelize.File) (*styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	tsFormat := timestampFormat
	timestamp, err := f.NewStyle(&excelize.Style{CustomNumFmt: &tsFormat})
	if err != nil {
		return nil, fmt.Errorf("failed to create timestamp style: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	return &styles{header: header, timestamp: timestamp, money: money}, nil
}

func (s *styles) apply(f *excelize.File, columns, lastRow int) error {
	lastCol, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", s.header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 32); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if lastRow < 2 {
		return nil
	}

	if err := f.SetCellStyle(SheetName, "A2", fmt.Sprintf("A%d", lastRow), s.timestamp); err != nil {
		return fmt.Errorf("failed to style timestamps: %w", err)
	}

	// Field columns start after Timestamp and Filename
	for i, field := range invoice.Fields() {
		if field.Kind() != invoice.KindMoney {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 3)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, col+"2", fmt.Sprintf("%s%d", col, lastRow), s.money); err != nil {
			return fmt.Errorf("failed to style %s: %w", field.Header(), err)
		}
	}
	return nil
}
