package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/a3tai/invoice-extractor/internal/invoice"
)

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []*invoice.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(invoice.Headers()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec.Strings()); err != nil {
			return fmt.Errorf("failed to write %s: %w", rec.Filename(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}
