package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
)

// WritePositionsCSVFile writes the rows to a CSV file at the given path.
func WritePositionsCSVFile(path string, rows iter.Seq[*Position]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create positions file: %w", err)
	}
	defer f.Close()

	return WritePositionsCSV(f, rows)
}

// WritePositionsCSV writes rows to any io.Writer as CSV, in book order.
func WritePositionsCSV(w io.Writer, rows iter.Seq[*Position]) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"ticker",
		"company",
		"price",
		"shares",
		"value",
		"change_percent",
		"direction", // empty until the first quote
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for p := range rows {
		if err := writePositionRow(cw, p); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

func writePositionRow(cw *csv.Writer, p *Position) error {
	record := []string{
		p.Ticker(),
		p.Company(),
		p.Price().StringFixed(2),
		strconv.FormatInt(p.Shares(), 10),
		p.Value().StringFixed(2),
		p.FormattedChange(),
		string(p.Direction()),
	}

	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
