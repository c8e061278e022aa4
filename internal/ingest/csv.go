package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
)

// ReadCSV parses a backup CSV export of the prediction feature group into a
// raw table. The first record is the header; every field stays a string and
// is interpreted later by the normalizer.
func ReadCSV(r io.Reader) (aqi.RawTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return aqi.RawTable{}, fmt.Errorf("empty csv")
	}
	if err != nil {
		return aqi.RawTable{}, fmt.Errorf("read header: %w", err)
	}

	table := aqi.RawTable{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return aqi.RawTable{}, fmt.Errorf("read record: %w", err)
		}

		row := make([]any, len(record))
		for i, field := range record {
			row[i] = field
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
