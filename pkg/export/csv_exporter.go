package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content. Rows sharing the same value in the
// GroupBy column are rendered together (one PDF page or XLSX sheet per group).
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
	GroupBy string
}

// Groups splits rows by the GroupBy column preserving first-seen order.
func (d Dataset) Groups() ([]string, map[string][]map[string]string) {
	if d.GroupBy == "" {
		return []string{d.Title}, map[string][]map[string]string{d.Title: d.Rows}
	}
	var order []string
	grouped := make(map[string][]map[string]string)
	for _, row := range d.Rows {
		key := row[d.GroupBy]
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], row)
	}
	return order, grouped
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset. Groups are flattened.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(record(data.Headers, row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func record(headers []string, row map[string]string) []string {
	values := make([]string, len(headers))
	for i, header := range headers {
		values[i] = row[header]
	}
	return values
}
