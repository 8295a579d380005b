package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet      = "Sheet1"
	maxSheetNameRunes = 31
)

var sheetNameReplacer = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

// XLSXExporter renders datasets into workbooks, one sheet per group.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces an .xlsx workbook.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close()

	order, grouped := data.Groups()
	used := make(map[string]int, len(order))
	for i, group := range order {
		name := uniqueSheetName(group, used)
		if i == 0 {
			f.SetSheetName(defaultSheet, name)
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}

		header := make([]interface{}, len(data.Headers))
		for col, h := range data.Headers {
			header[col] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("write xlsx header: %w", err)
		}
		for idx, row := range grouped[group] {
			cell, err := excelize.CoordinatesToCellName(1, idx+2)
			if err != nil {
				return nil, fmt.Errorf("resolve xlsx cell: %w", err)
			}
			values := record(data.Headers, row)
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return nil, fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueSheetName(raw string, used map[string]int) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(raw))
	if name == "" {
		name = "Timetable"
	}
	if runes := []rune(name); len(runes) > maxSheetNameRunes-3 {
		name = string(runes[:maxSheetNameRunes-3])
	}
	used[name]++
	if used[name] > 1 {
		return fmt.Sprintf("%s~%d", name, used[name])
	}
	return name
}
