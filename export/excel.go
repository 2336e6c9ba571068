// Package export persists extraction records to an XLSX workbook, appending
// to existing results instead of overwriting them.
package export

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/quantia/licitator/extract"
)

const sheetName = "Resultados"

// DedupeField is the column used to skip tenders already present in the
// workbook.
const DedupeField = "número de expediente"

// AppendRecords writes records to the workbook at path, creating it when
// missing. Columns follow the catalog's field order; columns already present
// in the sheet keep their position and any new fields are appended after
// them. Records whose dedupe value already exists in the sheet are skipped.
func AppendRecords(path string, fields []string, records []extract.Record) error {
	file, headers, err := openWorkbook(path, fields)
	if err != nil {
		return err
	}
	defer file.Close()

	rows, err := file.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("read existing rows: %w", err)
	}

	existing := existingValues(headers, rows)
	next := len(rows) + 1

	for _, record := range records {
		if key := record[DedupeField]; key != "" && key != extract.NotFound {
			if _, ok := existing[key]; ok {
				continue
			}
			existing[key] = struct{}{}
		}

		for col, header := range headers {
			value, ok := record[header]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, next)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := file.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
		next++
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// openWorkbook opens or creates the results workbook and returns the merged
// header row: existing columns first, then catalog fields not yet present.
func openWorkbook(path string, fields []string) (*excelize.File, []string, error) {
	var file *excelize.File
	var headers []string

	if _, err := os.Stat(path); err == nil {
		file, err = excelize.OpenFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open workbook: %w", err)
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, nil, fmt.Errorf("read header row: %w", err)
		}
		if len(rows) > 0 {
			headers = rows[0]
		}
	} else {
		file = excelize.NewFile()
		if err := file.SetSheetName("Sheet1", sheetName); err != nil {
			return nil, nil, fmt.Errorf("create results sheet: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		seen[header] = struct{}{}
	}
	for _, field := range fields {
		if _, ok := seen[field]; !ok {
			headers = append(headers, field)
		}
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, nil, fmt.Errorf("cell name: %w", err)
		}
		if err := file.SetCellValue(sheetName, cell, header); err != nil {
			return nil, nil, fmt.Errorf("write header %s: %w", header, err)
		}
	}

	return file, headers, nil
}

func existingValues(headers []string, rows [][]string) map[string]struct{} {
	col := -1
	for i, header := range headers {
		if header == DedupeField {
			col = i
			break
		}
	}

	values := make(map[string]struct{})
	if col < 0 {
		return values
	}
	for i, row := range rows {
		if i == 0 || col >= len(row) {
			continue
		}
		if value := row[col]; value != "" {
			values[value] = struct{}{}
		}
	}
	return values
}
