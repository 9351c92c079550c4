package excel

import (
	"math"
	"strconv"
	"strings"

	"dqmon/domain/quality"
)

// RawRowData represents a row of raw Excel data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete Excel dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// ColumnType is the inferred storage type of a file column
type ColumnType string

const (
	ColumnInteger ColumnType = "integer"
	ColumnFloat   ColumnType = "float"
	ColumnString  ColumnType = "string"
)

// InferColumnTypes types each column from its non-empty cells: all integers
// make an integer column, all numbers a float column, anything else a string
// column. A column with no non-empty cell is a string column.
func (d *ExcelData) InferColumnTypes() map[string]ColumnType {
	types := make(map[string]ColumnType, len(d.Headers))
	for _, header := range d.Headers {
		typ := ColumnString
		seen := false
		allInt, allNum := true, true
		for _, row := range d.Rows {
			cell := row[header]
			if isBlank(cell) {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				allInt = false
				if !isNumber(cell) {
					allNum = false
					break
				}
			}
		}
		switch {
		case seen && allInt:
			typ = ColumnInteger
		case seen && allNum:
			typ = ColumnFloat
		}
		types[header] = typ
	}
	return types
}

// ToDataset converts the raw cells using the inferred column types. Empty
// cells become nulls.
func (d *ExcelData) ToDataset() (*quality.Dataset, error) {
	types := d.InferColumnTypes()
	rows := make([]quality.Row, len(d.Rows))
	for i, raw := range d.Rows {
		row := make(quality.Row, len(d.Headers))
		for _, header := range d.Headers {
			row[header] = convertCell(raw[header], types[header])
		}
		rows[i] = row
	}
	return quality.NewDataset(d.Headers, rows)
}

func convertCell(cell string, typ ColumnType) quality.Value {
	if isBlank(cell) {
		return quality.NewNullValue()
	}
	switch typ {
	case ColumnInteger:
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return quality.NewIntValue(v)
		}
	case ColumnFloat:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return quality.NewFloatValue(v)
		}
	}
	return quality.NewStringValue(cell)
}

// isBlank treats empty cells and the usual spreadsheet null markers as missing
func isBlank(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "nan", "null", "na", "n/a":
		return true
	}
	return false
}

func isNumber(cell string) bool {
	f, err := strconv.ParseFloat(cell, 64)
	return err == nil && !math.IsInf(f, 0)
}
