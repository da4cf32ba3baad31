// Package ingest reads tabular datasets (CSV or Excel) into the numeric
// feature matrices the audit engines consume.
package ingest

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV dataset files.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a new data reader that handles both Excel and CSV files.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// Read loads the file into a Frame of raw string cells plus headers.
func (r *DataReader) Read() (*Frame, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSV()
	case "xlsx":
		return r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcel reads Sheet1 into a Frame.
func (r *DataReader) readExcel() (*Frame, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	readStart := time.Now()
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	log.Printf("[DataReader] Sheet1 read in %.2fms (%d rows)",
		float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// readCSV reads the whole CSV file into a Frame.
func (r *DataReader) readCSV() (*Frame, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	readStart := time.Now()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)",
		float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into a Frame.
func (r *DataReader) processRows(rows [][]string) (*Frame, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	cells := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		clean := make([]string, len(headers))
		for j := range headers {
			if j < len(row) {
				clean[j] = strings.TrimSpace(row[j])
			}
		}
		cells = append(cells, clean)
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(cells))

	return &Frame{Path: r.filePath, Headers: headers, Cells: cells}, nil
}

// sensitiveColumnMarkers are substrings that suggest a column holds a
// protected attribute. Matching is case-insensitive on the header name.
var sensitiveColumnMarkers = []string{
	"gender", "sex", "race", "ethnic", "age", "religion",
	"marital", "national", "disab", "pregnan",
}

// DetectSensitiveColumns returns the headers that look like protected
// attributes, in header order.
func DetectSensitiveColumns(headers []string) []string {
	var detected []string
	for _, header := range headers {
		lower := strings.ToLower(header)
		for _, marker := range sensitiveColumnMarkers {
			if strings.Contains(lower, marker) {
				detected = append(detected, header)
				break
			}
		}
	}
	return detected
}
