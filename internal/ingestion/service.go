// Package ingestion seeds resources from CSV and XLSX files.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/eveql/internal/domain"
	"github.com/rpattn/eveql/internal/schema/validator"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Target resolves resources and stores validated documents.
type Target interface {
	Table(resource string) (*domain.Table, error)
	Insert(ctx context.Context, resource string, doc domain.Document) (domain.Document, error)
}

// Service ingests tabular data into resources.
type Service struct {
	target Target
}

// NewService creates a new ingestion service.
func NewService(target Target) *Service {
	return &Service{target: target}
}

// Request describes the ingestion input. HeaderRowIndex selects the header
// row; by default the first non-empty row is used.
type Request struct {
	Resource       string
	FileName       string
	Data           io.Reader
	HeaderRowIndex *int
}

// RowError reports a rejected row. Row counts data rows from 1.
type RowError struct {
	Row     int                 `json:"row"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	BatchID        uuid.UUID  `json:"batchId"`
	TotalRows      int        `json:"totalRows"`
	ValidRows      int        `json:"validRows"`
	InvalidRows    int        `json:"invalidRows"`
	IgnoredColumns []string   `json:"ignoredColumns"`
	RowErrors      []RowError `json:"rowErrors"`
}

type tableData struct {
	headers    []string
	rawHeaders []string
	rows       [][]string
}

// Ingest reads the file, converts every row to a document of the
// resource, and inserts the rows that pass validation. Rejected rows are
// reported in the summary. A data store failure aborts the ingestion.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{BatchID: uuid.New(), IgnoredColumns: []string{}, RowErrors: []RowError{}}

	table, err := s.target.Table(req.Resource)
	if err != nil {
		return summary, err
	}
	if req.Data == nil {
		return summary, errors.New("no data to ingest")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	data, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}

	columns := make([]*domain.Column, len(data.headers))
	for i, header := range data.headers {
		col, ok := table.Column(strings.ToLower(header))
		if !ok {
			summary.IgnoredColumns = append(summary.IgnoredColumns, data.rawHeaders[i])
			continue
		}
		columns[i] = &col
	}

	logger := log.With().Str("batch", summary.BatchID.String()).Str("resource", req.Resource).Logger()
	if len(summary.IgnoredColumns) > 0 {
		logger.Warn().Strs("columns", summary.IgnoredColumns).Msg("Ignoring columns without a matching field")
	}

	for i, row := range data.rows {
		rowNumber := i + 1
		summary.TotalRows++

		doc, err := buildDocument(columns, row)
		if err != nil {
			summary.reject(RowError{Row: rowNumber, Message: err.Error()})
			logger.Warn().Int("row", rowNumber).Err(err).Msg("Rejected row")
			continue
		}

		if _, err := s.target.Insert(ctx, req.Resource, doc); err != nil {
			var verr *validator.ValidationError
			if !errors.As(err, &verr) {
				return summary, fmt.Errorf("row %d: %w", rowNumber, err)
			}
			summary.reject(RowError{Row: rowNumber, Message: "validation failed", Fields: verr.Result.ByField()})
			logger.Warn().Int("row", rowNumber).Interface("fields", verr.Result.ByField()).Msg("Rejected row")
			continue
		}
		summary.ValidRows++
	}

	logger.Info().Int("total", summary.TotalRows).Int("valid", summary.ValidRows).Msg("Ingestion finished")
	return summary, nil
}

func (s *Summary) reject(rowErr RowError) {
	s.InvalidRows++
	s.RowErrors = append(s.RowErrors, rowErr)
}

func buildDocument(columns []*domain.Column, row []string) (domain.Document, error) {
	doc := domain.Document{}
	for i, col := range columns {
		if col == nil || i >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[i])
		if raw == "" {
			continue
		}
		value, err := coerceValue(col.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		doc[col.Name] = value
	}
	return doc, nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if len(cleanRow(records[*headerRowIndex])) == 0 {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		dataRows = append(dataRows, records[*headerRowIndex+1:]...)
	} else {
		for _, row := range records {
			if len(cleanRow(row)) == 0 {
				continue
			}
			if headerRow == nil {
				headerRow = row
				continue
			}
			dataRows = append(dataRows, row)
		}
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	return tableData{
		headers:    headers,
		rawHeaders: rawHeaders,
		rows:       filterEmptyRows(dataRows),
	}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func filterEmptyRows(rows [][]string) [][]string {
	var filtered [][]string
	for _, row := range rows {
		if len(cleanRow(row)) > 0 {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func coerceValue(columnType domain.ColumnType, raw string) (any, error) {
	switch columnType {
	case domain.ColumnTypeString, domain.ColumnTypeText:
		return raw, nil
	case domain.ColumnTypeUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to uuid", raw)
		}
		return id.String(), nil
	case domain.ColumnTypeInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			if n, ok := domain.FloatToInt(f); ok {
				return n, nil
			}
		}
		return nil, fmt.Errorf("unable to coerce %q to integer", raw)
	case domain.ColumnTypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("unable to coerce %q to float", raw)
	case domain.ColumnTypeBoolean:
		value := strings.ToLower(raw)
		switch value {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to boolean", raw)
		}
		return boolVal, nil
	case domain.ColumnTypeDateTime, domain.ColumnTypeDate:
		ts, err := domain.ParseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to timestamp: %w", raw, err)
		}
		return ts, nil
	case domain.ColumnTypeJSON:
		var out any
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("invalid json payload: %w", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}
