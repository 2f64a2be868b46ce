// Package export writes listings of mapped tables to CSV or XLSX.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/eveql/internal/domain"
)

// ErrUnsupportedFormat is returned for an output file that is neither
// .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// WriteFile writes docs to path in the format its extension names.
func WriteFile(path string, table *domain.Table, docs []domain.Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = file.Close() }()

	buffered := bufio.NewWriterSize(file, 1<<20)
	switch format {
	case FormatCSV:
		err = WriteCSV(buffered, table, docs)
	default:
		err = WriteWorkbook(buffered, table, docs)
	}
	if err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}

	log.Info().Str("path", path).Int("rows", len(docs)).Msg("Exported documents")
	return file.Close()
}

// WriteCSV writes a header row of field names followed by one row per
// document.
func WriteCSV(w io.Writer, table *domain.Table, docs []domain.Document) error {
	headers := table.FieldNames()
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(headers))
	for _, doc := range docs {
		for i, name := range headers {
			row[i] = formatValue(doc[name])
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteWorkbook writes docs into a single sheet named after the table.
// Numbers and booleans keep their cell types, other values are written as
// text.
func WriteWorkbook(w io.Writer, table *domain.Table, docs []domain.Document) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := SheetName(table)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	headers := table.FieldNames()
	header := make([]interface{}, len(headers))
	for i, name := range headers {
		header[i] = name
	}
	if err := stream.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, doc := range docs {
		values := make([]interface{}, len(headers))
		for i, name := range headers {
			values[i] = cellValue(doc[name])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := stream.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := stream.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SheetName returns the workbook sheet name used for table.
func SheetName(table *domain.Table) string {
	name := table.Name
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func cellValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool, int, int32, int64, float32, float64:
		return v
	default:
		return formatValue(v)
	}
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
