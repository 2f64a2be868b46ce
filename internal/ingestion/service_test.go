package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/eveql/internal/domain"
	"github.com/rpattn/eveql/internal/schema/validator"
)

type stubTarget struct {
	inserted []domain.Document
	reject   func(doc domain.Document) error
}

func (s *stubTarget) Table(resource string) (*domain.Table, error) {
	if resource != "people" {
		return nil, errors.New("unknown resource")
	}
	return domain.People(), nil
}

func (s *stubTarget) Insert(_ context.Context, _ string, doc domain.Document) (domain.Document, error) {
	if s.reject != nil {
		if err := s.reject(doc); err != nil {
			return nil, err
		}
	}
	s.inserted = append(s.inserted, doc)
	return doc, nil
}

func TestServiceIngestCSV(t *testing.T) {
	target := &stubTarget{}
	service := NewService(target)

	data := "\xEF\xBB\xBFFirstname,Lastname,Born,Nickname\n" +
		"Barack,Obama,1961-08-04,Barry\n" +
		"\n" +
		"Michelle,Obama,,\n"

	summary, err := service.Ingest(context.Background(), Request{
		Resource: "people",
		FileName: "people.csv",
		Data:     strings.NewReader(data),
	})
	if err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}

	if summary.TotalRows != 2 || summary.ValidRows != 2 || summary.InvalidRows != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.IgnoredColumns) != 1 || summary.IgnoredColumns[0] != "Nickname" {
		t.Fatalf("expected Nickname to be ignored, got %v", summary.IgnoredColumns)
	}
	if len(target.inserted) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(target.inserted))
	}

	first := target.inserted[0]
	if first["firstname"] != "Barack" || first["lastname"] != "Obama" {
		t.Fatalf("unexpected first document %v", first)
	}
	if born, ok := first["born"].(time.Time); !ok || !born.Equal(time.Date(1961, 8, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected born to be parsed, got %#v", first["born"])
	}
	if _, ok := target.inserted[1]["born"]; ok {
		t.Fatalf("expected empty cell to be omitted, got %v", target.inserted[1])
	}
}

func TestServiceIngestReportsRejectedRows(t *testing.T) {
	target := &stubTarget{
		reject: func(doc domain.Document) error {
			if doc["lastname"] == "Duplicate" {
				return &validator.ValidationError{Result: validator.Result{Errors: []validator.FieldError{
					{Field: "lastname", Message: "value 'Duplicate' is not unique"},
				}}}
			}
			return nil
		},
	}
	service := NewService(target)

	data := "id,lastname,born\n" +
		"1,Obama,1961-08-04\n" +
		"two,Biden,1942-11-20\n" +
		"3,Duplicate,\n" +
		"1e19,Overflow,\n"

	summary, err := service.Ingest(context.Background(), Request{
		Resource: "people",
		FileName: "people.CSV",
		Data:     strings.NewReader(data),
	})
	if err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}

	if summary.TotalRows != 4 || summary.ValidRows != 1 || summary.InvalidRows != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.RowErrors[0].Row != 2 || !strings.Contains(summary.RowErrors[0].Message, "integer") {
		t.Fatalf("unexpected conversion error %+v", summary.RowErrors[0])
	}
	if summary.RowErrors[1].Row != 3 || len(summary.RowErrors[1].Fields["lastname"]) != 1 {
		t.Fatalf("unexpected validation error %+v", summary.RowErrors[1])
	}
	if summary.RowErrors[2].Row != 4 || !strings.Contains(summary.RowErrors[2].Message, "unable to coerce") {
		t.Fatalf("expected out of range integer to be rejected, got %+v", summary.RowErrors[2])
	}
	if len(target.inserted) != 1 {
		t.Fatalf("expected only one insert, got %d", len(target.inserted))
	}
	if first := target.inserted[0]; first["id"] != int64(1) {
		t.Fatalf("expected id to be converted to int64, got %#v", first["id"])
	}
}

func TestServiceIngestAbortsOnStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	service := NewService(&stubTarget{reject: func(domain.Document) error { return boom }})

	_, err := service.Ingest(context.Background(), Request{
		Resource: "people",
		FileName: "people.csv",
		Data:     strings.NewReader("lastname\nObama\n"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

func TestServiceIngestXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"notes from the registrar"},
		{"firstname", "lastname"},
		{"Barack", "Obama"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	target := &stubTarget{}
	headerRow := 1
	summary, err := NewService(target).Ingest(context.Background(), Request{
		Resource:       "people",
		FileName:       "people.xlsx",
		Data:           &buf,
		HeaderRowIndex: &headerRow,
	})
	if err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}
	if summary.ValidRows != 1 || target.inserted[0]["lastname"] != "Obama" {
		t.Fatalf("unexpected result %+v, inserted %v", summary, target.inserted)
	}
}

func TestServiceIngestErrors(t *testing.T) {
	service := NewService(&stubTarget{})

	_, err := service.Ingest(context.Background(), Request{Resource: "people", FileName: "people.json", Data: strings.NewReader("{}")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}

	_, err = service.Ingest(context.Background(), Request{Resource: "accounts", FileName: "a.csv", Data: strings.NewReader("a\n1\n")})
	if err == nil {
		t.Fatalf("expected unknown resource error")
	}

	_, err = service.Ingest(context.Background(), Request{Resource: "people", FileName: "people.csv", Data: strings.NewReader("")})
	if err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestSanitizeHeaders(t *testing.T) {
	got := sanitizeHeaders([]string{" first name ", "first-name", "", "born.date"})
	want := []string{"first_name", "first_name_2", "column_3", "born_date"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
