package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/repository"
)

const sheet = "Contacts"

// Format selects the export encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx" or "csv" in any case; empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", common.ErrInvalidInput, s)
	}
}

// Ext is the file extension for f, dot included.
func (f Format) Ext() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".xlsx"
}

var headers = []string{
	"Full Name",
	"Title",
	"Company",
	"Email",
	"Phone",
	"Website",
	"Address",
	"Notes",
	"User Notes",
	"POC",
	"Confidence",
	"Source File",
	"Created At",
}

// Service produces XLSX or CSV bytes for contact exports.
type Service struct {
	contacts repository.ContactRepository
	logger   *slog.Logger
}

func NewService(contacts repository.ContactRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{contacts: contacts, logger: logger}
}

// ExportContactsXLSX returns a workbook of every stored contact, newest first.
// A non-empty poc keeps only the contacts collected by that person (case-insensitive).
func (s *Service) ExportContactsXLSX(ctx context.Context, poc string) ([]byte, error) {
	return s.Export(ctx, poc, FormatXLSX)
}

// Export renders the stored contacts in the given format with the same rows and filtering as ExportContactsXLSX.
func (s *Service) Export(ctx context.Context, poc string, format Format) ([]byte, error) {
	start := time.Now()

	recs, err := s.contacts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	if poc = strings.TrimSpace(poc); poc != "" {
		kept := recs[:0]
		for _, r := range recs {
			if r.POCName != nil && strings.EqualFold(*r.POCName, poc) {
				kept = append(kept, r)
			}
		}
		recs = kept
	}

	var buf []byte
	switch format {
	case FormatCSV:
		buf, err = CSV(recs)
	case FormatXLSX, "":
		format = FormatXLSX
		buf, err = Workbook(recs)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", common.ErrInvalidInput, format)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("export."+string(format)+".ok",
		"poc", poc,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// row is one record in header order.
func row(r entity.ContactRecord) []any {
	return []any{
		r.DisplayName(),
		str(r.Title),
		str(r.Company),
		str(r.Email),
		str(r.Phone),
		str(r.Website),
		str(r.Address),
		truncate(str(r.Notes), 500),
		str(r.UserNotes),
		str(r.POCName),
		r.ConfidenceScore,
		str(r.SourceFilename),
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CSV renders recs as RFC 4180 text under the same header row as the workbook.
func CSV(recs []entity.ContactRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	line := make([]string, len(headers))
	for _, r := range recs {
		for i, v := range row(r) {
			switch t := v.(type) {
			case float64:
				line[i] = strconv.FormatFloat(t, 'f', -1, 64)
			default:
				line[i] = fmt.Sprint(t)
			}
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	return buf.Bytes(), nil
}

// Workbook renders recs into XLSX bytes.
func Workbook(recs []entity.ContactRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range recs {
		for j, v := range row(r) {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 24) // name
	_ = f.SetColWidth(sheet, "B", "C", 22)
	_ = f.SetColWidth(sheet, "D", "F", 28)
	_ = f.SetColWidth(sheet, "G", "I", 40) // address, notes
	_ = f.SetColWidth(sheet, "J", "K", 12)
	_ = f.SetColWidth(sheet, "L", "M", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
