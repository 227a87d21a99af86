package catalog

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrlokans/librarian/internal/database"
)

// importFields is the fixed column count of the import format:
// book_no, category, title, publisher, year, author, price, quantity.
const importFields = 8

// ImportReport summarises one bulk import run.
type ImportReport struct {
	BatchID     string    `json:"batch_id"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Duplicates  int       `json:"duplicates"`
	Errors      []string  `json:"errors"`
	TotalErrors int       `json:"total_errors"`
	DryRun      bool      `json:"dry_run,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func (r *ImportReport) fail(sampleLimit int, format string, args ...any) {
	r.Failed++
	r.TotalErrors++
	if len(r.Errors) < sampleLimit {
		r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	}
}

// Summary is a one-line description for logs and audit events.
func (r *ImportReport) Summary() string {
	return fmt.Sprintf("Imported %d books (%d failed, %d duplicates skipped)", r.Succeeded, r.Failed, r.Duplicates)
}

// ImportBooks reads the delimited text format and adds each well-formed row.
// Rows whose book number already exists, in the store or earlier in the same
// input, are skipped as duplicates rather than failures. Only a read error on
// the input itself aborts the run.
func (s *Service) ImportBooks(ctx context.Context, actor string, r io.Reader) (*ImportReport, error) {
	return s.importBooks(ctx, actor, r, false)
}

// ValidateImport runs the same row checks as ImportBooks without writing anything.
func (s *Service) ValidateImport(ctx context.Context, r io.Reader) (*ImportReport, error) {
	return s.importBooks(ctx, "", r, true)
}

func (s *Service) importBooks(ctx context.Context, actor string, r io.Reader, dryRun bool) (*ImportReport, error) {
	report := &ImportReport{
		BatchID:   uuid.NewString(),
		Errors:    []string{},
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}

	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.fail(s.opts.ErrorSamples, "line %d: %v", parseErr.Line, parseErr.Err)
				continue
			}
			return report, fmt.Errorf("read import: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if len(row) != importFields {
			report.fail(s.opts.ErrorSamples, "line %d: expected %d fields, got %d", line, importFields, len(row))
			continue
		}

		in, err := parseRow(row)
		if err == nil {
			in.Normalize()
			err = in.Validate()
		}
		if err != nil {
			report.fail(s.opts.ErrorSamples, "line %d (book %s): %v", line, strings.TrimSpace(row[0]), err)
			continue
		}

		if dryRun {
			if _, dup := seen[in.BookNo]; dup {
				report.Duplicates++
				continue
			}
			seen[in.BookNo] = struct{}{}
			exists, err := s.books.Exists(ctx, in.BookNo)
			if err != nil {
				return report, fmt.Errorf("check book %s: %w", in.BookNo, err)
			}
			if exists {
				report.Duplicates++
			} else {
				report.Succeeded++
			}
			continue
		}

		_, err = s.addBook(ctx, in)
		switch {
		case errors.Is(err, ErrBookExists):
			report.Duplicates++
		case err != nil:
			report.fail(s.opts.ErrorSamples, "line %d (book %s): %v", line, in.BookNo, err)
		default:
			report.Succeeded++
		}
	}

	report.FinishedAt = time.Now().UTC()
	if !dryRun {
		s.metrics.ObserveImport("succeeded", report.Succeeded)
		s.metrics.ObserveImport("failed", report.Failed)
		s.metrics.ObserveImport("duplicate", report.Duplicates)
		s.audit.LogImport(actor, report.Summary(), report.Succeeded, report.Failed, report.Duplicates, nil)
	}
	return report, nil
}

// parseRow converts one import record into a BookInput. Empty year and price
// are allowed; quantity is mandatory.
func parseRow(row []string) (BookInput, error) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	in := BookInput{
		BookNo:    row[0],
		Category:  row[1],
		Title:     row[2],
		Publisher: row[3],
		Author:    row[5],
	}

	if row[0] == "" {
		return in, ErrBookNoRequired
	}
	if row[2] == "" {
		return in, ErrTitleRequired
	}

	if row[4] != "" {
		year, err := strconv.Atoi(row[4])
		if err != nil {
			return in, fmt.Errorf("%w: %q", ErrInvalidYear, row[4])
		}
		in.Year = &year
	}
	if row[6] != "" {
		price, err := decimal.NewFromString(row[6])
		if err != nil {
			return in, fmt.Errorf("%w: %q", ErrInvalidPrice, row[6])
		}
		in.Price = &price
	}

	quantity, err := strconv.Atoi(row[7])
	if err != nil {
		return in, fmt.Errorf("%w: %q", ErrInvalidQuantity, row[7])
	}
	in.Quantity = quantity
	return in, nil
}

// ExportBooks writes the whole catalog in the import format, ordered by book
// number. The quantity column carries the total copies owned.
func (s *Service) ExportBooks(ctx context.Context, w io.Writer) (int, error) {
	stmt, args, err := s.gateway.Builder().
		From("books").
		Select("book_no", "category", "title", "publisher", "year", "author", "price", "total").
		Order(goqu.C("book_no").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build export query: %w", err)
	}

	rows, err := s.gateway.Query(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("export books: %w", err)
	}

	writer := csv.NewWriter(w)
	for _, row := range rows {
		record := []string{
			cell(row, "book_no"),
			cell(row, "category"),
			cell(row, "title"),
			cell(row, "publisher"),
			cell(row, "year"),
			cell(row, "author"),
			priceCell(row),
			cell(row, "total"),
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("write export: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(rows), nil
}

func cell(row database.Row, column string) string {
	switch v := row[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func priceCell(row database.Row) string {
	raw := cell(row, "price")
	if raw == "" {
		return ""
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return price.StringFixed(2)
}

// skipBOM drops a leading UTF-8 byte order mark, which spreadsheet exports often add.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	return br
}
