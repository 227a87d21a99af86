package tasks

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/catalog"
)

// BookImporter imports books from the delimited text format.
type BookImporter interface {
	ImportBooks(ctx context.Context, actor string, r io.Reader) (*catalog.ImportReport, error)
}

// ReportArchiver stores an import report under a chosen name.
type ReportArchiver interface {
	SaveNamedJSON(name string, data any) (string, error)
}

// ImportBooksTask imports a file that already sits on the server's disk.
type ImportBooksTask struct {
	Path     string `json:"path"`
	Operator string `json:"operator"`
}

// Config returns the queue configuration for book imports.
func (t ImportBooksTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_books",
		MaxAttempts: 1,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: false},
		},
	}
}

// ImportBooksProcessor creates a processor function for ImportBooksTask.
// The report is archived even when the run stops early on a read error.
func ImportBooksProcessor(importer BookImporter, archiver ReportArchiver) backlite.QueueProcessor[ImportBooksTask] {
	return func(ctx context.Context, task ImportBooksTask) error {
		if importer == nil {
			return fmt.Errorf("book importer not configured")
		}
		if task.Path == "" {
			return fmt.Errorf("import path is required")
		}

		f, err := os.Open(task.Path)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		report, importErr := importer.ImportBooks(ctx, task.Operator, f)
		if report != nil && archiver != nil {
			name, err := archiver.SaveNamedJSON(report.BatchID, report)
			if err != nil {
				log.Printf("[TASK] failed to archive import report %s: %v", report.BatchID, err)
			} else {
				log.Printf("[TASK] import report archived to %s", name)
			}
		}
		if importErr != nil {
			return fmt.Errorf("import %s: %w", task.Path, importErr)
		}

		log.Printf("[TASK] %s from %s", report.Summary(), task.Path)
		return nil
	}
}

// NewImportBooksQueue creates a backlite queue for book imports.
func NewImportBooksQueue(importer BookImporter, archiver ReportArchiver) backlite.Queue {
	return backlite.NewQueue(ImportBooksProcessor(importer, archiver))
}
