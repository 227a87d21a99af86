package tasks

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/entities"
)

// OverdueScanner lists open loans past the loan period.
type OverdueScanner interface {
	Overdue(ctx context.Context) ([]circulation.OverdueLoan, error)
}

// SettingsWriter persists scan results for the status endpoints.
type SettingsWriter interface {
	SetSettings(values map[string]string) error
}

// ScanResult is the outcome of one overdue scan.
type ScanResult struct {
	At    time.Time                 `json:"at"`
	Count int                       `json:"count"`
	Loans []circulation.OverdueLoan `json:"loans"`
}

// OverdueScanTask runs a full overdue scan and records the result.
type OverdueScanTask struct{}

// Config returns the queue configuration for overdue scans.
func (t OverdueScanTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_scan",
		MaxAttempts: 2,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RunOverdueScan scans for overdue loans and stores the last run's time,
// status and count in settings. The scan is audited whether it succeeds or
// not. Settings and audit are optional.
func RunOverdueScan(ctx context.Context, scanner OverdueScanner, settings SettingsWriter, auditSvc *audit.Service) (*ScanResult, error) {
	result := &ScanResult{At: time.Now().UTC()}

	loans, err := scanner.Overdue(ctx)
	if err == nil {
		result.Loans = loans
		result.Count = len(loans)
	}

	if settings != nil {
		values := map[string]string{
			entities.SettingKeyOverdueScanLastAt:     result.At.Format(time.RFC3339),
			entities.SettingKeyOverdueScanLastCount:  strconv.Itoa(result.Count),
			entities.SettingKeyOverdueScanLastStatus: "success",
		}
		if err != nil {
			values[entities.SettingKeyOverdueScanLastStatus] = "error"
			values[entities.SettingKeyOverdueScanLastMessage] = err.Error()
		} else {
			values[entities.SettingKeyOverdueScanLastMessage] = fmt.Sprintf("%d overdue loans", result.Count)
		}
		if serr := settings.SetSettings(values); serr != nil {
			log.Printf("[TASK] failed to store overdue scan status: %v", serr)
		}
	}

	auditSvc.LogOverdueScan(result.Count, err)
	if err != nil {
		return nil, fmt.Errorf("overdue scan: %w", err)
	}

	log.Printf("[TASK] overdue scan found %d loans", result.Count)
	return result, nil
}

// OverdueScanProcessor creates a processor function for OverdueScanTask.
func OverdueScanProcessor(scanner OverdueScanner, settings SettingsWriter, auditSvc *audit.Service) backlite.QueueProcessor[OverdueScanTask] {
	return func(ctx context.Context, _ OverdueScanTask) error {
		if scanner == nil {
			return fmt.Errorf("overdue scanner not configured")
		}
		_, err := RunOverdueScan(ctx, scanner, settings, auditSvc)
		return err
	}
}

// NewOverdueScanQueue creates a backlite queue for overdue scans.
func NewOverdueScanQueue(scanner OverdueScanner, settings SettingsWriter, auditSvc *audit.Service) backlite.Queue {
	return backlite.NewQueue(OverdueScanProcessor(scanner, settings, auditSvc))
}
