package tasks

import (
	"errors"
	"fmt"

	"github.com/mikestefanello/backlite"
)

var (
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrInvalidTaskArgs = errors.New("invalid task arguments")
)

// RunRequest carries the optional arguments of a manually triggered task.
type RunRequest struct {
	Path          string `json:"path,omitempty"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// TaskType describes a task that can be triggered by name.
type TaskType struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// Types lists every task the service registers.
func Types() []TaskType {
	return []TaskType{
		{
			Type:        "overdue_scan",
			Description: "Scan for loans past the loan period and record the count",
			Queue:       OverdueScanTask{}.Config().Name,
		},
		{
			Type:        "import_books",
			Description: "Import a book file from the server's disk (requires path)",
			Queue:       ImportBooksTask{}.Config().Name,
		},
		{
			Type:        "cleanup_audit",
			Description: "Delete audit events older than the retention period",
			Queue:       CleanupAuditEventsTask{}.Config().Name,
		},
	}
}

// Build turns a task type name and its arguments into a task ready to enqueue.
// operator is recorded on imports.
func Build(taskType, operator string, req RunRequest) (backlite.Task, error) {
	switch taskType {
	case "overdue_scan":
		return OverdueScanTask{}, nil
	case "import_books":
		if req.Path == "" {
			return nil, fmt.Errorf("%w: path is required for import_books", ErrInvalidTaskArgs)
		}
		return ImportBooksTask{Path: req.Path, Operator: operator}, nil
	case "cleanup_audit":
		if req.RetentionDays < 0 {
			return nil, fmt.Errorf("%w: retention_days must not be negative", ErrInvalidTaskArgs)
		}
		return CleanupAuditEventsTask{RetentionDays: req.RetentionDays}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
}
