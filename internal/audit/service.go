package audit

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

// SystemActor is recorded for events raised by scheduled or background work.
const SystemActor = "system"

// Service provides high-level audit logging functionality.
// A nil *Service is valid and discards every event.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	if s == nil {
		return nil
	}
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	if s == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Flush blocks until every event queued with LogAsync has been written.
func (s *Service) Flush() {
	if s == nil {
		return
	}
	s.pending.Wait()
}

// LogCirculation records a borrow or return attempt.
func (s *Service) LogCirculation(actor string, eventType entities.AuditEventType, cardNo, bookNo string, recordID uint, err error) {
	event := &entities.AuditEvent{
		Actor:       orSystem(actor),
		EventType:   eventType,
		Action:      "book_" + string(eventType),
		Description: cardNo + " " + string(eventType) + " " + bookNo,
		EntityType:  "loan",
		EntityKey:   bookNo,
		Status:      entities.AuditStatusSuccess,
	}
	event.Metadata = marshalMetadata(map[string]any{
		"card_no":   cardNo,
		"book_no":   bookNo,
		"record_id": recordID,
	})
	applyError(event, err)

	s.LogAsync(event)
}

// LogImport records a bulk catalog import.
func (s *Service) LogImport(actor, description string, succeeded, failed, duplicates int, err error) {
	event := &entities.AuditEvent{
		Actor:       orSystem(actor),
		EventType:   entities.AuditEventImport,
		Action:      "book_import",
		Description: description,
		EntityType:  "book",
		Status:      entities.AuditStatusSuccess,
	}
	event.Metadata = marshalMetadata(map[string]any{
		"succeeded":  succeeded,
		"failed":     failed,
		"duplicates": duplicates,
	})
	applyError(event, err)

	s.LogAsync(event)
}

// LogCatalog records a change to a catalog entry.
func (s *Service) LogCatalog(actor, action, bookNo, description string, err error) {
	event := &entities.AuditEvent{
		Actor:       orSystem(actor),
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: description,
		EntityType:  "book",
		EntityKey:   bookNo,
		Status:      entities.AuditStatusSuccess,
	}
	applyError(event, err)

	s.LogAsync(event)
}

// LogCard records a change to a library card.
func (s *Service) LogCard(actor, action, cardNo, description string, err error) {
	event := &entities.AuditEvent{
		Actor:       orSystem(actor),
		EventType:   entities.AuditEventCard,
		Action:      action,
		Description: description,
		EntityType:  "card",
		EntityKey:   cardNo,
		Status:      entities.AuditStatusSuccess,
	}
	applyError(event, err)

	s.LogAsync(event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(actor, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		Actor:     actor,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogOverdueScan records the result of an overdue scan.
func (s *Service) LogOverdueScan(count int, err error) {
	event := &entities.AuditEvent{
		Actor:       SystemActor,
		EventType:   entities.AuditEventOverdueScan,
		Action:      "overdue_scan",
		Description: "Overdue scan completed",
		Status:      entities.AuditStatusSuccess,
	}
	event.Metadata = marshalMetadata(map[string]any{"overdue_count": count})
	applyError(event, err)

	s.LogAsync(event)
}

// LogMaintenance records housekeeping work such as audit cleanup.
func (s *Service) LogMaintenance(action, description string, err error) {
	event := &entities.AuditEvent{
		Actor:       SystemActor,
		EventType:   entities.AuditEventMaintenance,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}
	applyError(event, err)

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(filter, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(eventType, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func applyError(event *entities.AuditEvent, err error) {
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
}

func marshalMetadata(metadata map[string]any) datatypes.JSON {
	mdBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return datatypes.JSON(mdBytes)
}

func orSystem(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
