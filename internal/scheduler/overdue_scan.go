// Package scheduler runs recurring library jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/tasks"
)

// auditCleanupSchedule runs retention cleanup once a day at 03:00.
const auditCleanupSchedule = "0 3 * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer adds a task to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// ValidateSchedule checks a 5-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// NextRunTime returns the next activation of schedule after now.
func NextRunTime(schedule string, now time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}

// OverdueScanScheduler enqueues overdue scans on a cron schedule. Without a
// task queue the scan runs inline on the cron goroutine.
type OverdueScanScheduler struct {
	schedule string
	scanner  tasks.OverdueScanner
	settings tasks.SettingsWriter
	audit    *audit.Service
	queue    Enqueuer

	auditRetentionDays int

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewOverdueScanScheduler creates a scheduler for the given schedule.
func NewOverdueScanScheduler(schedule string, scanner tasks.OverdueScanner, settings tasks.SettingsWriter, auditService *audit.Service) *OverdueScanScheduler {
	return &OverdueScanScheduler{
		schedule: schedule,
		scanner:  scanner,
		settings: settings,
		audit:    auditService,
		cron:     cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
	}
}

// WithQueue routes scheduled work through the task queue.
func (s *OverdueScanScheduler) WithQueue(q Enqueuer) *OverdueScanScheduler {
	s.queue = q
	return s
}

// WithAuditCleanup also enqueues a daily audit cleanup with the given
// retention. It has no effect without a queue.
func (s *OverdueScanScheduler) WithAuditCleanup(retentionDays int) *OverdueScanScheduler {
	s.auditRetentionDays = retentionDays
	return s
}

// Start registers the jobs and starts the cron loop. It returns when the
// scheduler is running; cancelling ctx stops it.
func (s *OverdueScanScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.trigger(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule overdue scan: %w", err)
	}
	s.entryID = entryID

	if s.queue != nil && s.auditRetentionDays > 0 {
		if _, err := s.cron.AddFunc(auditCleanupSchedule, s.enqueueAuditCleanup); err != nil {
			return fmt.Errorf("failed to schedule audit cleanup: %w", err)
		}
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("[SCHEDULER] overdue scan started with schedule '%s'. Next run: %v", s.schedule, s.nextRunLocked())

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job to finish and stops the cron loop.
func (s *OverdueScanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("[SCHEDULER] overdue scan stopped")
}

// RunNow triggers a scan immediately, through the queue when one is set.
// It returns the task id, or "" for an inline scan.
func (s *OverdueScanScheduler) RunNow(ctx context.Context) (string, error) {
	return s.trigger(ctx)
}

// IsRunning returns whether the scheduler is active.
func (s *OverdueScanScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next scan will occur.
func (s *OverdueScanScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	return s.nextRunLocked()
}

func (s *OverdueScanScheduler) nextRunLocked() *time.Time {
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *OverdueScanScheduler) trigger(ctx context.Context) (string, error) {
	if s.queue != nil {
		id, err := s.queue.Enqueue(ctx, tasks.OverdueScanTask{})
		if err != nil {
			log.Printf("[SCHEDULER] failed to enqueue overdue scan: %v", err)
			return "", err
		}
		log.Printf("[SCHEDULER] overdue scan enqueued as %s", id)
		return id, nil
	}

	if s.scanner == nil {
		return "", fmt.Errorf("overdue scanner not configured")
	}
	_, err := tasks.RunOverdueScan(ctx, s.scanner, s.settings, s.audit)
	if err != nil {
		log.Printf("[SCHEDULER] overdue scan failed: %v", err)
	}
	return "", err
}

func (s *OverdueScanScheduler) enqueueAuditCleanup() {
	id, err := s.queue.Enqueue(context.Background(), tasks.CleanupAuditEventsTask{RetentionDays: s.auditRetentionDays})
	if err != nil {
		log.Printf("[SCHEDULER] failed to enqueue audit cleanup: %v", err)
		return
	}
	log.Printf("[SCHEDULER] audit cleanup enqueued as %s", id)
}
