// Package interfaces documents the core abstractions used throughout the application.
//
// Consumers declare the narrow interfaces they need next to the code that uses
// them; the concrete services live in their own packages. checks.go ties the
// two together at compile time.
//
// # Interface Categories
//
// ## HTTP controllers (internal/http/stores.go)
//
//   - CatalogService: books, search, import and export (internal/catalog)
//   - CardService: library cards and per-card stats (internal/cards)
//   - CirculationService: borrow, return, overdue, habit and ranking (internal/circulation)
//   - TaskQueue: enqueue and poll background tasks (internal/tasks)
//   - ReportArchiver: persists import reports (internal/audit)
//
// ## Background tasks (internal/tasks)
//
//   - OverdueScanner, SettingsWriter: the scheduled overdue scan
//   - BookImporter, ReportArchiver: queued bulk imports
//   - AuditEventCleaner: audit log retention
//
// ## Scheduling (internal/scheduler)
//
//   - Enqueuer: hands cron-triggered work to the task queue
//
// # Adding a New Background Task
//
//  1. Define the task and its processor in internal/tasks/
//
//     type ReminderTask struct{ CardNo string }
//
//     func (t ReminderTask) Config() backlite.QueueConfig {
//         return backlite.QueueConfig{Name: "reminder", MaxAttempts: 3}
//     }
//
//  2. Register the queue in entrypoint.Run and, if operators may trigger it,
//     add it to tasks.Types and tasks.Build.
//
// # Adding a New Database Domain
//
//  1. Create sub-package: internal/database/reservations/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Add the entity to Database.Migrate.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
