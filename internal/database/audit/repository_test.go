package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		Actor:       "desk",
		EventType:   entities.AuditEventBorrow,
		Action:      "book_borrow",
		Description: "C1 borrowed B1",
		EntityType:  "loan",
		EntityKey:   "B1",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 15; i++ {
		event := &entities.AuditEvent{
			Actor:     "desk",
			EventType: entities.AuditEventBorrow,
			Action:    "book_borrow",
			EntityKey: "B1",
			Status:    entities.AuditStatusSuccess,
			CreatedAt: time.Now().Add(time.Duration(-i) * time.Hour),
		}
		require.NoError(t, repo.LogEvent(event))
	}

	for i := 0; i < 5; i++ {
		event := &entities.AuditEvent{
			Actor:     "C7",
			EventType: entities.AuditEventAuth,
			Action:    "patron_login",
			Status:    entities.AuditStatusSuccess,
		}
		require.NoError(t, repo.LogEvent(event))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(Filter{}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)
		assert.Len(t, events, 20)
	})

	t.Run("filter by actor", func(t *testing.T) {
		events, total, err := repo.GetEvents(Filter{Actor: "desk"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 15)
	})

	t.Run("filter by entity", func(t *testing.T) {
		_, total, err := repo.GetEvents(Filter{EntityKey: "B1"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(Filter{Actor: "desk"}, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEvents(Filter{Actor: "desk"}, 5, 5)
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(Filter{Actor: "desk"}, 10, 0)
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})
}

func TestRepository_GetEventsByType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		Actor: "desk", EventType: entities.AuditEventImport, Action: "book_import", Status: entities.AuditStatusSuccess,
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		Actor: "desk", EventType: entities.AuditEventCard, Action: "card_delete", Status: entities.AuditStatusSuccess,
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		Actor: "system", EventType: entities.AuditEventImport, Action: "book_import", Status: entities.AuditStatusFailed,
	}))

	events, total, err := repo.GetEventsByType(entities.AuditEventImport, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, entities.AuditEventImport, e.EventType)
	}
}

func TestRepository_GetRecentEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventReturn, Action: "old_return", Status: entities.AuditStatusSuccess,
		CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventReturn, Action: "recent_return", Status: entities.AuditStatusSuccess,
		CreatedAt: now.Add(-1 * time.Hour),
	}))

	events, err := repo.GetRecentEvents(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, "recent_return", events[0].Action)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventBorrow, Action: "old_borrow", Status: entities.AuditStatusSuccess,
		CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventReturn, Action: "new_return", Status: entities.AuditStatusSuccess,
		CreatedAt: now.Add(-1 * time.Hour),
	}))

	deleted, err := repo.DeleteOldEvents(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(Filter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, events, 1)
	assert.Equal(t, "new_return", events[0].Action)
}

func TestRepository_GetEventByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		EventType: entities.AuditEventCatalog,
		Action:    "book_add",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, repo.LogEvent(event))

	t.Run("existing event", func(t *testing.T) {
		found, err := repo.GetEventByID(event.ID)
		require.NoError(t, err)
		assert.Equal(t, event.ID, found.ID)
		assert.Equal(t, "book_add", found.Action)
	})

	t.Run("non-existing event", func(t *testing.T) {
		_, err := repo.GetEventByID(999)
		assert.Error(t, err)
	})
}
