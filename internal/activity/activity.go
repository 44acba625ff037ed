// Package activity is the append-only event log that couples state changes
// to deferred notifications.
package activity

import (
	"context"
	"database/sql"
	"iter"

	"joinflow/internal/activity/models"
	"joinflow/internal/activity/store"
	id "joinflow/pkg/domain"
)

type (
	Entry      = models.Entry
	Key        = models.Key
	Parameters = models.Parameters
	Filter     = models.Filter
)

// Store is the event log contract shared by the memory and Postgres stores.
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	FindByID(ctx context.Context, activityID id.ActivityID) (*models.Entry, error)
	FindUnnotified(ctx context.Context, filter models.Filter) iter.Seq2[*models.Entry, error]
	MarkNotified(ctx context.Context, activityID id.ActivityID) error
	ListByOwner(ctx context.Context, owner id.Ref) ([]*models.Entry, error)
}

var (
	_ Store = (*store.InMemory)(nil)
	_ Store = (*store.PostgresStore)(nil)
)

// NewStore returns the Postgres store when db is set, otherwise an in-memory one.
func NewStore(db *sql.DB, pageSize int) Store {
	if db == nil {
		return store.NewInMemory()
	}
	return store.NewPostgres(db, store.WithPageSize(pageSize))
}
