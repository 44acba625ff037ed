package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"joinflow/internal/activity/models"
	"joinflow/internal/platform/postgres"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	txcontext "joinflow/pkg/platform/tx"
)

const defaultPageSize = 100

var activityColumns = []string{
	"id", "trackable_kind", "trackable_id", "owner_kind", "owner_id",
	"key", "parameters", "notified", "created_at",
}

// PostgresStore persists activities in the activities table.
// Append joins the transaction carried by ctx so the activity commits with
// the state change that caused it.
type PostgresStore struct {
	db       *sql.DB
	pageSize int
	builder  squirrel.StatementBuilderType
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithPageSize sets how many rows FindUnnotified fetches per round trip.
func WithPageSize(n int) Option {
	return func(s *PostgresStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func NewPostgres(db *sql.DB, opts ...Option) *PostgresStore {
	s := &PostgresStore{
		db:       db,
		pageSize: defaultPageSize,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.Entry) error {
	params, err := json.Marshal(entry.Parameters)
	if err != nil {
		return fmt.Errorf("marshal activity parameters: %w", err)
	}
	query, args, err := s.builder.Insert("activities").
		Columns(activityColumns...).
		Values(
			uuid.UUID(entry.ID), string(entry.Trackable.Kind), entry.Trackable.ID,
			string(entry.Owner.Kind), entry.Owner.ID,
			string(entry.Key), string(params), nil, entry.CreatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build activity insert: %w", err)
	}
	if _, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("activity %s: %w", entry.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, activityID id.ActivityID) (*models.Entry, error) {
	query, args, err := s.builder.Select(activityColumns...).
		From("activities").
		Where(squirrel.Eq{"id": uuid.UUID(activityID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build activity select: %w", err)
	}
	entry, err := scanEntry(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %s: %w", activityID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return entry, nil
}

// FindUnnotified pages through matching rows with a (created_at, id) keyset
// cursor. Each range over the sequence starts again from the oldest row.
func (s *PostgresStore) FindUnnotified(ctx context.Context, filter models.Filter) iter.Seq2[*models.Entry, error] {
	return func(yield func(*models.Entry, error) bool) {
		var (
			cursorAt time.Time
			cursorID uuid.UUID
			first    = true
		)
		for {
			page, err := s.unnotifiedPage(ctx, filter, first, cursorAt, cursorID)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			cursorAt, cursorID, first = last.CreatedAt, uuid.UUID(last.ID), false
		}
	}
}

func (s *PostgresStore) unnotifiedPage(ctx context.Context, filter models.Filter, first bool, afterAt time.Time, afterID uuid.UUID) ([]*models.Entry, error) {
	q := s.builder.Select(activityColumns...).
		From("activities").
		Where(squirrel.Eq{"key": string(filter.Key)}).
		Where("notified IS NOT TRUE").
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(s.pageSize))
	if filter.TrackableKind != "" {
		q = q.Where(squirrel.Eq{"trackable_kind": string(filter.TrackableKind)})
	}
	if filter.RequireParam != "" {
		q = q.Where(squirrel.Expr("parameters ->> ? IS NOT NULL", filter.RequireParam))
	}
	if !first {
		q = q.Where(squirrel.Expr("(created_at, id) > (?, ?)", afterAt, afterID))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unnotified query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unnotified activities: %w", err)
	}
	defer rows.Close()

	page := make([]*models.Entry, 0, s.pageSize)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		page = append(page, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return page, nil
}

// MarkNotified is idempotent: marking an already notified row succeeds.
func (s *PostgresStore) MarkNotified(ctx context.Context, activityID id.ActivityID) error {
	query, args, err := s.builder.Update("activities").
		Set("notified", true).
		Where(squirrel.Eq{"id": uuid.UUID(activityID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark notified: %w", err)
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark activity notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark activity notified: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("activity %s: %w", activityID, sentinel.ErrNotFound)
	}
	return nil
}

// ListByOwner returns the owner's timeline, oldest first.
func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.Ref) ([]*models.Entry, error) {
	query, args, err := s.builder.Select(activityColumns...).
		From("activities").
		Where(squirrel.Eq{"owner_kind": string(owner.Kind), "owner_id": owner.ID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build owner query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities by owner: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		entryID       uuid.UUID
		trackableKind string
		trackableID   uuid.UUID
		ownerKind     string
		ownerID       uuid.UUID
		key           string
		params        []byte
		notified      sql.NullBool
		createdAt     time.Time
	)
	if err := row.Scan(&entryID, &trackableKind, &trackableID, &ownerKind, &ownerID,
		&key, &params, &notified, &createdAt); err != nil {
		return nil, err
	}
	entry := &models.Entry{
		ID:         id.ActivityID(entryID),
		Trackable:  id.Ref{Kind: id.RefKind(trackableKind), ID: trackableID},
		Owner:      id.Ref{Kind: id.RefKind(ownerKind), ID: ownerID},
		Key:        models.Key(key),
		Parameters: models.Parameters{},
		Notified:   notified.Valid && notified.Bool,
		CreatedAt:  createdAt,
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &entry.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal activity parameters: %w", err)
		}
	}
	return entry, nil
}
