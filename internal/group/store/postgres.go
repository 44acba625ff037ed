package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"joinflow/internal/group/models"
	"joinflow/internal/platform/postgres"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	txcontext "joinflow/pkg/platform/tx"
)

// PostgresStore persists spaces, events and memberships.
type PostgresStore struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *PostgresStore) CreateSpace(ctx context.Context, space *models.Space) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO spaces (id, name, created_at) VALUES ($1, $2, $3)`,
		uuid.UUID(space.ID), space.Name, space.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("space %s: %w", space.ID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("insert space: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO events (id, name, starts_at, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(event.ID), event.Name, event.StartsAt, event.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindSpace(ctx context.Context, spaceID id.SpaceID) (*models.Space, error) {
	space := &models.Space{ID: spaceID}
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT name, created_at FROM spaces WHERE id = $1`, uuid.UUID(spaceID),
	).Scan(&space.Name, &space.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("space %s: %w", spaceID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find space: %w", err)
	}
	return space, nil
}

func (s *PostgresStore) FindEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	event := &models.Event{ID: eventID}
	var startsAt sql.NullTime
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT name, starts_at, created_at FROM events WHERE id = $1`, uuid.UUID(eventID),
	).Scan(&event.Name, &startsAt, &event.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	if startsAt.Valid {
		event.StartsAt = &startsAt.Time
	}
	return event, nil
}

// AddMember inserts a membership; an existing one yields ErrAlreadyUsed.
// It joins the transaction carried by ctx, so a failing grant rolls back
// the join request transition around it.
func (s *PostgresStore) AddMember(ctx context.Context, m *models.Membership) error {
	query, args, err := s.builder.Insert("group_memberships").
		Columns("group_kind", "group_id", "user_id", "role", "created_at", "updated_at").
		Values(string(m.Group.Kind), m.Group.ID, uuid.UUID(m.UserID), string(m.Role), m.CreatedAt, m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build membership insert: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("membership %s/%s: %w", m.Group, m.UserID, sentinel.ErrAlreadyUsed)
	}
	if postgres.IsForeignKeyViolation(err) {
		return fmt.Errorf("user %s: %w", m.UserID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// UpsertMember inserts a membership or updates the role of an existing one.
// An admin is never lowered to member.
func (s *PostgresStore) UpsertMember(ctx context.Context, m *models.Membership) error {
	query, args, err := s.builder.Insert("group_memberships").
		Columns("group_kind", "group_id", "user_id", "role", "created_at", "updated_at").
		Values(string(m.Group.Kind), m.Group.ID, uuid.UUID(m.UserID), string(m.Role), m.CreatedAt, m.CreatedAt).
		Suffix("ON CONFLICT (group_kind, group_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at "+
			"WHERE group_memberships.role <> 'admin'").
		ToSql()
	if err != nil {
		return fmt.Errorf("build membership upsert: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if postgres.IsForeignKeyViolation(err) {
		return fmt.Errorf("user %s: %w", m.UserID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMember(ctx context.Context, group id.Ref, userID id.UserID) (*models.Membership, error) {
	m := &models.Membership{Group: group, UserID: userID}
	var role string
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT role, created_at FROM group_memberships WHERE group_kind = $1 AND group_id = $2 AND user_id = $3`,
		string(group.Kind), group.ID, uuid.UUID(userID),
	).Scan(&role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s/%s: %w", group, userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	m.Role = id.Role(role)
	return m, nil
}

// ListMembers returns memberships of group with role, oldest first.
// An empty role lists everyone.
func (s *PostgresStore) ListMembers(ctx context.Context, group id.Ref, role id.Role) ([]*models.Membership, error) {
	q := s.builder.Select("user_id", "role", "created_at").
		From("group_memberships").
		Where(squirrel.Eq{"group_kind": string(group.Kind), "group_id": group.ID}).
		OrderBy("created_at ASC", "user_id ASC")
	if role != "" {
		q = q.Where(squirrel.Eq{"role": string(role)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build membership query: %w", err)
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		var (
			userID    uuid.UUID
			r         string
			createdAt time.Time
		)
		if err := rows.Scan(&userID, &r, &createdAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, &models.Membership{Group: group, UserID: id.UserID(userID), Role: id.Role(r), CreatedAt: createdAt})
	}
	return out, rows.Err()
}
