package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"joinflow/internal/platform/postgres"
	"joinflow/internal/user/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	txcontext "joinflow/pkg/platform/tx"
)

var userColumns = []string{
	"id", "name", "email", "approved", "super_user",
	"needs_approval_notification_sent_at", "approved_notification_sent_at",
	"created_at", "updated_at",
}

// PostgresStore persists users.
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

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	query, args, err := s.builder.Insert("users").
		Columns(userColumns...).
		Values(uuid.UUID(user.ID), user.Name, user.Email, user.Approved, user.SuperUser,
			user.NeedsApprovalNotificationSentAt, user.ApprovedNotificationSentAt,
			user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user insert: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("user email: %w", sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, squirrel.Eq{"id": uuid.UUID(userID)})
}

func (s *PostgresStore) FindByEmail(ctx context.Context, addr string) (*models.User, error) {
	return s.findOne(ctx, squirrel.Expr("lower(email) = lower(?)", addr))
}

// FindByIDs loads every listed user that exists, in no particular order.
// Missing ids are skipped.
func (s *PostgresStore) FindByIDs(ctx context.Context, userIDs []id.UserID) ([]*models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	raw := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		raw = append(raw, userID.String())
	}
	query, args, err := s.builder.Select(userColumns...).
		From("users").
		Where("id = ANY(?::uuid[])", pq.Array(raw)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}
	return s.queryUsers(ctx, query, args)
}

// ListSuperUsers returns site admins, oldest first.
func (s *PostgresStore) ListSuperUsers(ctx context.Context) ([]*models.User, error) {
	query, args, err := s.builder.Select(userColumns...).
		From("users").
		Where("super_user").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build super user query: %w", err)
	}
	return s.queryUsers(ctx, query, args)
}

func (s *PostgresStore) queryUsers(ctx context.Context, query string, args []any) ([]*models.User, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Approve marks a pending user approved. Approving an approved user yields
// ErrInvalidState.
func (s *PostgresStore) Approve(ctx context.Context, userID id.UserID, now time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE users SET approved = TRUE, updated_at = $2 WHERE id = $1 AND NOT approved`,
		uuid.UUID(userID), now,
	)
	if err != nil {
		return fmt.Errorf("approve user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, userID); err != nil {
		return err
	}
	return fmt.Errorf("user %s already approved: %w", userID, sentinel.ErrInvalidState)
}

func (s *PostgresStore) StampNeedsApprovalNotification(ctx context.Context, userID id.UserID, now time.Time) error {
	return s.stamp(ctx, "needs_approval_notification_sent_at", userID, now)
}

func (s *PostgresStore) StampApprovedNotification(ctx context.Context, userID id.UserID, now time.Time) error {
	return s.stamp(ctx, "approved_notification_sent_at", userID, now)
}

func (s *PostgresStore) stamp(ctx context.Context, column string, userID id.UserID, now time.Time) error {
	query, args, err := s.builder.Update("users").
		Set(column, now).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": uuid.UUID(userID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stamp: %w", err)
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stamp %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, where squirrel.Sqlizer) (*models.User, error) {
	query, args, err := s.builder.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}
	u, err := scanUser(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", sentinel.ErrNotFound)
	}
	return u, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u             models.User
		rawID         uuid.UUID
		needsApproval sql.NullTime
		approvedAt    sql.NullTime
	)
	err := row.Scan(&rawID, &u.Name, &u.Email, &u.Approved, &u.SuperUser,
		&needsApproval, &approvedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(rawID)
	if needsApproval.Valid {
		u.NeedsApprovalNotificationSentAt = &needsApproval.Time
	}
	if approvedAt.Valid {
		u.ApprovedNotificationSentAt = &approvedAt.Time
	}
	return &u, nil
}
