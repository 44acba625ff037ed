package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"joinflow/internal/invitation/models"
	"joinflow/internal/notify"
	"joinflow/internal/platform/postgres"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	txcontext "joinflow/pkg/platform/tx"
)

var invitationColumns = []string{
	"id", "target_kind", "target_id", "sender_id", "recipient_email", "recipient_name",
	"title", "ready", "sent", "result", "created_at", "sent_at",
}

// PostgresStore persists invitations.
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

func (s *PostgresStore) Create(ctx context.Context, inv *models.Invitation) error {
	query, args, err := s.builder.Insert("invitations").
		Columns("id", "target_kind", "target_id", "sender_id", "recipient_email", "recipient_name", "title", "ready", "created_at").
		Values(uuid.UUID(inv.ID), string(inv.Target.Kind), inv.Target.ID, uuid.UUID(inv.SenderID),
			inv.RecipientEmail, inv.RecipientName, inv.Title, inv.Ready, inv.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build invitation insert: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	switch {
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("invitation %s: %w", inv.ID, sentinel.ErrAlreadyUsed)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("sender %s: %w", inv.SenderID, sentinel.ErrNotFound)
	case err != nil:
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, invitationID id.InvitationID) (*models.Invitation, error) {
	query, args, err := s.builder.Select(invitationColumns...).
		From("invitations").
		Where(squirrel.Eq{"id": uuid.UUID(invitationID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build invitation query: %w", err)
	}
	inv, err := scanInvitation(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation %s: %w", invitationID, sentinel.ErrNotFound)
	}
	return inv, err
}

// MarkReady flags an unsent invitation for dispatch.
func (s *PostgresStore) MarkReady(ctx context.Context, invitationID id.InvitationID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE invitations SET ready = TRUE WHERE id = $1 AND NOT sent`, uuid.UUID(invitationID))
	if err != nil {
		return fmt.Errorf("mark invitation ready: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, invitationID); err != nil {
		return err
	}
	return fmt.Errorf("invitation %s already sent: %w", invitationID, sentinel.ErrInvalidState)
}

// ClaimDispatchable locks up to limit ready, unsent invitations, oldest
// first. Rows locked by another dispatcher are skipped. Call it inside a
// transaction so the locks last until MarkSent commits.
func (s *PostgresStore) ClaimDispatchable(ctx context.Context, limit int) ([]*models.Invitation, error) {
	query, args, err := s.builder.Select(invitationColumns...).
		From("invitations").
		Where("ready AND NOT sent").
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim query: %w", err)
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claim invitations: %w", err)
	}
	defer rows.Close()

	var out []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkSent records the delivery result. A second call yields ErrInvalidState.
func (s *PostgresStore) MarkSent(ctx context.Context, invitationID id.InvitationID, result *notify.DeliveryResult, now time.Time) error {
	var raw []byte
	if result != nil {
		var err error
		if raw, err = json.Marshal(result); err != nil {
			return fmt.Errorf("encode delivery result: %w", err)
		}
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE invitations SET sent = TRUE, sent_at = $2, result = $3 WHERE id = $1 AND NOT sent`,
		uuid.UUID(invitationID), now, nullableJSON(raw),
	)
	if err != nil {
		return fmt.Errorf("mark invitation sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, invitationID); err != nil {
		return err
	}
	return fmt.Errorf("invitation %s already sent: %w", invitationID, sentinel.ErrInvalidState)
}

func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var (
		inv        models.Invitation
		rawID      uuid.UUID
		targetKind string
		senderID   uuid.UUID
		result     []byte
		sentAt     sql.NullTime
	)
	err := row.Scan(&rawID, &targetKind, &inv.Target.ID, &senderID, &inv.RecipientEmail, &inv.RecipientName,
		&inv.Title, &inv.Ready, &inv.Sent, &result, &inv.CreatedAt, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	inv.ID = id.InvitationID(rawID)
	inv.Target.Kind = id.RefKind(targetKind)
	inv.SenderID = id.UserID(senderID)
	if len(result) > 0 {
		var r notify.DeliveryResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("decode delivery result: %w", err)
		}
		inv.Result = &r
	}
	if sentAt.Valid {
		inv.SentAt = &sentAt.Time
	}
	return &inv, nil
}
