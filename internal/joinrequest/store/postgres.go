package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"joinflow/internal/joinrequest/models"
	"joinflow/internal/platform/postgres"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	txcontext "joinflow/pkg/platform/tx"
)

var requestColumns = []string{
	"id", "secret_token", "kind", "candidate_id", "introducer_id", "group_kind", "group_id",
	"role", "email", "comment", "outcome", "processed_at", "created_at", "updated_at",
}

// Unique indexes that mean "a pending request already exists". Other unique
// violations (primary key, secret token) are collisions, not conflicts.
var pendingConstraints = []string{
	"ux_join_requests_pending_candidate",
	"ux_join_requests_pending_email",
}

// PostgresStore persists join requests. The partial unique indexes on
// pending rows enforce one pending request per candidate and per email.
type PostgresStore struct {
	db      *sql.DB
	tx      *txcontext.Runner
	builder squirrel.StatementBuilderType
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		tx:      txcontext.NewRunner(db),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.JoinRequest) error {
	var introducer any
	if r.IntroducerID != nil {
		introducer = uuid.UUID(*r.IntroducerID)
	}
	query, args, err := s.builder.Insert("join_requests").
		Columns("id", "secret_token", "kind", "candidate_id", "introducer_id", "group_kind", "group_id",
			"role", "email", "comment", "outcome", "created_at", "updated_at").
		Values(uuid.UUID(r.ID), r.SecretToken, string(r.Kind), uuid.UUID(r.CandidateID), introducer,
			string(r.Group.Kind), r.Group.ID, string(r.Role), r.Email, r.Comment, string(r.Outcome),
			r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build join request insert: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	switch {
	case postgres.IsUniqueViolation(err, pendingConstraints...):
		return fmt.Errorf("pending join request for %s in %s: %w", r.Email, r.Group, sentinel.ErrAlreadyUsed)
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("insert join request %s: %w: %w", r.ID, ErrCollision, err)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("join request user: %w", sentinel.ErrNotFound)
	case err != nil:
		return fmt.Errorf("insert join request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.JoinRequestID) (*models.JoinRequest, error) {
	return s.findOne(ctx, squirrel.Eq{"id": uuid.UUID(requestID)}, "")
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.JoinRequest, error) {
	return s.findOne(ctx, squirrel.Eq{"secret_token": token}, "")
}

// Execute locks the row behind token with SELECT ... FOR UPDATE, runs
// validate, applies mutate and writes the result back. It joins the
// transaction carried by ctx or opens its own.
func (s *PostgresStore) Execute(ctx context.Context, token string, validate func(*models.JoinRequest) error, mutate func(*models.JoinRequest)) (*models.JoinRequest, error) {
	var out *models.JoinRequest
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.findOne(ctx, squirrel.Eq{"secret_token": token}, "FOR UPDATE")
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		if err := s.update(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPending returns the group's unprocessed requests, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, group id.Ref) ([]*models.JoinRequest, error) {
	query, args, err := s.builder.Select(requestColumns...).
		From("join_requests").
		Where(squirrel.Eq{"group_kind": string(group.Kind), "group_id": group.ID, "processed_at": nil}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending join requests: %w", err)
	}
	defer rows.Close()

	var out []*models.JoinRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, where squirrel.Eq, suffix string) (*models.JoinRequest, error) {
	b := s.builder.Select(requestColumns...).From("join_requests").Where(where)
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build join request query: %w", err)
	}
	r, err := scanRequest(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("join request: %w", sentinel.ErrNotFound)
	}
	return r, err
}

func (s *PostgresStore) update(ctx context.Context, r *models.JoinRequest) error {
	query, args, err := s.builder.Update("join_requests").
		Set("outcome", string(r.Outcome)).
		Set("processed_at", r.ProcessedAt).
		Set("updated_at", r.UpdatedAt).
		Where(squirrel.Eq{"id": uuid.UUID(r.ID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build join request update: %w", err)
	}
	if _, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update join request: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.JoinRequest, error) {
	var (
		r           models.JoinRequest
		rawID       uuid.UUID
		kind        string
		candidateID uuid.UUID
		introducer  uuid.NullUUID
		groupKind   string
		role        string
		outcome     string
		processedAt sql.NullTime
	)
	err := row.Scan(&rawID, &r.SecretToken, &kind, &candidateID, &introducer, &groupKind, &r.Group.ID,
		&role, &r.Email, &r.Comment, &outcome, &processedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan join request: %w", err)
	}
	r.ID = id.JoinRequestID(rawID)
	r.Kind = models.Kind(kind)
	r.CandidateID = id.UserID(candidateID)
	if introducer.Valid {
		i := id.UserID(introducer.UUID)
		r.IntroducerID = &i
	}
	r.Group.Kind = id.RefKind(groupKind)
	r.Role = id.Role(role)
	r.Outcome = models.Outcome(outcome)
	if processedAt.Valid {
		r.ProcessedAt = &processedAt.Time
	}
	return &r, nil
}
