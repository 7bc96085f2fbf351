package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Record is a persisted session configuration.
type Record struct {
	APIID        int64     `json:"apiId"`
	APIHash      string    `json:"-"`
	Phone        string    `json:"phone"`
	SessionToken string    `json:"-"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `api_id, api_hash, phone, session_token, username, first_name, last_name, is_active, created_at, updated_at`

const upsertSQL = `
INSERT INTO listeners (api_id, api_hash, phone, session_token, username, first_name, last_name, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (api_id) DO UPDATE SET
    session_token = EXCLUDED.session_token,
    username      = EXCLUDED.username,
    first_name    = EXCLUDED.first_name,
    last_name     = EXCLUDED.last_name,
    is_active     = EXCLUDED.is_active,
    updated_at    = now()
RETURNING ` + recordColumns

// Store persists session records in the listeners table.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// NewStore creates a store over db.
func NewStore(log *slog.Logger, db DBTX) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:     db,
		logger: log.With(slog.String("service", "session_store")),
	}
}

// Upsert creates the record or refreshes its token, profile and active flag.
// api_hash and phone keep their first-written values.
func (s *Store) Upsert(ctx context.Context, rec Record) (Record, error) {
	row := s.db.QueryRow(ctx, upsertSQL,
		rec.APIID, rec.APIHash, rec.Phone, rec.SessionToken,
		rec.Username, rec.FirstName, rec.LastName, rec.Active,
	)
	out, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("upsert session %d: %w", rec.APIID, err)
	}
	return out, nil
}

// Get returns the record for apiID.
func (s *Store) Get(ctx context.Context, apiID int64) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM listeners WHERE api_id = $1`, apiID)
	out, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get session %d: %w", apiID, err)
	}
	return out, nil
}

// Delete removes the record for apiID.
func (s *Store) Delete(ctx context.Context, apiID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM listeners WHERE api_id = $1`, apiID)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", apiID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByActive returns records whose active flag equals active, oldest first.
func (s *Store) ListByActive(ctx context.Context, active bool) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+` FROM listeners WHERE is_active = $1 ORDER BY created_at, api_id`, active)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

// UpdateToken replaces the stored session token for apiID.
func (s *Store) UpdateToken(ctx context.Context, apiID int64, token string) error {
	tag, err := s.db.Exec(ctx, `UPDATE listeners SET session_token = $2, updated_at = now() WHERE api_id = $1`, apiID, token)
	if err != nil {
		return fmt.Errorf("update session token %d: %w", apiID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips the active flag for every listed api id.
func (s *Store) SetActive(ctx context.Context, apiIDs []int64, active bool) (int64, error) {
	if len(apiIDs) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `UPDATE listeners SET is_active = $2, updated_at = now() WHERE api_id = ANY($1)`, apiIDs, active)
	if err != nil {
		return 0, fmt.Errorf("set sessions active=%t: %w", active, err)
	}
	s.logger.Debug("sessions flagged", slog.Bool("active", active), slog.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.APIID, &r.APIHash, &r.Phone, &r.SessionToken,
		&r.Username, &r.FirstName, &r.LastName, &r.Active,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}
