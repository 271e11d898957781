package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/pugboard/internal/models"
)

// CreateSession creates and stores a new session
func (db *Database) CreateSession(ctx context.Context) (*models.Session, error) {
	s, err := models.NewSession(now())
	if err != nil {
		return nil, err
	}
	_, err = retryableExec(ctx, db.mainDB,
		`INSERT INTO sessions (id, csrf_token, created_at, last_seen) VALUES (?, ?, ?, ?)`,
		s.ID, s.CSRFToken, s.CreatedAt, s.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// GetSession returns a session seen within maxIdle, models.ErrSessionNotFound otherwise
func (db *Database) GetSession(ctx context.Context, id string, maxIdle time.Duration) (*models.Session, error) {
	if id == "" {
		return nil, models.ErrSessionNotFound
	}
	var s models.Session
	err := retryableQueryRowScan(ctx, db.mainDB,
		`SELECT id, csrf_token, created_at, last_seen FROM sessions WHERE id = ? AND last_seen > ?`,
		[]any{id, now().Add(-maxIdle)},
		&s.ID, &s.CSRFToken, &s.CreatedAt, &s.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// TouchSession extends the sliding idle timeout of a session
func (db *Database) TouchSession(ctx context.Context, id string) error {
	_, err := retryableExec(ctx, db.mainDB, `UPDATE sessions SET last_seen = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes sessions idle longer than maxIdle
func (db *Database) CleanupExpiredSessions(ctx context.Context, maxIdle time.Duration) (int64, error) {
	res, err := retryableExec(ctx, db.mainDB, `DELETE FROM sessions WHERE last_seen <= ?`, now().Add(-maxIdle))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return res.RowsAffected()
}
