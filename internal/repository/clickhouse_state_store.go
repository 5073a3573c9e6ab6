package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
	pkgch "AgriPull/pkg/clickhouse"
)

// State keys follow the original layout: one scalar per location per concern.
func baseKey(location string) string  { return "base:" + location }
func sigmaKey(location string) string { return "sigma:" + location }

// CHStateStore implements StateStore on a ReplacingMergeTree keyed table.
// Writes append a new version row; reads pick the newest row per key, which
// gives last-write-wins semantics per location without explicit locking.
type CHStateStore struct {
	db    *sql.DB
	table string
}

func NewCHStateStore(ch *pkgch.Client, table string) *CHStateStore {
	return &CHStateStore{db: ch.DB(), table: table}
}

func (s *CHStateStore) Base(ctx context.Context, location string) (*float64, error) {
	v, _, err := s.latest(ctx, baseKey(location))
	if err != nil {
		return nil, fmt.Errorf("read base: %w", err)
	}
	return v, nil
}

func (s *CHStateStore) SetBase(ctx context.Context, location string, base float64) error {
	if err := s.write(ctx, baseKey(location), base, time.Now().UTC()); err != nil {
		return fmt.Errorf("write base: %w", err)
	}
	return nil
}

func (s *CHStateStore) Sigma(ctx context.Context, location string) (*models.SigmaRecord, error) {
	v, at, err := s.latest(ctx, sigmaKey(location))
	if err != nil {
		return nil, fmt.Errorf("read sigma: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	return &models.SigmaRecord{Location: location, Sigma: *v, UpdatedAt: at}, nil
}

func (s *CHStateStore) SetSigma(ctx context.Context, location string, sigma float64, updatedAt time.Time) error {
	if err := s.write(ctx, sigmaKey(location), sigma, updatedAt.UTC()); err != nil {
		return fmt.Errorf("write sigma: %w", err)
	}
	return nil
}

func (s *CHStateStore) latest(ctx context.Context, key string) (*float64, time.Time, error) {
	q := fmt.Sprintf(`
        SELECT value, updated_at
        FROM %s
        WHERE key = ?
        ORDER BY updated_at DESC
        LIMIT 1
    `, s.table)
	var (
		v  float64
		at time.Time
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return &v, at, nil
}

func (s *CHStateStore) write(ctx context.Context, key string, value float64, at time.Time) error {
	q := fmt.Sprintf("INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, key, value, at)
	return err
}

var _ domrepo.StateStore = (*CHStateStore)(nil)
