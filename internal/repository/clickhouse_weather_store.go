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
	applogger "AgriPull/pkg/logger"
)

// CHWeatherStore implements WeatherStore backed by ClickHouse.
type CHWeatherStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHWeatherStore(ch *pkgch.Client, table string) *CHWeatherStore {
	return &CHWeatherStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHWeatherStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHWeatherStore) Store(ctx context.Context, r *models.WeatherReading) error {
	if r == nil {
		return fmt.Errorf("reading is nil")
	}
	q := fmt.Sprintf("INSERT INTO %s (market, ts, rain_mm, weather_code, weather_index) VALUES (?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, r.Market, r.Timestamp.UTC(), r.RainMM, r.WeatherCode, r.WeatherIndex)
	if err != nil {
		return fmt.Errorf("store weather: %w", err)
	}
	return nil
}

func (s *CHWeatherStore) Latest(ctx context.Context, market string) (*models.WeatherReading, error) {
	q := fmt.Sprintf(`
        SELECT market, ts, rain_mm, weather_code, weather_index
        FROM %s
        WHERE market = ?
        ORDER BY ts DESC
        LIMIT 1
    `, s.table)
	var r models.WeatherReading
	err := s.db.QueryRowContext(ctx, q, market).Scan(&r.Market, &r.Timestamp, &r.RainMM, &r.WeatherCode, &r.WeatherIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest weather: %w", err)
	}
	return &r, nil
}

func (s *CHWeatherStore) History(ctx context.Context, market string, from time.Time, limit int) ([]models.WeatherReading, error) {
	q := fmt.Sprintf(`
        SELECT market, ts, rain_mm, weather_code, weather_index
        FROM %s
        WHERE market = ? AND ts >= ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, market, from.UTC(), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse weather history query error",
				applogger.String("market", market),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("weather history: %w", err)
	}
	defer rows.Close()

	out := make([]models.WeatherReading, 0, limit)
	for rows.Next() {
		var r models.WeatherReading
		if err := rows.Scan(&r.Market, &r.Timestamp, &r.RainMM, &r.WeatherCode, &r.WeatherIndex); err != nil {
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHWeatherStore) ReadingOn(ctx context.Context, market string, day time.Time) (*models.WeatherReading, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	q := fmt.Sprintf(`
        SELECT market, ts, rain_mm, weather_code, weather_index
        FROM %s
        WHERE market = ? AND ts >= ? AND ts < ?
        ORDER BY ts DESC
        LIMIT 1
    `, s.table)
	var r models.WeatherReading
	err := s.db.QueryRowContext(ctx, q, market, start, end).Scan(&r.Market, &r.Timestamp, &r.RainMM, &r.WeatherCode, &r.WeatherIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("weather on day: %w", err)
	}
	return &r, nil
}

func (s *CHWeatherStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	countQ := fmt.Sprintf("SELECT count() FROM %s WHERE ts < ?", s.table)
	if err := s.db.QueryRowContext(ctx, countQ, cutoff.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count old weather: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	q := fmt.Sprintf("ALTER TABLE %s DELETE WHERE ts < ?", s.table)
	if _, err := s.db.ExecContext(ctx, q, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("delete old weather: %w", err)
	}
	return count, nil
}

var _ domrepo.WeatherStore = (*CHWeatherStore)(nil)
