package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
	pkgch "AgriPull/pkg/clickhouse"
	applogger "AgriPull/pkg/logger"
)

// CHPriceStore implements PriceStore backed by ClickHouse. Observations are
// append-only; per-day reads pick the latest observation within the day.
type CHPriceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, table string) *CHPriceStore {
	return &CHPriceStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) Store(ctx context.Context, o *models.PriceObservation) error {
	if o == nil {
		return fmt.Errorf("observation is nil")
	}
	ts := time.Unix(o.Timestamp, 0).UTC()
	q := fmt.Sprintf("INSERT INTO %s (market, day, observed_at, price_kg, source) VALUES (?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, o.Market, ts.Truncate(24*time.Hour), ts, o.PriceKg, o.Source)
	if err != nil {
		return fmt.Errorf("store price: %w", err)
	}
	return nil
}

func (s *CHPriceStore) StoreBatch(ctx context.Context, obs []*models.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(obs); start += chunkSize {
		end := start + chunkSize
		if end > len(obs) {
			end = len(obs)
		}
		chunk := obs[start:end]

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("INSERT INTO %s (market, day, observed_at, price_kg, source) VALUES ", s.table))
		args := make([]interface{}, 0, len(chunk)*5)
		for i, o := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?)")
			ts := time.Unix(o.Timestamp, 0).UTC()
			args = append(args, o.Market, ts.Truncate(24*time.Hour), ts, o.PriceKg, o.Source)
		}
		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse price batch insert error",
					applogger.String("table", s.table),
					applogger.Int("rows", len(chunk)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store price batch: %w", err)
		}
	}
	return nil
}

func (s *CHPriceStore) Latest(ctx context.Context, market string) (*models.PriceObservation, error) {
	q := fmt.Sprintf(`
        SELECT market, observed_at, price_kg, source
        FROM %s
        WHERE market = ?
        ORDER BY observed_at DESC
        LIMIT 1
    `, s.table)
	var (
		o  models.PriceObservation
		at time.Time
	)
	err := s.db.QueryRowContext(ctx, q, market).Scan(&o.Market, &at, &o.PriceKg, &o.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest price: %w", err)
	}
	o.Timestamp = at.Unix()
	return &o, nil
}

func (s *CHPriceStore) PricesOn(ctx context.Context, markets []string, day time.Time) (map[string]float64, error) {
	if len(markets) == 0 {
		return map[string]float64{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(markets)), ", ")
	q := fmt.Sprintf(`
        SELECT market, argMax(price_kg, observed_at)
        FROM %s
        WHERE day = ? AND market IN (%s)
        GROUP BY market
    `, s.table, placeholders)

	args := make([]interface{}, 0, len(markets)+1)
	args = append(args, day.UTC().Truncate(24*time.Hour))
	for _, m := range markets {
		args = append(args, m)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse prices_on query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("prices on day: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(markets))
	for rows.Next() {
		var (
			market string
			price  float64
		)
		if err := rows.Scan(&market, &price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out[market] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceStore) Close() error {
	// Connection pool is owned by the shared client.
	return nil
}

var _ domrepo.PriceStore = (*CHPriceStore)(nil)
