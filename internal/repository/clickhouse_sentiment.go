package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LevelScope/internal/domain/models"
	pkgch "LevelScope/pkg/clickhouse"
)

// CHSentimentStore keeps aggregated sentiment points per symbol.
type CHSentimentStore struct {
	db *sql.DB
}

func NewCHSentimentStore(ch *pkgch.Client) *CHSentimentStore {
	return &CHSentimentStore{db: ch.DB()}
}

// GetSentiment also returns the last point before from, so a lookup at from
// sees the score in force at that time.
func (s *CHSentimentStore) GetSentiment(ctx context.Context, symbol string, from, to time.Time) ([]models.SentimentPoint, error) {
	const q = `
        SELECT ts, score FROM (
            SELECT ts, score FROM sentiment FINAL
            WHERE symbol = ? AND ts < ?
            ORDER BY ts DESC LIMIT 1
            UNION ALL
            SELECT ts, score FROM sentiment FINAL
            WHERE symbol = ? AND ts >= ? AND ts <= ?
        )
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, from, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get sentiment: %w", err)
	}
	defer rows.Close()

	var out []models.SentimentPoint
	for rows.Next() {
		var p models.SentimentPoint
		if err := rows.Scan(&p.Time, &p.Score); err != nil {
			return nil, fmt.Errorf("scan sentiment: %w", err)
		}
		p.Time = p.Time.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHSentimentStore) StoreSentiment(ctx context.Context, symbol string, points []models.SentimentPoint) error {
	if len(points) == 0 {
		return nil
	}
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*3)
	for _, p := range points {
		values = append(values, "(?, ?, ?)")
		args = append(args, p.Time.UTC(), symbol, p.Score)
	}
	q := "INSERT INTO sentiment (ts, symbol, score) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store sentiment: %w", err)
	}
	return nil
}
