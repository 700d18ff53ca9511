package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	pkgch "LevelScope/pkg/clickhouse"
)

// CHLedger implements LedgerStorage on the backtest_trades table.
type CHLedger struct {
	ch *pkgch.Client
	db *sql.DB
}

func NewCHLedger(ch *pkgch.Client) domrepo.LedgerStorage {
	return &CHLedger{ch: ch, db: ch.DB()}
}

func (s *CHLedger) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema)
}

func (s *CHLedger) StoreTrades(ctx context.Context, runID, symbol string, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	const cols = "run_id, symbol, seq, side, level, entry, units, stop_loss, take_profit, entry_time, entry_fee, exit_time, exit_price, exit_reason, gross_pnl, fees, pnl"
	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*17)
	for i, t := range trades {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			runID, symbol, uint32(i), string(t.Side),
			t.Level, t.Entry, t.Units, t.StopLoss, t.TakeProfit,
			t.EntryTime.UTC(), t.EntryFee,
			t.ExitTime.UTC(), t.ExitPrice, string(t.ExitReason),
			t.GrossPnL, t.Fees, t.PnL,
		)
	}
	q := fmt.Sprintf("INSERT INTO backtest_trades (%s) VALUES %s", cols, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store trades: %w", err)
	}
	return nil
}

func (s *CHLedger) QueryTrades(ctx context.Context, runID string) ([]models.Trade, error) {
	const q = `
        SELECT side, level, entry, units, stop_loss, take_profit, entry_time, entry_fee,
               exit_time, exit_price, exit_reason, gross_pnl, fees, pnl
        FROM backtest_trades
        WHERE run_id = ?
        ORDER BY seq ASC
    `
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t            models.Trade
			side, reason string
		)
		if err := rows.Scan(&side, &t.Level, &t.Entry, &t.Units, &t.StopLoss, &t.TakeProfit,
			&t.EntryTime, &t.EntryFee, &t.ExitTime, &t.ExitPrice, &reason,
			&t.GrossPnL, &t.Fees, &t.PnL); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.Side(side)
		t.ExitReason = models.ExitReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close is a no-op; the client is owned by the caller.
func (s *CHLedger) Close() error { return nil }
