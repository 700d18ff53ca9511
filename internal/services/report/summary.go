// Package report derives ledger statistics for a finished backtest.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"LevelScope/internal/domain/models"
)

var hundred = decimal.NewFromInt(100)

// Summary aggregates a trade ledger. Money fields are in quote currency and
// WinRate is a percentage.
type Summary struct {
	TotalTrades  int             `json:"total_trades"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	Longs        int             `json:"longs"`
	Shorts       int             `json:"shorts"`
	StopLosses   int             `json:"stop_losses"`
	TakeProfits  int             `json:"take_profits"`
	WinRate      decimal.Decimal `json:"win_rate"`
	NetPnL       decimal.Decimal `json:"net_pnl"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	GrossLoss    decimal.Decimal `json:"gross_loss"`
	Fees         decimal.Decimal `json:"fees"`
	AvgTrade     decimal.Decimal `json:"avg_trade"`
	ProfitFactor decimal.Decimal `json:"profit_factor"`
	MaxDrawdown  decimal.Decimal `json:"max_drawdown"`
	AvgHolding   time.Duration   `json:"avg_holding_ns"`
}

// Summarize walks the ledger in order. A trade with zero net PnL counts as a loss.
func Summarize(trades []models.Trade) Summary {
	var s Summary
	if len(trades) == 0 {
		return s
	}

	var equity, peak decimal.Decimal
	var holding time.Duration
	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.PnL)
		s.NetPnL = s.NetPnL.Add(pnl)
		s.Fees = s.Fees.Add(decimal.NewFromFloat(t.Fees))

		if pnl.IsPositive() {
			s.Wins++
			s.GrossProfit = s.GrossProfit.Add(pnl)
		} else {
			s.Losses++
			s.GrossLoss = s.GrossLoss.Add(pnl.Abs())
		}

		switch t.Side {
		case models.SideLong:
			s.Longs++
		case models.SideShort:
			s.Shorts++
		}
		switch t.ExitReason {
		case models.ExitStopLoss:
			s.StopLosses++
		case models.ExitTakeProfit:
			s.TakeProfits++
		}

		equity = equity.Add(pnl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = dd
		}
		holding += t.ExitTime.Sub(t.EntryTime)
	}

	n := decimal.NewFromInt(int64(len(trades)))
	s.TotalTrades = len(trades)
	s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(n).Mul(hundred)
	s.AvgTrade = s.NetPnL.Div(n)
	if s.GrossLoss.IsPositive() {
		s.ProfitFactor = s.GrossProfit.Div(s.GrossLoss)
	}
	s.AvgHolding = holding / time.Duration(len(trades))
	return s
}
