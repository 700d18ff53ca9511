package models

import "time"

type ExitReason string

const (
	ExitStopLoss   ExitReason = "SL"
	ExitTakeProfit ExitReason = "TP"
	ExitEndOfData  ExitReason = "EOD"
)

// Position is an open trade.
type Position struct {
	Side       Side      `json:"side"`
	Level      float64   `json:"level"`
	Entry      float64   `json:"entry"`
	Units      float64   `json:"units"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	EntryTime  time.Time `json:"entry_time"`
	EntryFee   float64   `json:"entry_fee"`
}

// Trade is a closed position.
type Trade struct {
	Position
	ExitTime   time.Time  `json:"exit_time"`
	ExitPrice  float64    `json:"exit_price"`
	ExitReason ExitReason `json:"exit_reason"`
	GrossPnL   float64    `json:"gross_pnl"`
	Fees       float64    `json:"fees"`
	PnL        float64    `json:"pnl"`
}
