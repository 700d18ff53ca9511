package models

// Requests for the HTTP API. Bound from query or JSON body, then defaulted and validated.

type BacktestRequest struct {
	Symbol    string  `query:"symbol" json:"symbol" validate:"required"`
	From      string  `query:"from" json:"from" validate:"required"`
	To        string  `query:"to" json:"to" validate:"required"`
	TF        string  `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 1d"`
	Notional  float64 `query:"notional" json:"notional" validate:"gte=0"`
	FeeRate   float64 `query:"fee_rate" json:"fee_rate" validate:"gte=0,lt=1"`
	Selection string  `query:"selection" json:"selection" validate:"omitempty,oneof=first nearest"`
	EndOfRun  string  `query:"end_of_run" json:"end_of_run" validate:"omitempty,oneof=leave_open close_at_last"`
}

type LevelsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 1d"`
}
