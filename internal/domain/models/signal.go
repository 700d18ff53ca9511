package models

type TrendState string

const (
	TrendUp   TrendState = "up"
	TrendDown TrendState = "down"
	TrendFlat TrendState = "flat"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Signal is a trade proposal at a level.
type Signal struct {
	Side       Side       `json:"side"`
	Level      float64    `json:"level"`
	Entry      float64    `json:"entry"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Trend      TrendState `json:"trend"`
	Sentiment  float64    `json:"sentiment"`
}
