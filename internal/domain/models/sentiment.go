package models

import "time"

// SentimentPoint is an aggregated sentiment score in [-1, 1].
type SentimentPoint struct {
	Time  time.Time `json:"ts"`
	Score float64   `json:"score"`
}

// ScoredItem is one scored text item from a sentiment source.
type ScoredItem struct {
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
	Score     float64   `json:"score"`
}
