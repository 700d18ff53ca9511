package levels

import (
	"time"

	"LevelScope/internal/domain/models"
)

const sessionLayout = "2006-01-02"

// Session is the bars of one calendar day.
type Session struct {
	Date string
	Bars []models.Bar
}

// SplitSessions groups time-ordered bars by calendar day in loc (UTC when nil).
func SplitSessions(bars []models.Bar, loc *time.Location) []Session {
	if loc == nil {
		loc = time.UTC
	}
	var sessions []Session
	for _, b := range bars {
		day := b.Time.In(loc).Format(sessionLayout)
		if n := len(sessions); n > 0 && sessions[n-1].Date == day {
			sessions[n-1].Bars = append(sessions[n-1].Bars, b)
			continue
		}
		sessions = append(sessions, Session{Date: day, Bars: []models.Bar{b}})
	}
	return sessions
}
