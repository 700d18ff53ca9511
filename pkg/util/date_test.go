package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-03-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnixSecondsAndMillis(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(want.Unix(), 10))
	if !ok || !got.Equal(want) {
		t.Fatalf("seconds: got %v ok=%v", got, ok)
	}
	got, ok = ParseTime(strconv.FormatInt(want.UnixMilli(), 10))
	if !ok || !got.Equal(want) {
		t.Fatalf("millis: got %v ok=%v", got, ok)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if got := ParseTimeDefault("garbage", def); !got.Equal(def) {
		t.Fatalf("expected default for invalid input")
	}
}

func TestParseRangeRejectsInverted(t *testing.T) {
	if _, _, err := ParseRange("2024-01-02", "2024-01-01"); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	f, to, err := ParseRange("2024-01-01", "2024-01-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to.Sub(f) != 24*time.Hour {
		t.Fatalf("unexpected span %v", to.Sub(f))
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 7, 31, 0, time.UTC)
	to := time.Date(2024, 1, 1, 11, 14, 2, 0, time.UTC)
	f, tt := AlignFromTo(from, to, "5m")
	if f.Minute() != 5 || f.Second() != 0 {
		t.Fatalf("from not aligned: %v", f)
	}
	if tt.Minute() != 10 || tt.Second() != 0 {
		t.Fatalf("to not aligned: %v", tt)
	}
}
