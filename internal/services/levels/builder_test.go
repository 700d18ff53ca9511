package levels

import (
	"context"
	"math"
	"testing"
	"time"

	"LevelScope/internal/domain/models"
)

type countingStore struct {
	profiles map[string]*models.VolumeProfile
	gets     int
	hits     int
	puts     int
}

func newCountingStore() *countingStore {
	return &countingStore{profiles: map[string]*models.VolumeProfile{}}
}

func (s *countingStore) GetProfile(_ context.Context, key string) (*models.VolumeProfile, bool, error) {
	s.gets++
	p, ok := s.profiles[key]
	if ok {
		s.hits++
	}
	return p, ok, nil
}

func (s *countingStore) PutProfile(_ context.Context, key string, p *models.VolumeProfile) error {
	s.puts++
	s.profiles[key] = p
	return nil
}

func (s *countingStore) Purge(context.Context) error {
	s.profiles = map[string]*models.VolumeProfile{}
	return nil
}

func syntheticBars(n int, step time.Duration) []models.Bar {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 2*math.Sin(float64(i)/9)
		bars[i] = models.Bar{
			Time:   start.Add(time.Duration(i) * step),
			Open:   c,
			High:   c + 0.3,
			Low:    c - 0.3,
			Close:  c,
			Volume: 10 + float64(i%5),
		}
	}
	return bars
}

func TestSplitSessions(t *testing.T) {
	bars := []models.Bar{
		{Time: time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC)},
		{Time: time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)},
		{Time: time.Date(2024, 5, 2, 0, 30, 0, 0, time.UTC)},
	}
	utc := SplitSessions(bars, nil)
	if len(utc) != 2 || utc[0].Date != "2024-05-01" || len(utc[0].Bars) != 2 || utc[1].Date != "2024-05-02" {
		t.Fatalf("unexpected UTC sessions %+v", utc)
	}

	eastern := SplitSessions(bars, time.FixedZone("EDT", -4*3600))
	if len(eastern) != 1 || len(eastern[0].Bars) != 3 {
		t.Fatalf("expected one session in UTC-4, got %+v", eastern)
	}
}

func TestBuilderUsesProfileStore(t *testing.T) {
	bars := syntheticBars(192, 15*time.Minute)
	store := newCountingStore()
	b := NewBuilder(DefaultBuildOptions(), store, nil)

	first, err := b.Build(context.Background(), bars)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if store.puts != 2 || store.hits != 0 {
		t.Fatalf("first build: puts=%d hits=%d", store.puts, store.hits)
	}
	if len(first.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(first.Sessions))
	}
	for _, s := range first.Sessions {
		if len(s.Peaks) > 3 {
			t.Fatalf("session %s has %d peaks", s.Session, len(s.Peaks))
		}
	}

	second, err := b.Build(context.Background(), bars)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if store.puts != 2 || store.hits != 2 {
		t.Fatalf("second build: puts=%d hits=%d", store.puts, store.hits)
	}

	plain, err := NewBuilder(DefaultBuildOptions(), nil, nil).Build(context.Background(), bars)
	if err != nil {
		t.Fatalf("build without store: %v", err)
	}
	for _, got := range [][]models.Level{second.Levels, plain.Levels} {
		if len(got) != len(first.Levels) {
			t.Fatalf("level count differs: %d vs %d", len(got), len(first.Levels))
		}
		for i := range got {
			if got[i] != first.Levels[i] {
				t.Fatalf("level %d differs: %+v vs %+v", i, got[i], first.Levels[i])
			}
		}
	}
}

func TestBuilderRejectsEmptyInput(t *testing.T) {
	if _, err := NewBuilder(DefaultBuildOptions(), nil, nil).Build(context.Background(), nil); err != models.ErrNoBars {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
}
