package levels

import (
	"math"
	"testing"

	"LevelScope/internal/domain/models"
)

func referenceProfile() *models.VolumeProfile {
	return &models.VolumeProfile{
		Edges:   []float64{99.5, 100.5, 101.5, 102.5, 103.5, 104.5, 105.5, 106.5, 107.5, 108.5},
		Centers: []float64{100, 101, 102, 103, 104, 105, 106, 107, 108},
		Volume:  []float64{0, 0, 1, 8, 10, 9, 1, 0, 0},
	}
}

func TestResolveKeepsPeaksInsideZones(t *testing.T) {
	sessions := []models.SessionPeaks{
		{Session: "2024-05-01", Peaks: []models.Peak{{Price: 104.2, Volume: 5}, {Price: 107, Volume: 3}}},
		{Session: "2024-05-02", Peaks: []models.Peak{{Price: 102.4, Volume: 2}, {Price: 104.5, Volume: 5}}},
	}

	got := Resolve(referenceProfile(), sessions, DefaultOptions())
	if len(got) != 2 {
		t.Fatalf("expected 2 levels, got %+v", got)
	}

	// 102.4 sits just below the zone but within the 0.2% tolerance
	if got[0].Price != 102.4 || got[0].Session != "2024-05-02" || got[0].Touches != 1 {
		t.Fatalf("unexpected first level %+v", got[0])
	}
	if got[0].Zone != (models.Zone{Low: 102.5, High: 105.5}) {
		t.Fatalf("unexpected zone %+v", got[0].Zone)
	}

	want := (104.2*5 + 104.5*5) / (10 + mergeWeightFloor)
	if math.Abs(got[1].Price-want) > 1e-12 || got[1].Volume != 10 || got[1].Touches != 2 {
		t.Fatalf("unexpected merged level %+v (want price %v)", got[1], want)
	}
	if got[1].Session != "2024-05-01" {
		t.Fatalf("merged level should keep the lower constituent's session, got %s", got[1].Session)
	}
}

func TestResolveWithoutZones(t *testing.T) {
	ref := referenceProfile()
	ref.Volume = make([]float64, len(ref.Centers))
	sessions := []models.SessionPeaks{{Session: "s", Peaks: []models.Peak{{Price: 104, Volume: 1}}}}
	if got := Resolve(ref, sessions, DefaultOptions()); got != nil {
		t.Fatalf("expected no levels, got %+v", got)
	}
}

func TestMergeSortsAndDeduplicates(t *testing.T) {
	in := []models.Level{
		{Price: 250, Volume: 1, Touches: 1},
		{Price: 100, Volume: 3, Touches: 1},
		{Price: 100.4, Volume: 1, Touches: 1},
		{Price: 180, Volume: 2, Touches: 1},
	}
	got := Merge(in, DefaultOptions())
	if len(got) != 3 {
		t.Fatalf("expected 3 levels, got %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Price <= got[i-1].Price {
			t.Fatalf("levels not sorted: %+v", got)
		}
	}
	if got[0].Volume != 4 || got[0].Price >= 100.4 || got[0].Price <= 100 {
		t.Fatalf("unexpected merged level %+v", got[0])
	}
	if in[0].Price != 250 {
		t.Fatalf("input slice was reordered")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	in := []models.Level{
		{Price: 100, Volume: 2, Touches: 1},
		{Price: 100.3, Volume: 1, Touches: 1},
		{Price: 100.7, Volume: 4, Touches: 1},
		{Price: 101.9, Volume: 1, Touches: 1},
		{Price: 103, Volume: 5, Touches: 1},
		{Price: 103.2, Volume: 5, Touches: 1},
	}
	once := Merge(in, DefaultOptions())
	twice := Merge(once, DefaultOptions())
	if len(once) != len(twice) {
		t.Fatalf("second merge changed length: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("level %d changed: %+v -> %+v", i, once[i], twice[i])
		}
	}
	for i := 1; i < len(once); i++ {
		tol := math.Max(once[i-1].Price*0.0005, 0.5)
		if once[i].Price-once[i-1].Price <= tol {
			t.Fatalf("levels %d and %d are within tolerance: %+v", i-1, i, once)
		}
	}
}
