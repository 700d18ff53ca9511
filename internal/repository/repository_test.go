package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/pkg/cache"
	pkgkafka "LevelScope/pkg/kafka"
)

const barsCSV = `timestamp,open,high,low,close,volume
2024-01-01T00:02:00Z,101,102,100,101.5,7
2024-01-01T00:00:00Z,100,101,99,100.5,5
2024-01-01T00:01:00Z,100.5,101.5,100,101,6
`

func TestReadBarsCSVSortsAndParses(t *testing.T) {
	rows, err := readBarsCSV(strings.NewReader(barsCSV))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].bar.Close != 100.5 || rows[2].bar.Volume != 7 {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestReadBarsCSVMissingColumn(t *testing.T) {
	_, err := readBarsCSV(strings.NewReader("timestamp,open,high,low,close\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestCSVBarProviderFiltersRangeAndSymbol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	data := "date,symbol,open,high,low,close,volume\n" +
		"1704067200000,BTCUSDT,100,101,99,100,1\n" +
		"1704067200000,ETHUSDT,10,11,9,10,1\n" +
		"1704067260000,BTCUSDT,100,101,99,100.5,2\n" +
		"1704067320000,BTCUSDT,100,101,99,101,3\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	p := NewCSVBarProvider(path)
	from := time.UnixMilli(1704067200000).UTC()
	to := time.UnixMilli(1704067260000).UTC()
	bars, err := p.GetBars(context.Background(), "btcusdt", from, to, domrepo.TF1m)
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 100.5 {
		t.Fatalf("bars = %+v", bars)
	}
}

func TestCacheProfileStorePurgeIsPerRun(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	a := NewCacheProfileStore(c, "run-a", time.Minute)
	b := NewCacheProfileStore(c, "run-b", time.Minute)

	p := &models.VolumeProfile{Edges: []float64{1, 2, 3}, Centers: []float64{1.5, 2.5}, Volume: []float64{4, 5}}
	if err := a.PutProfile(ctx, "k", p); err != nil {
		t.Fatal(err)
	}
	if err := b.PutProfile(ctx, "k", p); err != nil {
		t.Fatal(err)
	}

	got, ok, err := a.GetProfile(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Volume[1] != 5 || got.Bins() != 2 {
		t.Fatalf("profile = %+v", got)
	}

	if err := a.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := a.GetProfile(ctx, "k"); ok {
		t.Fatal("run-a entry survived purge")
	}
	if _, ok, _ := b.GetProfile(ctx, "k"); !ok {
		t.Fatal("run-b entry removed by run-a purge")
	}
}

func TestMemoryLedgerKeepsOrder(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	trades := []models.Trade{{PnL: 1}, {PnL: -2}}
	if err := l.StoreTrades(ctx, "r1", "BTCUSDT", trades); err != nil {
		t.Fatal(err)
	}
	got, err := l.QueryTrades(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].PnL != -2 {
		t.Fatalf("ledger = %+v", got)
	}
	if empty, _ := l.QueryTrades(ctx, "missing"); len(empty) != 0 {
		t.Fatalf("unknown run returned %d trades", len(empty))
	}
}

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaTradePublisherKeysBySymbol(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaTradePublisher(pkgkafka.NewProducerWithWriter(w), "backtest.trades")
	tr := models.Trade{
		Position:   models.Position{Side: models.SideLong, Entry: 100},
		ExitPrice:  101,
		ExitReason: models.ExitTakeProfit,
		PnL:        0.09,
	}
	if err := pub.PublishTrade(context.Background(), "run-1", "BTCUSDT", tr); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "BTCUSDT" || m.Topic != "backtest.trades" {
		t.Fatalf("key=%s topic=%s", m.Key, m.Topic)
	}
	var ev TradeEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.RunID != "run-1" || ev.ExitReason != "TP" || ev.Side != "long" {
		t.Fatalf("event = %+v", ev)
	}
}
