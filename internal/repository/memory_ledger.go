package repository

import (
	"context"
	"sync"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
)

// MemoryLedger keeps run ledgers in process. Used when ClickHouse is disabled.
type MemoryLedger struct {
	mu   sync.RWMutex
	runs map[string][]models.Trade
}

func NewMemoryLedger() domrepo.LedgerStorage {
	return &MemoryLedger{runs: make(map[string][]models.Trade)}
}

func (m *MemoryLedger) Init(context.Context) error { return nil }

func (m *MemoryLedger) StoreTrades(_ context.Context, runID, _ string, trades []models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = append(m.runs[runID], trades...)
	return nil
}

func (m *MemoryLedger) QueryTrades(_ context.Context, runID string) ([]models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trade, len(m.runs[runID]))
	copy(out, m.runs[runID])
	return out, nil
}

func (m *MemoryLedger) Close() error { return nil }
