package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/internal/repository"
	"LevelScope/internal/services/levels"
	"LevelScope/pkg/cache"
	"LevelScope/pkg/logger"
)

var (
	ErrSymbolRequired = errors.New("symbol required")
	ErrInvalidRange   = errors.New("from must be before to")
)

// LevelsUseCase resolves levels over a caller-chosen bar window.
type LevelsUseCase struct {
	bars       domrepo.BarProvider
	profiles   cache.Service
	profileTTL time.Duration
	opts       levels.BuildOptions
	log        *logger.Logger
}

// NewLevelsUseCase creates the use case. profiles may be nil.
func NewLevelsUseCase(bars domrepo.BarProvider, profiles cache.Service, profileTTL time.Duration, opts levels.BuildOptions, log *logger.Logger) *LevelsUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &LevelsUseCase{bars: bars, profiles: profiles, profileTTL: profileTTL, opts: opts, log: log.Component("levels")}
}

type GetLevelsParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
}

type GetLevelsResult struct {
	Symbol    string                `json:"symbol"`
	Timeframe string                `json:"tf"`
	From      time.Time             `json:"from"`
	To        time.Time             `json:"to"`
	Bars      int                   `json:"bars"`
	Zones     []models.Zone         `json:"zones"`
	Sessions  []models.SessionPeaks `json:"sessions"`
	Levels    []models.Level        `json:"levels"`
}

func (uc *LevelsUseCase) GetLevels(ctx context.Context, p GetLevelsParams) (*GetLevelsResult, error) {
	if p.Symbol == "" {
		return nil, ErrSymbolRequired
	}
	if !p.From.Before(p.To) {
		return nil, ErrInvalidRange
	}

	bars, err := uc.bars.GetBars(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, models.ErrNoBars
	}

	var store domrepo.ProfileStore
	if uc.profiles != nil {
		store = repository.NewCacheProfileStore(uc.profiles, uuid.NewString(), uc.profileTTL)
		defer purge(ctx, store, uc.log)
	}

	build, err := levels.NewBuilder(uc.opts, store, uc.log).Build(ctx, bars)
	if err != nil {
		return nil, fmt.Errorf("build levels: %w", err)
	}
	return &GetLevelsResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Bars:      len(bars),
		Zones:     build.Zones,
		Sessions:  build.Sessions,
		Levels:    build.Levels,
	}, nil
}

func purge(ctx context.Context, store domrepo.ProfileStore, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := store.Purge(ctx); err != nil {
		log.Warn("profile store purge failed", logger.Error(err))
	}
}
