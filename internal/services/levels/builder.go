package levels

import (
	"context"
	"fmt"
	"time"

	"LevelScope/internal/domain/models"
	"LevelScope/internal/domain/repository"
	"LevelScope/internal/services/volumeprofile"
	"LevelScope/pkg/logger"
)

type BuildOptions struct {
	Profile         volumeprofile.Options
	ReferenceBars   int
	PeaksPerSession int
	Location        *time.Location
	Resolve         Options
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Profile:         volumeprofile.Options{Bins: 140, Mode: volumeprofile.ModeClose},
		ReferenceBars:   200,
		PeaksPerSession: 3,
		Location:        time.UTC,
		Resolve:         DefaultOptions(),
	}
}

// Build holds everything produced while resolving levels from a bar history.
type Build struct {
	Reference *models.VolumeProfile
	Zones     []models.Zone
	Sessions  []models.SessionPeaks
	Levels    []models.Level
}

// Builder computes the reference profile over the most recent bars, one profile
// per session, and resolves the levels they agree on.
type Builder struct {
	opts  BuildOptions
	store repository.ProfileStore
	log   *logger.Logger
}

// NewBuilder creates a builder. store may be nil, in which case session
// profiles are always recomputed.
func NewBuilder(opts BuildOptions, store repository.ProfileStore, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{opts: opts, store: store, log: log}
}

func (b *Builder) Build(ctx context.Context, bars []models.Bar) (*Build, error) {
	if len(bars) == 0 {
		return nil, models.ErrNoBars
	}

	refBars := bars
	if n := b.opts.ReferenceBars; n > 0 && len(refBars) > n {
		refBars = refBars[len(refBars)-n:]
	}
	reference, err := volumeprofile.Compute(refBars, b.opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("reference profile: %w", err)
	}

	var sessions []models.SessionPeaks
	for _, s := range SplitSessions(bars, b.opts.Location) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := b.sessionProfile(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", s.Date, err)
		}
		sessions = append(sessions, models.SessionPeaks{
			Session: s.Date,
			Peaks:   volumeprofile.Peaks(p, b.opts.PeaksPerSession),
		})
	}

	out := &Build{
		Reference: reference,
		Zones:     volumeprofile.Zones(reference, b.opts.Resolve.ZoneCutoff),
		Sessions:  sessions,
		Levels:    Resolve(reference, sessions, b.opts.Resolve),
	}
	b.log.Debug("levels resolved",
		logger.Int("bars", len(bars)),
		logger.Int("sessions", len(sessions)),
		logger.Int("zones", len(out.Zones)),
		logger.Int("levels", len(out.Levels)),
	)
	return out, nil
}

func (b *Builder) sessionProfile(ctx context.Context, s Session) (*models.VolumeProfile, error) {
	if b.store == nil {
		return volumeprofile.Compute(s.Bars, b.opts.Profile)
	}

	key := b.sessionKey(s)
	if p, ok, err := b.store.GetProfile(ctx, key); err != nil {
		b.log.Warn("profile store read failed", logger.String("key", key), logger.Error(err))
	} else if ok {
		return p, nil
	}

	p, err := volumeprofile.Compute(s.Bars, b.opts.Profile)
	if err != nil {
		return nil, err
	}
	if err := b.store.PutProfile(ctx, key, p); err != nil {
		b.log.Warn("profile store write failed", logger.String("key", key), logger.Error(err))
	}
	return p, nil
}

func (b *Builder) sessionKey(s Session) string {
	first, last := s.Bars[0].Time, s.Bars[len(s.Bars)-1].Time
	return fmt.Sprintf("session:%s:%s:%d:%d:%d:%d",
		s.Date, b.opts.Profile.Mode, b.opts.Profile.Bins, len(s.Bars), first.Unix(), last.Unix())
}
