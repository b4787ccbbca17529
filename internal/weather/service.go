package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// backfillThreshold is the trailing-24h record count below which the
// window is considered likely incomplete and a supplemental fetch of the
// current day is attempted.
const backfillThreshold = 10

// Service orchestrates the station client and the observation store.
type Service struct {
	store   Store
	station StationClient
	log     *slog.Logger
}

// NewService creates a new Service.
func NewService(store Store, station StationClient, log *slog.Logger) *Service {
	return &Service{
		store:   store,
		station: station,
		log:     log,
	}
}

// FetchAndStoreCurrent fetches the latest reading from the station and
// persists it. This is the body of the background poll job.
func (s *Service) FetchAndStoreCurrent(ctx context.Context) (Observation, error) {
	obs, err := s.station.Current(ctx)
	if err != nil {
		return Observation{}, fmt.Errorf("fetch current conditions: %w", err)
	}
	if err := s.store.Insert(ctx, obs); err != nil {
		return Observation{}, fmt.Errorf("store current conditions: %w", err)
	}
	return obs, nil
}

// Current returns the latest observation, live if the station is
// reachable, otherwise the most recent stored one. The returned source is
// "live" or "cache". With an unreachable station and an empty store it
// returns ErrNotFound.
func (s *Service) Current(ctx context.Context) (Observation, string, error) {
	obs, err := s.FetchAndStoreCurrent(ctx)
	if err == nil {
		return obs, "live", nil
	}
	s.log.Warn("live fetch failed, falling back to cache", "error", err)

	cached, err := s.store.Latest(ctx)
	if err != nil {
		return Observation{}, "", err
	}
	return cached, "cache", nil
}

// History serves the requested date range (inclusive calendar days, UTC)
// with a day-granularity cache: a day with at least one stored record is
// served verbatim from the store, a day with none is fetched from the
// station and persisted. The cache cannot tell a complete day from a
// partially fetched one; once any record exists for a day it is never
// re-fetched. That coarseness is a deliberate trade for one upstream call
// per cold day.
func (s *Service) History(ctx context.Context, start, end time.Time) ([]Observation, error) {
	var all []Observation

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)

		stored, err := s.store.Range(ctx, day, next)
		if err != nil {
			return nil, fmt.Errorf("query stored observations for %s: %w", day.Format("20060102"), err)
		}
		if len(stored) > 0 {
			all = append(all, stored...)
			continue
		}

		fetched, err := s.station.History(ctx, day)
		if err != nil {
			// Best effort: a day the upstream cannot serve contributes nothing.
			s.log.Warn("history fetch failed", "day", day.Format("20060102"), "error", err)
			continue
		}
		for _, obs := range fetched {
			if err := s.store.Insert(ctx, obs); err != nil {
				return nil, fmt.Errorf("store observation %s: %w", obs.ID, err)
			}
			all = append(all, obs)
		}
	}

	sortByTimestamp(all)
	return all, nil
}

// Last24h returns the trailing 24-hour window from the store. Fewer than
// backfillThreshold records are taken as a sign the window is incomplete,
// triggering one supplemental fetch of the current day, deduplicated by
// observation id before persisting and merging.
func (s *Service) Last24h(ctx context.Context) ([]Observation, error) {
	now := time.Now().UTC()

	observations, err := s.store.Range(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return nil, fmt.Errorf("query trailing window: %w", err)
	}

	if len(observations) < backfillThreshold {
		fetched, err := s.station.History(ctx, now)
		if err != nil {
			s.log.Warn("backfill fetch failed", "error", err)
		}
		for _, obs := range fetched {
			exists, err := s.store.Exists(ctx, obs.ID)
			if err != nil {
				return nil, fmt.Errorf("check observation %s: %w", obs.ID, err)
			}
			if exists {
				continue
			}
			if err := s.store.Insert(ctx, obs); err != nil {
				return nil, fmt.Errorf("store observation %s: %w", obs.ID, err)
			}
			observations = append(observations, obs)
		}
	}

	sortByTimestamp(observations)
	return observations, nil
}

// StoredRange returns persisted observations in [from, to), sorted
// ascending, without consulting the upstream. Statistics and the Excel
// export read through here.
func (s *Service) StoredRange(ctx context.Context, from, to time.Time) ([]Observation, error) {
	return s.store.Range(ctx, from, to)
}

// Statistics aggregates the stored observations for the inclusive day
// range. A range with no observations yields nil, not zeroed fields.
func (s *Service) Statistics(ctx context.Context, start, end time.Time) (*Statistics, error) {
	observations, err := s.store.Range(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("query observations for statistics: %w", err)
	}
	return Aggregate(observations), nil
}

func sortByTimestamp(observations []Observation) {
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Timestamp.Before(observations[j].Timestamp)
	})
}
