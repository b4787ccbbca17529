package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no observation matches.
var ErrNotFound = errors.New("no observations found")

// StationClient abstracts the personal weather station API.
// Implementations return an error on transport or status failures; the
// Service treats any error as "no data" and degrades gracefully.
type StationClient interface {
	// Current returns the latest reading from the station.
	Current(ctx context.Context) (Observation, error)
	// History returns every reading for the calendar day containing ts (UTC).
	History(ctx context.Context, day time.Time) ([]Observation, error)
}

// Store is the contract the observation store must satisfy. Observations
// are append-only; nothing in this system mutates or deletes them.
type Store interface {
	Insert(ctx context.Context, obs Observation) error
	// Latest returns the most recent observation, or ErrNotFound.
	Latest(ctx context.Context) (Observation, error)
	// Range returns observations with from <= timestamp < to, sorted
	// ascending. An empty range yields an empty slice, not an error.
	Range(ctx context.Context, from, to time.Time) ([]Observation, error)
	// Exists reports whether an observation with the given id is stored.
	Exists(ctx context.Context, id string) (bool, error)
}
