// Package store persists the two shared documents behind the status
// service: the play count map and the device registry. The default
// implementation keeps each document as a whole JSON file rewritten on
// every mutation; a Redis-backed implementation is available for
// deployments that already run one.
package store

import (
	"context"
	"errors"
	"time"

	"LanFM/model"
)

// ErrMissingID is returned when a mutating call lacks its required key.
var ErrMissingID = errors.New("store: missing id")

// CountStore tracks per-song play counts. Counts are monotonically
// non-decreasing and have no per-device attribution.
type CountStore interface {
	// Increment adds one play for id and returns the new count.
	Increment(ctx context.Context, id string) (int64, error)
	// Top returns a maximum-count entry, or ("", 0) when no plays exist.
	// Tie-break between equal counts is unspecified.
	Top(ctx context.Context) (string, int64, error)
}

// DeviceStore tracks the last reported status per device.
type DeviceStore interface {
	// Upsert overwrites the entry for status.DeviceID. No merge.
	Upsert(ctx context.Context, status model.DeviceStatus) error
	// ListActive returns entries updated within ttl of now. Stale entries
	// stay in storage; they are only hidden from the result.
	ListActive(ctx context.Context, ttl time.Duration) ([]model.DeviceStatus, error)
	// Compact removes entries stale for longer than ttl and reports how
	// many were dropped. Optional housekeeping, never required for
	// correctness.
	Compact(ctx context.Context, ttl time.Duration) (int, error)
}
