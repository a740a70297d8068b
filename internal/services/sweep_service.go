// Package services – SweepService
//
// This file implements the abandonment sweeper: the time-triggered batch
// job that promotes stale active carts to abandoned. The sweep is invoked
// by an external scheduler through the jobs endpoint; nothing in-process
// owns a timer. Overlapping invocations are safe because the selection
// filter (status = active AND last_activity_at < cutoff) stops matching a
// row the moment the first writer flips it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/repo"
)

// TTL and batch bounds for a sweep invocation. Values outside the range
// are clamped, not rejected: the trigger's configuration should never be
// able to stall the pipeline.
const (
	MinSweepTTLMinutes = 5
	MaxSweepTTLMinutes = 1440
	DefaultTTLMinutes  = 30

	MinSweepBatch     = 25
	MaxSweepBatch     = 100
	DefaultSweepBatch = 50
)

// SweepService transitions stale active carts to abandoned in bounded
// batches.
type SweepService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the sweep repository used by this service.
	Repo SweepRepo
}

// SweepResult aggregates one sweep invocation. Per-record failures are
// collected, never thrown: only total infrastructure failure aborts a
// sweep.
type SweepResult struct {
	TTLMinutes   int       `json:"ttl_minutes"`
	Cutoff       time.Time `json:"cutoff"`
	TotalChecked int       `json:"total_checked"`
	Updated      int       `json:"updated"`
	Errors       []string  `json:"errors,omitempty"`
	PurgedKeys   int64     `json:"purged_keys,omitempty"`
}

// ClampTTL bounds a requested TTL to [MinSweepTTLMinutes, MaxSweepTTLMinutes];
// non-positive values fall back to the default.
func ClampTTL(minutes int) int {
	switch {
	case minutes <= 0:
		return DefaultTTLMinutes
	case minutes < MinSweepTTLMinutes:
		return MinSweepTTLMinutes
	case minutes > MaxSweepTTLMinutes:
		return MaxSweepTTLMinutes
	}
	return minutes
}

func clampBatch(n int) int {
	switch {
	case n <= 0:
		return DefaultSweepBatch
	case n < MinSweepBatch:
		return MinSweepBatch
	case n > MaxSweepBatch:
		return MaxSweepBatch
	}
	return n
}

// Sweep selects up to batchSize active records whose last activity
// predates now - ttlMinutes and transitions them to abandoned, recording
// the TTL used in each record's audit trail. Individual update failures
// are isolated: the record is counted in Errors and the batch continues.
//
// Expired idempotency keys are purged on the way out, piggybacking on the
// external time trigger so the replay table stays bounded.
func (s *SweepService) Sweep(ctx context.Context, ttlMinutes, batchSize int) (*SweepResult, error) {
	ttl := ClampTTL(ttlMinutes)
	batch := clampBatch(batchSize)

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(ttl) * time.Minute)

	candidates, err := s.Repo.ListSweepCandidates(ctx, s.DB, cutoff, batch)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{TTLMinutes: ttl, Cutoff: cutoff, TotalChecked: len(candidates)}
	note := fmt.Sprintf("auto-abandoned by sweep (ttl %dm)", ttl)
	for _, rec := range candidates {
		err := s.Repo.MarkAbandoned(ctx, s.DB, rec.ID, appendNote(rec.Notes, note, now))
		switch {
		case err == nil:
			res.Updated++
			cartsSwept.Inc()
		case errors.Is(err, repo.ErrStaleRecord):
			// Another sweep or a fresh activity write got there first.
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
		}
	}

	if purged, perr := s.Repo.PurgeExpiredIdempotency(ctx, s.DB, now); perr == nil {
		res.PurgedKeys = purged
	}

	return res, nil
}

// Status reports, without side effects, the per-status record counts and
// how many records a sweep with the given TTL would transition right now.
func (s *SweepService) Status(ctx context.Context, ttlMinutes int) (repo.StatusCounts, error) {
	ttl := ClampTTL(ttlMinutes)
	cutoff := time.Now().UTC().Add(-time.Duration(ttl) * time.Minute)
	return s.Repo.CartStatusCounts(ctx, s.DB, cutoff)
}
