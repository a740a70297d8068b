// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries
// backing the read-only sweep-status endpoint. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
)

// StatusCounts is a snapshot of the tracking table broken down by
// lifecycle state, plus the number of active rows the sweep filter would
// transition at the given cutoff.
type StatusCounts struct {
	Active       int64 `json:"active"`
	Abandoned    int64 `json:"abandoned"`
	Recovered    int64 `json:"recovered"`
	PendingSweep int64 `json:"pending_sweep"`
}

// CartStatusCounts returns per-status row counts and the would-be sweep
// count for cutoff. Purely observational: no rows are touched.
func CartStatusCounts(ctx context.Context, db *gorm.DB, cutoff time.Time) (StatusCounts, error) {
	var out StatusCounts

	type row struct {
		Status domain.CartStatus
		N      int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.CartTracking{}).
		Select("status, COUNT(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return out, err
	}
	for _, r := range rows {
		switch r.Status {
		case domain.CartStatusActive:
			out.Active = r.N
		case domain.CartStatusAbandoned:
			out.Abandoned = r.N
		case domain.CartStatusRecovered:
			out.Recovered = r.N
		}
	}

	pending, err := CountSweepCandidates(ctx, db, cutoff)
	if err != nil {
		return out, err
	}
	out.PendingSweep = pending
	return out, nil
}
