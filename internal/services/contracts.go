// Package services – collaborator and repository contracts.
//
// The services in this package depend on narrow interfaces rather than the
// concrete repo package; the HTTP wiring layer adapts the repository free
// functions onto these contracts, and tests substitute stubs.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
	"github.com/tbourn/go-cart-recovery/internal/repo"
)

// CartRepo is the persistence contract required by CartService.
type CartRepo interface {
	// FindOpenCart returns the non-recovered record for a session.
	FindOpenCart(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CartTracking, error)
	// FindAnyCart returns the most recent record regardless of status.
	FindAnyCart(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CartTracking, error)
	// GetCart fetches a record by primary key.
	GetCart(ctx context.Context, db *gorm.DB, id string) (*domain.CartTracking, error)
	// CreateCart inserts a record with its items.
	CreateCart(ctx context.Context, db *gorm.DB, rec *domain.CartTracking) error
	// UpdateCart persists scalar fields, optionally replacing the item set.
	UpdateCart(ctx context.Context, db *gorm.DB, rec *domain.CartTracking, replaceItems bool) error
	// DeleteCart hard-deletes a record and its items.
	DeleteCart(ctx context.Context, db *gorm.DB, id string) error
	// TouchActivity refreshes liveness and forces status back to active.
	TouchActivity(ctx context.Context, db *gorm.DB, id string, at time.Time, notes string) error
	// MarkRecovered terminally resolves a record.
	MarkRecovered(ctx context.Context, db *gorm.DB, id, notes string) error
	// CountCarts counts records, optionally filtered by status.
	CountCarts(ctx context.Context, db *gorm.DB, status string) (int64, error)
	// ListCartsPage returns one page of records for operator display.
	ListCartsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.CartTracking, error)
}

// SweepRepo is the persistence contract required by SweepService.
type SweepRepo interface {
	ListSweepCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.CartTracking, error)
	CountSweepCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
	MarkAbandoned(ctx context.Context, db *gorm.DB, id, notes string) error
	CartStatusCounts(ctx context.Context, db *gorm.DB, cutoff time.Time) (repo.StatusCounts, error)
	PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// RecoveryRepo is the persistence contract required by RecoveryService.
type RecoveryRepo interface {
	ListRecoveryCandidates(ctx context.Context, db *gorm.DB, gapCutoff time.Time, limit int) ([]domain.CartTracking, error)
	AdvanceReminderStage(ctx context.Context, db *gorm.DB, id string, next int, sentAt time.Time, notes string) error
}

// Catalog is the product catalog collaborator. The catalog itself is an
// external system; the engine only resolves item references against its
// numeric key space.
type Catalog interface {
	// ProductsByID returns the known products among ids, keyed by id.
	// Unknown ids are absent from the map, never an error.
	ProductsByID(ctx context.Context, ids []uint) (map[uint]domain.Product, error)
}

// Profile is the slice of an authenticated user's account the recorder
// cares about when resolving contact info.
type Profile struct {
	Email string
	Name  string
	Phone string
}

// ProfileDirectory is the user-account collaborator. Explicit payload
// values always win; the directory only backfills fields the shopper did
// not type into the checkout form.
type ProfileDirectory interface {
	// Lookup returns the profile for userID. A missing user is not an
	// error: return a zero Profile.
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// NoDirectory is a ProfileDirectory for deployments without an account
// system wired: every lookup resolves to an empty profile.
type NoDirectory struct{}

// Lookup implements ProfileDirectory.
func (NoDirectory) Lookup(context.Context, string) (Profile, error) { return Profile{}, nil }
