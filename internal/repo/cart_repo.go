// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CartTracking model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The upsert-by-filter contract deserves a note: there is no version or
// etag column on cart_tracking. Concurrent writers for the same session
// converge on last-write-wins, which is the intended business outcome for
// activity signals. Batch jobs rely on guarded UPDATE filters
// (status = 'active', reminder_stage = N) so overlapping runs are
// self-excluding once the first writer lands.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleRecord is returned by guarded updates when the row no longer
// matches the expected filter (already swept, already advanced, already
// recovered). Callers treat it as "someone else got there first".
var ErrStaleRecord = errors.New("record no longer matches expected state")

// FindOpenCart returns the single non-recovered tracking record for the
// session, items preloaded, or ErrNotFound. Recovered rows are terminal
// history and never match.
func FindOpenCart(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CartTracking, error) {
	var rec domain.CartTracking
	err := db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ? AND status <> ?", sessionID, domain.CartStatusRecovered).
		Order("updated_at desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindAnyCart returns the most recent tracking record for the session in
// any status, including recovered. The heartbeat path uses it to tell "no
// record ever existed" (404) apart from "the cart already resolved"
// (business rejection).
func FindAnyCart(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CartTracking, error) {
	var rec domain.CartTracking
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("updated_at desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetCart fetches a tracking record by primary key, items preloaded, or
// ErrNotFound.
func GetCart(ctx context.Context, db *gorm.DB, id string) (*domain.CartTracking, error) {
	var rec domain.CartTracking
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateCart inserts a new tracking record together with its items. A UUID
// primary key is generated when the caller did not set one, and timestamps
// default to UTC now.
func CreateCart(ctx context.Context, db *gorm.DB, rec *domain.CartTracking) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.LastActivityAt.IsZero() {
		rec.LastActivityAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// UpdateCart persists the record's scalar fields and, when replaceItems is
// true, swaps the item set atomically (delete + insert inside one
// transaction). Items are keyed by the parent cart id, so replacement is
// session-scoped and safe under concurrent calls for different sessions.
func UpdateCart(ctx context.Context, db *gorm.DB, rec *domain.CartTracking, replaceItems bool) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.CartTracking{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"session_id":             rec.SessionID,
				"user_id":                rec.UserID,
				"status":                 rec.Status,
				"cart_total":             rec.CartTotal,
				"customer_email":         rec.CustomerEmail,
				"customer_name":          rec.CustomerName,
				"customer_phone":         rec.CustomerPhone,
				"last_activity_at":       rec.LastActivityAt,
				"reminder_stage":         rec.ReminderStage,
				"recovery_email_sent_at": rec.RecoveryEmailSentAt,
				"notes":                  rec.Notes,
			}).Error; err != nil {
			return err
		}
		if !replaceItems {
			return nil
		}
		if err := tx.Where("cart_id = ?", rec.ID).Delete(&domain.CartItem{}).Error; err != nil {
			return err
		}
		for i := range rec.Items {
			rec.Items[i].ID = 0
			rec.Items[i].CartID = rec.ID
		}
		if len(rec.Items) == 0 {
			return nil
		}
		return tx.Create(&rec.Items).Error
	})
}

// DeleteCart hard-deletes a tracking record and its items. Deleting a row
// that is already gone is not an error; the recorder's zero-cart policy is
// idempotent by design.
func DeleteCart(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", id).Delete(&domain.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.CartTracking{}).Error
	})
}

// ListSweepCandidates returns up to limit active records whose last
// activity predates cutoff, oldest first. The same filter guards the
// subsequent MarkAbandoned update, so concurrent sweeps are self-excluding.
func ListSweepCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.CartTracking, error) {
	var out []domain.CartTracking
	err := db.WithContext(ctx).
		Where("status = ? AND last_activity_at < ?", domain.CartStatusActive, cutoff).
		Order("last_activity_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountSweepCandidates reports how many records the sweep filter would
// currently match, without mutating anything.
func CountSweepCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.CartTracking{}).
		Where("status = ? AND last_activity_at < ?", domain.CartStatusActive, cutoff).
		Count(&n).Error
	return n, err
}

// MarkAbandoned flips an active record to abandoned and appends the audit
// note. The status guard makes the transition idempotent: when another
// sweep (or a concurrent activity write) already moved the row,
// ErrStaleRecord is returned and nothing changes.
func MarkAbandoned(ctx context.Context, db *gorm.DB, id, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.CartTracking{}).
		Where("id = ? AND status = ?", id, domain.CartStatusActive).
		Updates(map[string]any{
			"status": domain.CartStatusAbandoned,
			"notes":  notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}

// ListRecoveryCandidates returns up to limit abandoned records that have a
// customer email, have not exhausted the reminder ladder, and were last
// notified before gapCutoff (or never). Items are preloaded so the caller
// can rebuild the email line items.
func ListRecoveryCandidates(ctx context.Context, db *gorm.DB, gapCutoff time.Time, limit int) ([]domain.CartTracking, error) {
	var out []domain.CartTracking
	err := db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", domain.CartStatusAbandoned).
		Where("customer_email IS NOT NULL AND customer_email <> ''").
		Where("reminder_stage < ?", domain.MaxReminderStage).
		Where("recovery_email_sent_at IS NULL OR recovery_email_sent_at < ?", gapCutoff).
		Order("last_activity_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AdvanceReminderStage records a dispatched notification: stage moves to
// next and the sent timestamp is set. The reminder_stage guard keeps the
// counter monotonic when scheduler runs overlap; a row already advanced by
// a faster run yields ErrStaleRecord.
func AdvanceReminderStage(ctx context.Context, db *gorm.DB, id string, next int, sentAt time.Time, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.CartTracking{}).
		Where("id = ? AND status = ? AND reminder_stage < ?", id, domain.CartStatusAbandoned, next).
		Updates(map[string]any{
			"reminder_stage":         next,
			"recovery_email_sent_at": sentAt,
			"notes":                  notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}

// TouchActivity refreshes the liveness timestamp of a record and forces it
// back to active. Used by the heartbeat path, which must win a race with a
// sweeper that fired between the shopper's last signal and this ping.
func TouchActivity(ctx context.Context, db *gorm.DB, id string, at time.Time, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.CartTracking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           domain.CartStatusActive,
			"last_activity_at": at,
			"notes":            notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCarts returns the number of tracking records, optionally filtered
// by status ("" means all).
func CountCarts(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.CartTracking{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListCartsPage returns one page of tracking records, most recently active
// first, optionally filtered by status ("" means all). Items are preloaded
// for operator display.
func ListCartsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.CartTracking, error) {
	q := db.WithContext(ctx).Preload("Items")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.CartTracking
	err := q.Order("last_activity_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkRecovered terminally resolves a record. No status guard: operators
// may force-resolve from any state, and a second call converges on the
// same terminal row.
func MarkRecovered(ctx context.Context, db *gorm.DB, id, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.CartTracking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": domain.CartStatusRecovered,
			"notes":  notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
