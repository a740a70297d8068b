package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-cart-recovery/internal/domain"
)

func newCartRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("cart_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newTrackingDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newCartRepoDB(t, &domain.CartTracking{}, &domain.CartItem{}, &domain.Product{}, &domain.IdempotencyKey{})
}

func strptr(s string) *string { return &s }

func seedCart(t *testing.T, db *gorm.DB, sessionID string, status domain.CartStatus, lastActivity time.Time) *domain.CartTracking {
	t.Helper()
	rec := &domain.CartTracking{
		SessionID:      sessionID,
		Status:         status,
		CartTotal:      decimal.NewFromInt(100),
		CustomerEmail:  strptr(sessionID + "@example.com"),
		LastActivityAt: lastActivity,
		Items: []domain.CartItem{
			{ProductID: 1, Quantity: 2},
		},
	}
	if err := CreateCart(context.Background(), db, rec); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return rec
}

func TestCreateCart_GeneratesIDAndTimestamps(t *testing.T) {
	db := newTrackingDB(t)

	rec := &domain.CartTracking{
		SessionID: "s1",
		Status:    domain.CartStatusActive,
		CartTotal: decimal.NewFromFloat(49.90),
	}
	if err := CreateCart(context.Background(), db, rec); err != nil {
		t.Fatalf("CreateCart: %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("expected generated UUID id")
	}
	if rec.LastActivityAt.IsZero() {
		t.Fatalf("expected defaulted LastActivityAt")
	}
}

func TestFindOpenCart_SkipsRecovered(t *testing.T) {
	db := newTrackingDB(t)
	now := time.Now().UTC()

	seedCart(t, db, "s1", domain.CartStatusRecovered, now)

	if _, err := FindOpenCart(context.Background(), db, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("recovered rows must not match open lookup, got %v", err)
	}

	active := seedCart(t, db, "s1", domain.CartStatusActive, now)
	got, err := FindOpenCart(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("FindOpenCart: %v", err)
	}
	if got.ID != active.ID {
		t.Fatalf("expected active row %s, got %s", active.ID, got.ID)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected preloaded items, got %d", len(got.Items))
	}
}

func TestFindOpenCart_MatchesAbandoned(t *testing.T) {
	db := newTrackingDB(t)
	rec := seedCart(t, db, "s2", domain.CartStatusAbandoned, time.Now().UTC())

	got, err := FindOpenCart(context.Background(), db, "s2")
	if err != nil || got.ID != rec.ID {
		t.Fatalf("abandoned rows should match open lookup: got=%v err=%v", got, err)
	}
}

func TestFindAnyCart_IncludesRecovered(t *testing.T) {
	db := newTrackingDB(t)
	rec := seedCart(t, db, "s3", domain.CartStatusRecovered, time.Now().UTC())

	got, err := FindAnyCart(context.Background(), db, "s3")
	if err != nil || got.ID != rec.ID {
		t.Fatalf("FindAnyCart should see recovered rows: got=%v err=%v", got, err)
	}

	if _, err := FindAnyCart(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}

func TestUpdateCart_ReplacesItemsAtomically(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	rec := seedCart(t, db, "s4", domain.CartStatusActive, time.Now().UTC())

	rec.CartTotal = decimal.NewFromInt(250)
	rec.Items = []domain.CartItem{
		{ProductID: 7, Quantity: 1},
		{ProductID: 9, Quantity: 3},
	}
	if err := UpdateCart(ctx, db, rec, true); err != nil {
		t.Fatalf("UpdateCart: %v", err)
	}

	got, err := GetCart(ctx, db, rec.ID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if !got.CartTotal.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("total not persisted: %s", got.CartTotal)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected replaced item set of 2, got %d", len(got.Items))
	}

	// replaceItems=false keeps the stored items untouched
	rec.Items = nil
	if err := UpdateCart(ctx, db, rec, false); err != nil {
		t.Fatalf("UpdateCart scalar-only: %v", err)
	}
	got, _ = GetCart(ctx, db, rec.ID)
	if len(got.Items) != 2 {
		t.Fatalf("scalar-only update must not touch items, got %d", len(got.Items))
	}
}

func TestDeleteCart_RemovesItemsAndIsIdempotent(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	rec := seedCart(t, db, "s5", domain.CartStatusActive, time.Now().UTC())

	if err := DeleteCart(ctx, db, rec.ID); err != nil {
		t.Fatalf("DeleteCart: %v", err)
	}
	if _, err := GetCart(ctx, db, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}
	var n int64
	db.Model(&domain.CartItem{}).Where("cart_id = ?", rec.ID).Count(&n)
	if n != 0 {
		t.Fatalf("items should be gone, %d left", n)
	}

	// Second delete is a no-op, not an error
	if err := DeleteCart(ctx, db, rec.ID); err != nil {
		t.Fatalf("repeat delete should be silent: %v", err)
	}
}

func TestSweepCandidates_FilterAndOrder(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	cutoff := now.Add(-30 * time.Minute)

	oldest := seedCart(t, db, "old1", domain.CartStatusActive, now.Add(-2*time.Hour))
	older := seedCart(t, db, "old2", domain.CartStatusActive, now.Add(-time.Hour))
	seedCart(t, db, "fresh", domain.CartStatusActive, now)
	seedCart(t, db, "gone", domain.CartStatusAbandoned, now.Add(-2*time.Hour))
	seedCart(t, db, "done", domain.CartStatusRecovered, now.Add(-2*time.Hour))

	got, err := ListSweepCandidates(ctx, db, cutoff, 50)
	if err != nil {
		t.Fatalf("ListSweepCandidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != oldest.ID || got[1].ID != older.ID {
		t.Fatalf("expected oldest-first ordering")
	}

	n, err := CountSweepCandidates(ctx, db, cutoff)
	if err != nil || n != 2 {
		t.Fatalf("CountSweepCandidates = %d, %v", n, err)
	}

	// Limit applies
	got, _ = ListSweepCandidates(ctx, db, cutoff, 1)
	if len(got) != 1 {
		t.Fatalf("limit ignored, got %d", len(got))
	}
}

func TestMarkAbandoned_GuardedTransition(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	rec := seedCart(t, db, "s6", domain.CartStatusActive, time.Now().UTC())

	if err := MarkAbandoned(ctx, db, rec.ID, "swept"); err != nil {
		t.Fatalf("MarkAbandoned: %v", err)
	}
	got, _ := GetCart(ctx, db, rec.ID)
	if got.Status != domain.CartStatusAbandoned || got.Notes != "swept" {
		t.Fatalf("transition not persisted: %+v", got)
	}

	// Second attempt hits the status guard
	if err := MarkAbandoned(ctx, db, rec.ID, "swept again"); !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord on repeat sweep, got %v", err)
	}

	// Unknown id is also stale, not found
	if err := MarkAbandoned(ctx, db, "nope", "x"); !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord for unknown id, got %v", err)
	}
}

func TestListRecoveryCandidates_Eligibility(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	gapCutoff := now.Add(-time.Hour)

	eligible := seedCart(t, db, "r1", domain.CartStatusAbandoned, now.Add(-2*time.Hour))

	// No email: out
	noEmail := seedCart(t, db, "r2", domain.CartStatusAbandoned, now.Add(-2*time.Hour))
	db.Model(&domain.CartTracking{}).Where("id = ?", noEmail.ID).Update("customer_email", nil)

	// Ladder exhausted: out
	maxed := seedCart(t, db, "r3", domain.CartStatusAbandoned, now.Add(-2*time.Hour))
	db.Model(&domain.CartTracking{}).Where("id = ?", maxed.ID).Update("reminder_stage", domain.MaxReminderStage)

	// Notified too recently: out
	recent := seedCart(t, db, "r4", domain.CartStatusAbandoned, now.Add(-2*time.Hour))
	db.Model(&domain.CartTracking{}).Where("id = ?", recent.ID).Update("recovery_email_sent_at", now.Add(-10*time.Minute))

	// Still active: out
	seedCart(t, db, "r5", domain.CartStatusActive, now.Add(-2*time.Hour))

	got, err := ListRecoveryCandidates(ctx, db, gapCutoff, 50)
	if err != nil {
		t.Fatalf("ListRecoveryCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != eligible.ID {
		t.Fatalf("expected only the eligible record, got %d", len(got))
	}
	if len(got[0].Items) != 1 {
		t.Fatalf("expected preloaded items")
	}

	// A record notified before the gap cutoff becomes eligible again
	db.Model(&domain.CartTracking{}).Where("id = ?", recent.ID).Update("recovery_email_sent_at", now.Add(-2*time.Hour))
	got, _ = ListRecoveryCandidates(ctx, db, gapCutoff, 50)
	if len(got) != 2 {
		t.Fatalf("expected re-eligible record after gap, got %d", len(got))
	}
}

func TestAdvanceReminderStage_MonotonicGuard(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	rec := seedCart(t, db, "s7", domain.CartStatusAbandoned, time.Now().UTC())
	sentAt := time.Now().UTC()

	if err := AdvanceReminderStage(ctx, db, rec.ID, 1, sentAt, "stage 1 sent"); err != nil {
		t.Fatalf("AdvanceReminderStage: %v", err)
	}
	got, _ := GetCart(ctx, db, rec.ID)
	if got.ReminderStage != 1 || got.RecoveryEmailSentAt == nil {
		t.Fatalf("stage not persisted: %+v", got)
	}

	// A slower overlapping run trying the same target stage loses
	if err := AdvanceReminderStage(ctx, db, rec.ID, 1, sentAt, "dup"); !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord on duplicate advance, got %v", err)
	}

	// Recovered rows never advance
	db.Model(&domain.CartTracking{}).Where("id = ?", rec.ID).Update("status", domain.CartStatusRecovered)
	if err := AdvanceReminderStage(ctx, db, rec.ID, 2, sentAt, "x"); !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord after resolution, got %v", err)
	}
}

func TestTouchActivity_ReactivatesAndRefreshes(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	rec := seedCart(t, db, "s8", domain.CartStatusAbandoned, time.Now().UTC().Add(-time.Hour))

	at := time.Now().UTC()
	if err := TouchActivity(ctx, db, rec.ID, at, "heartbeat"); err != nil {
		t.Fatalf("TouchActivity: %v", err)
	}
	got, _ := GetCart(ctx, db, rec.ID)
	if got.Status != domain.CartStatusActive {
		t.Fatalf("heartbeat should force active, got %s", got.Status)
	}
	if got.LastActivityAt.Unix() != at.Unix() {
		t.Fatalf("liveness not refreshed: %v vs %v", got.LastActivityAt, at)
	}

	if err := TouchActivity(ctx, db, "missing", at, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkRecovered_NoStatusGuard(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()

	for _, status := range []domain.CartStatus{domain.CartStatusActive, domain.CartStatusAbandoned, domain.CartStatusRecovered} {
		rec := seedCart(t, db, "mr-"+string(status), status, time.Now().UTC())
		if err := MarkRecovered(ctx, db, rec.ID, "resolved"); err != nil {
			t.Fatalf("MarkRecovered from %s: %v", status, err)
		}
		got, _ := GetCart(ctx, db, rec.ID)
		if got.Status != domain.CartStatusRecovered {
			t.Fatalf("expected recovered, got %s", got.Status)
		}
	}

	if err := MarkRecovered(ctx, db, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListCartsPage_And_Count(t *testing.T) {
	db := newTrackingDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCart(t, db, "p1", domain.CartStatusActive, now.Add(-3*time.Minute))
	seedCart(t, db, "p2", domain.CartStatusAbandoned, now.Add(-2*time.Minute))
	newest := seedCart(t, db, "p3", domain.CartStatusAbandoned, now.Add(-1*time.Minute))

	n, err := CountCarts(ctx, db, "")
	if err != nil || n != 3 {
		t.Fatalf("CountCarts all = %d, %v", n, err)
	}
	n, _ = CountCarts(ctx, db, string(domain.CartStatusAbandoned))
	if n != 2 {
		t.Fatalf("CountCarts abandoned = %d", n)
	}

	page, err := ListCartsPage(ctx, db, string(domain.CartStatusAbandoned), 0, 10)
	if err != nil {
		t.Fatalf("ListCartsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != newest.ID {
		t.Fatalf("expected newest-first abandoned page, got %d rows", len(page))
	}

	// Offset past the end
	page, _ = ListCartsPage(ctx, db, "", 10, 10)
	if len(page) != 0 {
		t.Fatalf("expected empty page past end, got %d", len(page))
	}
}
