// Package services – RecoveryService
//
// This file implements the recovery scheduler: the time-triggered batch
// job that escalates abandoned carts through the staged reminder ladder.
// Stage timing is fixed (30 minutes, 2 hours, 24 hours after the last
// activity) and a minimum gap between sends prevents stage collisions
// when the external trigger fires more often than the stage intervals.
//
// Duplicate-send protection rests on the reminder_stage counter and the
// gap check. Two scheduler runs overlapping inside the same gap window
// could still both read stage N before either writes N+1; the guarded
// UPDATE narrows that race to the dispatch itself. The residual window is
// an accepted risk, documented in DESIGN.md, not eliminated here.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
	"github.com/tbourn/go-cart-recovery/internal/notify"
	"github.com/tbourn/go-cart-recovery/internal/repo"
)

// stageDelayMinutes is the fixed escalation schedule: stage N is eligible
// once the cart has been quiet for stageDelayMinutes[N-1] minutes.
var stageDelayMinutes = [domain.MaxReminderStage]int{30, 120, 1440}

// Recovery batch bounds and the default inter-notification gap.
const (
	MaxRecoveryBatch     = 50
	DefaultRecoveryBatch = 50
	DefaultRecoveryGap   = time.Hour
)

// RecoveryService dispatches staged reminder emails for abandoned carts.
type RecoveryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the recovery repository used by this service.
	Repo RecoveryRepo
	// Catalog rebuilds display data for the stored item references.
	Catalog Catalog
	// Mailer is the email delivery collaborator.
	Mailer notify.Mailer

	// MinGap is the minimum time between two notifications for the same
	// record. Zero means DefaultRecoveryGap.
	MinGap time.Duration
	// BatchSize caps records examined per run. Zero means
	// DefaultRecoveryBatch; values above MaxRecoveryBatch are clamped.
	BatchSize int

	// DiscountCode and DiscountPercent configure the stage-3 incentive.
	// An empty code disables it.
	DiscountCode    string
	DiscountPercent int
}

// RecoveryResult aggregates one scheduler invocation.
type RecoveryResult struct {
	Processed  int      `json:"processed"`
	EmailsSent int      `json:"emails_sent"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// Run examines up to BatchSize eligible abandoned records and dispatches
// the next due reminder for each. A record is skipped, not failed, when
// its next stage is not yet due or when none of its stored items resolve
// to a displayable catalog product. Dispatch and persistence failures are
// isolated per record and surfaced in Errors.
func (s *RecoveryService) Run(ctx context.Context) (*RecoveryResult, error) {
	gap := s.MinGap
	if gap <= 0 {
		gap = DefaultRecoveryGap
	}
	batch := s.BatchSize
	if batch <= 0 || batch > MaxRecoveryBatch {
		batch = DefaultRecoveryBatch
	}

	now := time.Now().UTC()
	candidates, err := s.Repo.ListRecoveryCandidates(ctx, s.DB, now.Add(-gap), batch)
	if err != nil {
		return nil, err
	}

	res := &RecoveryResult{Processed: len(candidates)}
	for _, rec := range candidates {
		sent, serr := s.dispatch(ctx, &rec, now)
		switch {
		case serr != nil:
			reminderErrors.Inc()
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rec.ID, serr))
		case sent:
			res.EmailsSent++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

// dispatch sends the next-due reminder for one record. Returns (false,
// nil) when the record is simply not due or not displayable yet.
func (s *RecoveryService) dispatch(ctx context.Context, rec *domain.CartTracking, now time.Time) (bool, error) {
	targetStage := rec.ReminderStage + 1
	if targetStage > domain.MaxReminderStage {
		return false, nil
	}

	sinceAbandonment := now.Sub(rec.LastActivityAt)
	required := time.Duration(stageDelayMinutes[targetStage-1]) * time.Minute
	if sinceAbandonment < required {
		// Not yet due; re-evaluated on the next invocation.
		return false, nil
	}

	lines, total, err := s.rebuildLines(ctx, rec)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		// Nothing displayable to show; likely delisted products.
		return false, nil
	}

	in := notify.ReminderInput{
		Stage:        targetStage,
		CustomerName: strPtrVal(rec.CustomerName),
		Email:        strPtrVal(rec.CustomerEmail),
		Total:        total,
		Lines:        lines,
	}
	if targetStage == domain.MaxReminderStage && s.DiscountCode != "" {
		in.Discount = &notify.Discount{Code: s.DiscountCode, Percent: s.DiscountPercent}
	}

	if err := s.Mailer.Send(ctx, notify.BuildReminder(in)); err != nil {
		return false, err
	}

	note := fmt.Sprintf("stage %d recovery email sent", targetStage)
	err = s.Repo.AdvanceReminderStage(ctx, s.DB, rec.ID, targetStage,
		now, appendNote(rec.Notes, note, now))
	if errors.Is(err, repo.ErrStaleRecord) {
		// A concurrent run advanced the record between our read and write;
		// its email won, ours was the duplicate the gap check exists for.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	remindersSent.WithLabelValues(strconv.Itoa(targetStage)).Inc()
	return true, nil
}

// rebuildLines joins the stored item references against the catalog to
// recover display name and price. Items whose product vanished from the
// catalog are dropped; the reminder total falls back to the recorded cart
// total so a partial join never misquotes the shopper.
func (s *RecoveryService) rebuildLines(ctx context.Context, rec *domain.CartTracking) ([]notify.ReminderLine, decimal.Decimal, error) {
	ids := make([]uint, 0, len(rec.Items))
	for _, it := range rec.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Catalog.ProductsByID(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	lines := make([]notify.ReminderLine, 0, len(rec.Items))
	for _, it := range rec.Items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, notify.ReminderLine{
			Name:     p.Name,
			Quantity: it.Quantity,
			Price:    p.Price,
			ImageURL: p.ImageURL,
		})
	}
	return lines, rec.CartTotal, nil
}

func strPtrVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
