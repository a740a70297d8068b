// Package services – CartService
//
// This file implements the CartService, which owns the synchronous half of
// the cart lifecycle: recording activity snapshots, refreshing liveness
// heartbeats, and manual operator resolution. It enforces the engine's
// persistence gates (zero-cart policy, contact-info gate, one open record
// per session) and coordinates repository operations.
//
// Service-level errors (e.g. ErrCartNotFound, ErrCartNotActive) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
)

// CartService provides the recorder, heartbeat, and manual resolution
// use-cases. All methods are context-aware and safe for concurrent use:
// state lives entirely in the record store, and the session-scoped upsert
// filter makes concurrent writes for the same session converge on
// last-write-wins.
type CartService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the cart repository used by this service.
	Repo CartRepo
	// Catalog resolves item references to the catalog's numeric key space.
	Catalog Catalog
	// Profiles backfills contact info for authenticated shoppers.
	Profiles ProfileDirectory
}

// RawItem is an un-normalized inbound line item. The id arrives as a
// string because storefront payloads are loosely typed; normalization
// parses it into the catalog key space and silently drops what does not
// resolve.
type RawItem struct {
	ID       string
	Quantity int
}

// RecordInput is the validated payload of one activity signal.
type RecordInput struct {
	SessionID string
	UserID    string

	// Items is the cart snapshot. HasItems distinguishes "field absent"
	// (merge: keep stored items) from "explicitly empty" (cart cleared).
	Items    []RawItem
	HasItems bool

	// Total is the client-side value snapshot; nil means not provided, in
	// which case it is derived from catalog prices when items are present.
	Total *decimal.Decimal

	CustomerEmail *string
	CustomerName  *string
	CustomerPhone *string

	// FinalUpdate and PotentialAbandonment mark pre-emptive abandonment
	// signals (checkout exit, page unload): the record is persisted
	// directly in the abandoned state.
	FinalUpdate          bool
	PotentialAbandonment bool
}

// RecordOutcome reports what the recorder did with the signal.
type RecordOutcome struct {
	// Deleted is true when the zero-cart policy or the contact-info gate
	// removed (or refused to create) the record. Still a success: an
	// untrackable cart simply has nothing to recover.
	Deleted bool
	// Record is the persisted state; nil when Deleted.
	Record *domain.CartTracking
}

// Record processes one cart activity signal. See the package doc for the
// full contract; in short:
//
//   - at least one of items/total must be present (ErrMissingCartData),
//   - items are normalized against the catalog, invalid ones dropped,
//   - an empty or valueless resulting cart deletes any open record,
//   - a cart with no resolvable contact info deletes any open record,
//   - otherwise the open record for the session is merged (only provided
//     fields overwrite) or created, with lastActivityAt = now and the
//     reminder stage reset to 0. Final/potential-abandonment flags land
//     the record directly in the abandoned state with an audit note.
func (s *CartService) Record(ctx context.Context, in RecordInput) (*RecordOutcome, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, ErrMissingSession
	}
	if !in.HasItems && in.Total == nil {
		return nil, ErrMissingCartData
	}

	now := time.Now().UTC()

	existing, err := s.Repo.FindOpenCart(ctx, s.DB, in.SessionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Normalize items into the catalog key space when provided.
	var (
		items   []domain.CartItem
		catalog map[uint]domain.Product
		haveCat bool
		derived decimal.Decimal
	)
	if in.HasItems {
		ids := make([]uint, 0, len(in.Items))
		parsed := make([]domain.CartItem, 0, len(in.Items))
		for _, raw := range in.Items {
			if raw.Quantity <= 0 {
				continue
			}
			id, perr := strconv.ParseUint(strings.TrimSpace(raw.ID), 10, 64)
			if perr != nil || id == 0 {
				continue
			}
			parsed = append(parsed, domain.CartItem{ProductID: uint(id), Quantity: raw.Quantity})
			ids = append(ids, uint(id))
		}
		catalog, err = s.Catalog.ProductsByID(ctx, ids)
		if err != nil {
			return nil, err
		}
		haveCat = true
		for _, it := range parsed {
			p, ok := catalog[it.ProductID]
			if !ok {
				continue
			}
			items = append(items, it)
			derived = derived.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	// Resulting state after the merge, used by the persistence gates.
	resultItems := items
	if !in.HasItems && existing != nil {
		resultItems = existing.Items
	}
	var resultTotal decimal.Decimal
	switch {
	case in.Total != nil:
		resultTotal = *in.Total
	case in.HasItems && haveCat:
		resultTotal = derived
	case existing != nil:
		resultTotal = existing.CartTotal
	}

	// Zero-cart policy: emptied or valueless carts are not tracked.
	if len(resultItems) == 0 || resultTotal.LessThanOrEqual(decimal.Zero) {
		return s.dropExisting(ctx, existing)
	}

	email, name, phone := s.resolveContact(ctx, in, existing)
	if email == nil && name == nil && phone == nil {
		// Contact-info gate: a fully anonymous cart cannot be recovered.
		return s.dropExisting(ctx, existing)
	}

	status := domain.CartStatusActive
	note := "activity recorded"
	switch {
	case in.FinalUpdate:
		status = domain.CartStatusAbandoned
		note = "pre-emptive abandonment: final update signal"
	case in.PotentialAbandonment:
		status = domain.CartStatusAbandoned
		note = "pre-emptive abandonment: page-unload signal"
	}

	if existing != nil {
		existing.Status = status
		existing.CartTotal = resultTotal
		existing.LastActivityAt = now
		existing.ReminderStage = 0
		existing.CustomerEmail = email
		existing.CustomerName = name
		existing.CustomerPhone = phone
		if in.UserID != "" {
			existing.UserID = &in.UserID
		}
		existing.Notes = appendNote(existing.Notes, note, now)
		if in.HasItems {
			existing.Items = items
		}
		if err := s.Repo.UpdateCart(ctx, s.DB, existing, in.HasItems); err != nil {
			return nil, err
		}
		return &RecordOutcome{Record: existing}, nil
	}

	rec := &domain.CartTracking{
		SessionID:      in.SessionID,
		Status:         status,
		CartTotal:      resultTotal,
		CustomerEmail:  email,
		CustomerName:   name,
		CustomerPhone:  phone,
		LastActivityAt: now,
		ReminderStage:  0,
		Notes:          appendNote("", note, now),
		Items:          items,
	}
	if in.UserID != "" {
		rec.UserID = &in.UserID
	}
	if err := s.Repo.CreateCart(ctx, s.DB, rec); err != nil {
		return nil, err
	}
	return &RecordOutcome{Record: rec}, nil
}

// dropExisting implements the idempotent deletion half of the persistence
// gates: remove the open record when one exists, succeed either way.
func (s *CartService) dropExisting(ctx context.Context, existing *domain.CartTracking) (*RecordOutcome, error) {
	if existing != nil {
		if err := s.Repo.DeleteCart(ctx, s.DB, existing.ID); err != nil {
			return nil, err
		}
	}
	return &RecordOutcome{Deleted: true}, nil
}

// resolveContact applies the contact precedence: explicit payload value,
// then the stored record's value, then the authenticated profile. A
// directory failure downgrades to "no profile" rather than failing the
// signal.
func (s *CartService) resolveContact(ctx context.Context, in RecordInput, existing *domain.CartTracking) (email, name, phone *string) {
	email = cleanPtr(in.CustomerEmail)
	name = cleanPtr(in.CustomerName)
	phone = cleanPtr(in.CustomerPhone)

	if existing != nil {
		if email == nil {
			email = existing.CustomerEmail
		}
		if name == nil {
			name = existing.CustomerName
		}
		if phone == nil {
			phone = existing.CustomerPhone
		}
	}

	if in.UserID != "" && (email == nil || name == nil || phone == nil) {
		if prof, err := s.Profiles.Lookup(ctx, in.UserID); err == nil {
			if email == nil {
				email = cleanPtr(&prof.Email)
			}
			if name == nil {
				name = cleanPtr(&prof.Name)
			}
			if phone == nil {
				phone = cleanPtr(&prof.Phone)
			}
		}
	}
	return email, name, phone
}

// HeartbeatResult reports the outcome of a liveness ping.
type HeartbeatResult struct {
	CartID         string            `json:"id"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	Status         domain.CartStatus `json:"status"`
	// Notice is set when the sweeper already abandoned the cart; the ping
	// is acknowledged without reviving the record.
	Notice string `json:"notice,omitempty"`
}

// Heartbeat refreshes the liveness timestamp of the session's active cart.
//
//   - Active record: lastActivityAt = now, status forced back to active
//     (guards the narrow race with a concurrent sweep), audit note added.
//   - Abandoned record: acknowledged with a notice and no mutation; the
//     client and the sweeper run independently, so a heartbeat arriving
//     after the sweep fired is expected, not an error.
//   - Recovered record: ErrCartNotActive.
//   - No record at all: ErrCartNotFound. Heartbeats never create records.
func (s *CartService) Heartbeat(ctx context.Context, sessionID string) (*HeartbeatResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSession
	}

	now := time.Now().UTC()

	rec, err := s.Repo.FindOpenCart(ctx, s.DB, sessionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		any, aerr := s.Repo.FindAnyCart(ctx, s.DB, sessionID)
		if aerr != nil {
			if errors.Is(aerr, gorm.ErrRecordNotFound) {
				return nil, ErrCartNotFound
			}
			return nil, aerr
		}
		if any.Status == domain.CartStatusRecovered {
			return nil, ErrCartNotActive
		}
		return nil, ErrCartNotFound
	}

	if rec.Status == domain.CartStatusAbandoned {
		return &HeartbeatResult{
			CartID:         rec.ID,
			LastActivityAt: rec.LastActivityAt,
			Status:         rec.Status,
			Notice:         "cart already marked abandoned; heartbeat acknowledged",
		}, nil
	}

	notes := appendNote(rec.Notes, "heartbeat received", now)
	if err := s.Repo.TouchActivity(ctx, s.DB, rec.ID, now, notes); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return &HeartbeatResult{
		CartID:         rec.ID,
		LastActivityAt: now,
		Status:         domain.CartStatusActive,
	}, nil
}

// MarkRecovered terminally resolves a record on operator request. The
// override is unconditional: whatever state the record is in, it becomes
// recovered and leaves the reminder pipeline for good.
func (s *CartService) MarkRecovered(ctx context.Context, id, operatorNotes string) error {
	rec, err := s.Repo.GetCart(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		return err
	}

	note := "manually marked recovered"
	if operatorNotes = strings.TrimSpace(operatorNotes); operatorNotes != "" {
		note = fmt.Sprintf("%s: %s", note, operatorNotes)
	}
	err = s.Repo.MarkRecovered(ctx, s.DB, id, appendNote(rec.Notes, note, time.Now().UTC()))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartNotFound
	}
	return err
}

// ListPage returns a page of tracking records for operator display,
// optionally filtered by status (empty means all). It applies defaults
// for invalid page/pageSize and returns the total count.
func (s *CartService) ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.CartTracking, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountCarts(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CartTracking{}, 0, nil
	}

	items, err := s.Repo.ListCartsPage(ctx, s.DB, status, offset, pageSize)
	return items, total, err
}

// Delete hard-deletes a record (administrative cleanup only).
func (s *CartService) Delete(ctx context.Context, id string) error {
	if _, err := s.Repo.GetCart(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		return err
	}
	return s.Repo.DeleteCart(ctx, s.DB, id)
}

// appendNote adds a timestamped line to the audit trail. The trail is
// append-only in practice; nothing ever rewrites earlier lines.
func appendNote(existing, line string, at time.Time) string {
	entry := fmt.Sprintf("[%s] %s", at.Format("2006-01-02 15:04:05"), line)
	if existing == "" {
		return entry
	}
	return existing + "\n" + entry
}

// cleanPtr trims the value and collapses blank strings to nil so that
// "provided but empty" never counts as resolvable contact info.
func cleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
