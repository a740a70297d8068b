// Cart signal HTTP handlers.
//
// This file exposes the client-facing endpoints of the engine:
//   - POST /cart/activity   (record a cart snapshot)
//   - POST /cart/heartbeat  (refresh liveness of an active cart)
//
// Handlers are transport-thin: they validate input, resolve the session
// identity, call application services, and translate results into HTTP
// responses. Storefront payloads are loosely typed, so binding is
// deliberately permissive (see FlexibleID) and the strict gates live in
// the service layer.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-cart-recovery/internal/domain"
	"github.com/tbourn/go-cart-recovery/internal/http/middleware"
	"github.com/tbourn/go-cart-recovery/internal/repo"
	"github.com/tbourn/go-cart-recovery/internal/services"
	"github.com/tbourn/go-cart-recovery/internal/session"
)

//
// Service contracts (context-aware)
//

// CartService defines the synchronous cart operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CartService interface {
	// Record processes one activity snapshot for a session.
	Record(ctx context.Context, in services.RecordInput) (*services.RecordOutcome, error)
	// Heartbeat refreshes liveness of the session's active cart.
	Heartbeat(ctx context.Context, sessionID string) (*services.HeartbeatResult, error)
	// MarkRecovered terminally resolves a record (operator override).
	MarkRecovered(ctx context.Context, id, notes string) error
	// ListPage returns a page of records and the total count.
	ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.CartTracking, int64, error)
	// Delete hard-deletes a record (administrative cleanup).
	Delete(ctx context.Context, id string) error
}

// SweepService defines the abandonment sweep operations consumed by the
// jobs endpoints.
type SweepService interface {
	// Sweep transitions stale active carts to abandoned.
	Sweep(ctx context.Context, ttlMinutes, batchSize int) (*services.SweepResult, error)
	// Status reports per-status counts without side effects.
	Status(ctx context.Context, ttlMinutes int) (repo.StatusCounts, error)
}

// RecoveryService defines the reminder scheduler operation consumed by the
// jobs endpoints.
type RecoveryService interface {
	// Run dispatches due reminder notifications for abandoned carts.
	Run(ctx context.Context) (*services.RecoveryResult, error)
}

// IdempotencyStore persists activity replay records. Optional: a nil store
// disables replay detection without affecting normal processing.
type IdempotencyStore interface {
	Get(ctx context.Context, sessionID, key string, now time.Time) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, sessionID, key, cartID string, status int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for cart signals, batch jobs, and
// manual resolution. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	cartSvc     CartService
	sweepSvc    SweepService
	recoverySvc RecoveryService
	idemStore   IdempotencyStore

	cookieName  string
	cookieTTL   time.Duration
	jobDefaults JobDefaults
}

// New constructs a Handlers instance bound to the given services. The
// idempotency store may be nil.
func New(cartSvc CartService, sweepSvc SweepService, recoverySvc RecoveryService, idemStore IdempotencyStore, cookieName string, cookieTTL time.Duration, jobs JobDefaults) *Handlers {
	if cookieName == "" {
		cookieName = session.DefaultCookieName
	}
	if cookieTTL <= 0 {
		cookieTTL = session.DefaultCookieTTL
	}
	if jobs.TTLMinutes <= 0 {
		jobs.TTLMinutes = services.DefaultTTLMinutes
	}
	return &Handlers{
		cartSvc:     cartSvc,
		sweepSvc:    sweepSvc,
		recoverySvc: recoverySvc,
		idemStore:   idemStore,
		cookieName:  cookieName,
		cookieTTL:   cookieTTL,
		jobDefaults: jobs,
	}
}

// userID extracts the authenticated user id from Gin context (set by
// upstream auth middleware). If absent, it falls back to "X-User-ID"
// header (storefront BFF and tests use it). Anonymous shoppers are the
// norm here, so the empty string is a valid result.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// FlexibleID accepts a JSON number or string and preserves the raw text.
// Storefront payloads are not consistent about id types; anything that
// fails to parse into the catalog key space downstream is dropped
// silently per the recorder contract, so binding never rejects it.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			*f = FlexibleID(v)
			return nil
		}
	}
	*f = FlexibleID(s)
	return nil
}

// ActivityItem is one inbound cart line.
type ActivityItem struct {
	ID       FlexibleID `json:"id" swaggertype:"string" example:"7"`
	Quantity int        `json:"quantity" example:"2"`
}

// ActivityRequest is the JSON payload for recording cart activity.
// Pointer fields distinguish "absent" (merge: keep stored value) from
// explicitly provided values, including an explicitly empty item list.
type ActivityRequest struct {
	Items                  *[]ActivityItem  `json:"items"`
	Total                  *decimal.Decimal `json:"total" swaggertype:"number" example:"500"`
	CustomerEmail          *string          `json:"customerEmail" example:"a@x.com"`
	CustomerName           *string          `json:"customerName" example:"Ada"`
	CustomerNumber         *string          `json:"customerNumber" example:"+30 210 1234567"`
	IsFinalUpdate          bool             `json:"isFinalUpdate"`
	IsPotentialAbandonment bool             `json:"isPotentialAbandonment"`
}

// ActivityResponse reports what the recorder did.
type ActivityResponse struct {
	Success  bool   `json:"success"`
	ID       string `json:"id,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
}

// HeartbeatRequest is the JSON payload for a liveness ping.
type HeartbeatRequest struct {
	SessionID string `json:"sessionId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// HeartbeatResponse acknowledges a liveness ping.
type HeartbeatResponse struct {
	Success        bool      `json:"success"`
	ID             string    `json:"id"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Notice         string    `json:"notice,omitempty"`
}

//
// Handlers
//

// RecordActivity godoc
// @ID          recordActivity
// @Summary     Record cart activity
// @Description Upserts the tracking record for the caller's session from a cart snapshot. Empty, valueless, or contactless carts delete the record instead. Sets the session cookie on first contact.
// @Tags        Cart
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Authenticated user id (set by upstream auth)"
// @Param       Idempotency-Key  header  string  false "Safe-retry key for this update"
// @Param       body             body    handlers.ActivityRequest  true  "Cart snapshot"
//
// @Success     200  {object}  handlers.ActivityResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cart/activity [post]
func (h *Handlers) RecordActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Items == nil && req.Total == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cart items or total required")
		return
	}

	ctx := c.Request.Context()
	sid, isNew := session.Resolve(c, h.cookieName)

	// Serve detected replays from the stored result without re-running
	// side effects (the reminder clock must not reset twice).
	if middleware.IsReplay(c) && h.idemStore != nil {
		if key, okKey := middleware.GetIdempotencyKey(c); okKey {
			if rec, err := h.idemStore.Get(ctx, sid, key, time.Now().UTC()); err == nil && rec != nil {
				ok(c, rec.Status, ActivityResponse{Success: true, ID: rec.CartID, Replayed: true})
				return
			}
		}
	}

	in := services.RecordInput{
		SessionID:            sid,
		UserID:               userID(c),
		Total:                req.Total,
		CustomerEmail:        req.CustomerEmail,
		CustomerName:         req.CustomerName,
		CustomerPhone:        req.CustomerNumber,
		FinalUpdate:          req.IsFinalUpdate,
		PotentialAbandonment: req.IsPotentialAbandonment,
	}
	if req.Items != nil {
		in.HasItems = true
		in.Items = make([]services.RawItem, 0, len(*req.Items))
		for _, it := range *req.Items {
			in.Items = append(in.Items, services.RawItem{ID: string(it.ID), Quantity: it.Quantity})
		}
	}

	out, err := h.cartSvc.Record(ctx, in)
	if err != nil {
		switch err {
		case services.ErrMissingSession, services.ErrMissingCartData:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRecordFailed, err.Error())
		}
		return
	}

	if isNew {
		session.SetCookie(c, h.cookieName, sid, h.cookieTTL)
	}

	resp := ActivityResponse{Success: true, Deleted: out.Deleted}
	if out.Record != nil {
		resp.ID = out.Record.ID
	}
	if h.idemStore != nil && out.Record != nil {
		if key, okKey := middleware.GetIdempotencyKey(c); okKey {
			// Best effort: a failed insert only disables replay detection.
			_ = h.idemStore.Create(ctx, sid, key, out.Record.ID, http.StatusOK)
		}
	}
	ok(c, http.StatusOK, resp)
}

// Heartbeat godoc
// @ID          heartbeat
// @Summary     Refresh cart liveness
// @Description Advances the active record's last-activity timestamp. A heartbeat for an already-abandoned cart is acknowledged with a notice; one for a recovered cart is rejected; one for an unknown session is a 404 (heartbeats never create records).
// @Tags        Cart
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.HeartbeatRequest  true  "Session reference"
//
// @Success     200  {object}  handlers.HeartbeatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request / cart not active"
// @Failure     404  {object}  handlers.ErrorResponse  "No record for session"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cart/heartbeat [post]
func (h *Handlers) Heartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId required")
		return
	}

	res, err := h.cartSvc.Heartbeat(c.Request.Context(), req.SessionID)
	if err != nil {
		switch err {
		case services.ErrMissingSession:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case services.ErrCartNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "cart not found")
		case services.ErrCartNotActive:
			fail(c, http.StatusBadRequest, ErrCodeConflict, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, HeartbeatResponse{
		Success:        true,
		ID:             res.CartID,
		LastActivityAt: res.LastActivityAt,
		Notice:         res.Notice,
	})
}
