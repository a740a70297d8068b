// Batch job HTTP handlers.
//
// The sweeper and the recovery scheduler have no internal timers: an
// external scheduler (Cloud Scheduler, cron, curl) drives them through
// these endpoints. Authentication is enforced upstream by the scheduler
// middleware; by the time a request reaches these handlers it is trusted.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-cart-recovery/internal/services"
)

// JobDefaults carries the operator-configured batch parameters applied
// when a request does not override them.
type JobDefaults struct {
	TTLMinutes int
	SweepBatch int
}

// SweepResponse wraps one sweep invocation for transport.
type SweepResponse struct {
	Success bool                  `json:"success"`
	Result  *services.SweepResult `json:"result"`
}

// SweepStatusResponse reports table counts without mutating anything.
type SweepStatusResponse struct {
	Success      bool      `json:"success"`
	TTLMinutes   int       `json:"ttl_minutes"`
	Active       int64     `json:"active"`
	Abandoned    int64     `json:"abandoned"`
	Recovered    int64     `json:"recovered"`
	PendingSweep int64     `json:"pending_sweep"`
	CheckedAt    time.Time `json:"checked_at"`
}

// RecoveryRunResponse wraps one scheduler pass for transport.
type RecoveryRunResponse struct {
	Success bool                     `json:"success"`
	Result  *services.RecoveryResult `json:"result"`
}

// ttlQuery reads an optional ?ttlMinutes= override, falling back to the
// configured default. Clamping happens inside the sweep service.
func (h *Handlers) ttlQuery(c *gin.Context) int {
	raw := strings.TrimSpace(c.Query("ttlMinutes"))
	if raw == "" {
		return h.jobDefaults.TTLMinutes
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return h.jobDefaults.TTLMinutes
	}
	return n
}

// RunSweep godoc
// @ID          runSweep
// @Summary     Run the abandonment sweep
// @Description Transitions active carts idle past the TTL to abandoned, up to the configured batch size. Mounted under both POST and PATCH so either scheduler verb works.
// @Tags        Jobs
// @Produce     json
//
// @Param       ttlMinutes       query   int     false "Inactivity TTL override in minutes (clamped to 5-1440)"
// @Param       X-CloudScheduler header  string  false "Trusted scheduler marker"
// @Param       X-Sweep-Secret   header  string  false "Shared scheduler secret"
//
// @Success     200  {object}  handlers.SweepResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Sweep failed"
// @Router      /jobs/sweep [post]
func (h *Handlers) RunSweep(c *gin.Context) {
	res, err := h.sweepSvc.Sweep(c.Request.Context(), h.ttlQuery(c), h.jobDefaults.SweepBatch)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSweepFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, SweepResponse{Success: true, Result: res})
}

// SweepStatus godoc
// @ID          sweepStatus
// @Summary     Report sweep status
// @Description Returns per-status cart counts and how many active carts the sweep filter would transition right now. Read-only.
// @Tags        Jobs
// @Produce     json
//
// @Param       ttlMinutes       query   int     false "Inactivity TTL override in minutes (clamped to 5-1440)"
// @Param       X-CloudScheduler header  string  false "Trusted scheduler marker"
// @Param       X-Sweep-Secret   header  string  false "Shared scheduler secret"
//
// @Success     200  {object}  handlers.SweepStatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /jobs/sweep-status [get]
func (h *Handlers) SweepStatus(c *gin.Context) {
	ttl := services.ClampTTL(h.ttlQuery(c))
	counts, err := h.sweepSvc.Status(c.Request.Context(), ttl)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SweepStatusResponse{
		Success:      true,
		TTLMinutes:   ttl,
		Active:       counts.Active,
		Abandoned:    counts.Abandoned,
		Recovered:    counts.Recovered,
		PendingSweep: counts.PendingSweep,
		CheckedAt:    time.Now().UTC(),
	})
}

// RunRecovery godoc
// @ID          runRecovery
// @Summary     Run the recovery scheduler
// @Description Dispatches the next due reminder for each eligible abandoned cart, then advances its reminder stage. Per-record failures are collected in the result, not raised.
// @Tags        Jobs
// @Produce     json
//
// @Param       X-CloudScheduler header  string  false "Trusted scheduler marker"
// @Param       X-Sweep-Secret   header  string  false "Shared scheduler secret"
//
// @Success     200  {object}  handlers.RecoveryRunResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Recovery run failed"
// @Router      /jobs/recovery-run [post]
func (h *Handlers) RunRecovery(c *gin.Context) {
	res, err := h.recoverySvc.Run(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRecoveryFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RecoveryRunResponse{Success: true, Result: res})
}
