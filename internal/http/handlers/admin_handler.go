// Operator HTTP handlers for manual resolution of tracking records.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-cart-recovery/internal/domain"
	"github.com/tbourn/go-cart-recovery/internal/services"
	"github.com/tbourn/go-cart-recovery/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListCartsResponse wraps a page of tracking records and pagination
// information.
type ListCartsResponse struct {
	Carts      []domain.CartTracking `json:"carts"`
	Pagination Pagination            `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// ListCarts godoc
// @ID          listCarts
// @Summary     List tracking records (paginated)
// @Description Returns a page of tracking records, most recently active first, optionally filtered by lifecycle status.
// @Tags        Admin
// @Produce     json
//
// @Param       status         query   string  false "Filter: active, abandoned, or recovered"
// @Param       page           query   int     false "Page number (1-based)"
// @Param       page_size      query   int     false "Page size (max 100)"
// @Param       X-Admin-Token  header  string  false "Operator token"
//
// @Success     200  {object}  handlers.ListCartsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/carts [get]
func (h *Handlers) ListCarts(c *gin.Context) {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	switch status {
	case "", string(domain.CartStatusActive), string(domain.CartStatusAbandoned), string(domain.CartStatusRecovered):
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be active, abandoned, or recovered")
		return
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.cartSvc.ListPage(c.Request.Context(), status, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListCartsResponse{
		Carts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ResolveRequest is the optional JSON payload for marking a record
// recovered. Notes are appended to the record's audit trail.
type ResolveRequest struct {
	Notes string `json:"notes" example:"customer completed order #4411 over the phone"`
}

// ResolveResponse acknowledges a manual resolution.
type ResolveResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status"`
}

// ResolveCart godoc
// @ID          resolveCart
// @Summary     Mark a cart recovered
// @Description Terminally resolves a tracking record regardless of its current state, recording operator notes in the audit trail. Recovered carts stop receiving reminders and are excluded from activity merging.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       id             path    string  true  "Tracking record id"
// @Param       X-Admin-Token  header  string  false "Operator token"
// @Param       body           body    handlers.ResolveRequest  false  "Optional operator notes"
//
// @Success     200  {object}  handlers.ResolveResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Record not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Resolution failed"
// @Router      /admin/carts/{id} [patch]
func (h *Handlers) ResolveCart(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cart id required")
		return
	}

	// The body is optional; a bare PATCH resolves without notes.
	var req ResolveRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	if err := h.cartSvc.MarkRecovered(c.Request.Context(), id, strings.TrimSpace(req.Notes)); err != nil {
		switch err {
		case services.ErrCartNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "cart not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ResolveResponse{Success: true, ID: id, Status: "recovered"})
}

// DeleteCart godoc
// @ID          deleteCart
// @Summary     Delete a tracking record
// @Description Hard-deletes a tracking record and its stored cart lines. Used for data hygiene and erasure requests.
// @Tags        Admin
// @Produce     json
//
// @Param       id             path    string  true  "Tracking record id"
// @Param       X-Admin-Token  header  string  false "Operator token"
//
// @Success     204  "Deleted"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Record not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Deletion failed"
// @Router      /admin/carts/{id} [delete]
func (h *Handlers) DeleteCart(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cart id required")
		return
	}
	if err := h.cartSvc.Delete(c.Request.Context(), id); err != nil {
		switch err {
		case services.ErrCartNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "cart not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, err.Error())
		}
		return
	}
	noContent(c)
}
