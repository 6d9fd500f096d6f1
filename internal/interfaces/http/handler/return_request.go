package handler

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	returnsapp "github.com/returnhub/backend/internal/application/returns"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/infrastructure/auth"
	"github.com/returnhub/backend/internal/interfaces/http/middleware"
)

// ReturnRequestHandler handles return request API endpoints
type ReturnRequestHandler struct {
	BaseHandler
	submissions   *returnsapp.SubmissionService
	lifecycle     *returnsapp.LifecycleService
	submitLimiter *middleware.RateLimiter
}

// NewReturnRequestHandler creates a new ReturnRequestHandler
func NewReturnRequestHandler(submissions *returnsapp.SubmissionService, lifecycle *returnsapp.LifecycleService) *ReturnRequestHandler {
	return &ReturnRequestHandler{
		submissions: submissions,
		lifecycle:   lifecycle,
	}
}

// SetSubmitLimiter enables per-(tenant, customer) submission rate limiting.
// The key uses the verification email so one customer hammering lookups
// cannot exhaust the whole tenant's budget.
func (h *ReturnRequestHandler) SetSubmitLimiter(limiter *middleware.RateLimiter) {
	h.submitLimiter = limiter
}

// actorFromContext derives the domain actor from JWT claims. Admin tokens
// act as admin:<user-id>; everything else is the customer.
func actorFromContext(c *gin.Context) returns.Actor {
	if middleware.GetJWTRole(c) == auth.RoleAdmin {
		if userID, ok := getAdminUserID(c); ok {
			return returns.AdminActor(userID)
		}
	}
	return returns.CustomerActor()
}

// Submit handles POST /returns. Duplicate submissions inside the dedup
// window return the original request with duplicate=true rather than an
// error.
func (h *ReturnRequestHandler) Submit(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req returnsapp.SubmitReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if h.submitLimiter != nil {
		key := tenantID.String() + ":" + req.Email
		if !h.submitLimiter.Allow(key) {
			h.TooManyRequests(c, int(math.Ceil(h.submitLimiter.RetryAfter(key).Seconds())))
			return
		}
	}

	actor := actorFromContext(c)
	req.SubmittedBy = actor
	if actor.IsAdmin() {
		req.Channel = returns.ChannelAdmin
	} else {
		req.Channel = returns.ChannelCustomerPortal
	}

	resp, err := h.submissions.Submit(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if resp.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// GetByID handles GET /returns/:id. Requests belonging to another tenant
// are indistinguishable from missing ones.
func (h *ReturnRequestHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return request ID format")
		return
	}

	resp, err := h.lifecycle.GetByID(c.Request.Context(), tenantID, requestID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// List handles GET /returns with status filtering and pagination
func (h *ReturnRequestHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter returnsapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		h.BadRequest(c, "Unknown status filter: "+filter.Status.String())
		return
	}

	items, total, err := h.lifecycle.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// StatusCounts handles GET /returns/stats/status-counts
func (h *ReturnRequestHandler) StatusCounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	counts, err := h.lifecycle.StatusCounts(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, counts)
}

// Transition handles POST /returns/:id/transition. Re-requesting the
// current status is a no-op that returns the unchanged request.
func (h *ReturnRequestHandler) Transition(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return request ID format")
		return
	}

	var req returnsapp.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if !req.Target.IsValid() {
		h.BadRequest(c, "Unknown target status: "+req.Target.String())
		return
	}

	resp, err := h.lifecycle.Transition(c.Request.Context(), tenantID, requestID, actorFromContext(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// Override handles POST /returns/:id/override. Only admins may override,
// and a justification note is mandatory.
func (h *ReturnRequestHandler) Override(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return request ID format")
		return
	}

	actor := actorFromContext(c)
	if !actor.IsAdmin() {
		h.Forbidden(c, "Only admins may override a decision")
		return
	}

	var req returnsapp.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.lifecycle.ApplyOverride(c.Request.Context(), tenantID, requestID, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// Comment handles POST /returns/:id/comments. Comments append to the audit
// timeline without changing status and are allowed on terminal requests.
func (h *ReturnRequestHandler) Comment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return request ID format")
		return
	}

	var req returnsapp.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor := actorFromContext(c)
	if req.Internal && !actor.IsAdmin() {
		h.Forbidden(c, "Internal comments are admin-only")
		return
	}

	resp, err := h.lifecycle.AppendComment(c.Request.Context(), tenantID, requestID, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}
