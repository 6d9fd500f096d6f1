package handler

import (
	"github.com/gin-gonic/gin"
	returnsapp "github.com/returnhub/backend/internal/application/returns"
)

// EvidenceHandler handles evidence upload slot endpoints
type EvidenceHandler struct {
	BaseHandler
	evidence *returnsapp.EvidenceService
}

// NewEvidenceHandler creates a new EvidenceHandler
func NewEvidenceHandler(evidence *returnsapp.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// CreateUploadSlot handles POST /returns/evidence-uploads. The client
// uploads directly against the returned presigned URL; evidence bytes
// never pass through this service.
func (h *EvidenceHandler) CreateUploadSlot(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req returnsapp.EvidenceUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.evidence.CreateUploadSlot(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, resp)
}
