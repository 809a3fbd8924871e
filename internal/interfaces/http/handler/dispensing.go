package handler

import (
	"context"
	"strconv"

	dispensingapp "github.com/erp/dispensing/internal/application/dispensing"
	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// SessionProvider hands out the per-operator dispensing sessions
type SessionProvider interface {
	Get(op dispensing.Operator) *dispensingapp.Session
	Evict(operatorID string) bool
}

// DocumentGenerator renders and stores the dispensation document of a session
type DocumentGenerator interface {
	Generate(ctx context.Context, s *dispensingapp.Session, format dispensingapp.DocumentFormat) (*dispensingapp.GeneratedDocument, error)
}

// DispensingHandler serves the dispensing screen of one operator at a time.
// Every route resolves the caller's session from the JWT operator.
type DispensingHandler struct {
	BaseHandler
	sessions  SessionProvider
	documents DocumentGenerator
}

// NewDispensingHandler creates a new DispensingHandler.
// documents may be nil, in which case document export answers INVALID_STATE.
func NewDispensingHandler(sessions SessionProvider, documents DocumentGenerator) *DispensingHandler {
	return &DispensingHandler{sessions: sessions, documents: documents}
}

func (h *DispensingHandler) session(c *gin.Context) (*dispensingapp.Session, bool) {
	op, ok := h.operator(c)
	if !ok {
		return nil, false
	}
	return h.sessions.Get(op), true
}

// SelectOrder loads a production order into the caller's session
// POST /dispensing/orders/:orderId/select
func (h *DispensingHandler) SelectOrder(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.SelectOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSessionResponse(view))
}

// GetSession returns the current session state
// GET /dispensing/session
func (h *DispensingHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.Success(c, ToSessionResponse(s.View()))
}

// CloseSession discards the caller's session
// DELETE /dispensing/session
func (h *DispensingHandler) CloseSession(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	h.Success(c, gin.H{"closed": h.sessions.Evict(op.ID)})
}

// SetLots replaces the lots selected for an allocation key
// PUT /dispensing/lots/:key
func (h *DispensingHandler) SetLots(c *gin.Context) {
	var req SetLotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.SetLots(c.Request.Context(), c.Param("key"), req.ToSelectedLots())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSessionResponse(view))
}

// RemoveLot removes one lot from an allocation key
// DELETE /dispensing/lots/:key/:lotId
func (h *DispensingHandler) RemoveLot(c *gin.Context) {
	lotID, err := strconv.ParseInt(c.Param("lotId"), 10, 64)
	if err != nil || lotID <= 0 {
		h.HandleError(c, shared.ErrInvalidInput.WithMessage("lot id must be a positive integer"))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.RemoveLot(c.Request.Context(), c.Param("key"), lotID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSessionResponse(view))
}

// SuggestLots proposes lots for the remaining quantity of a key
// GET /dispensing/lots/:key/suggestion?strategy=fefo
func (h *DispensingHandler) SuggestLots(c *gin.Context) {
	var q SuggestionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	suggestion, err := s.SuggestLots(c.Request.Context(), c.Param("key"), q.Strategy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSuggestionResponse(suggestion))
}

// AvailableLots lists the stock lots of a material.
// The path segment shares the :key wildcard with the other lot routes but holds a material id.
// GET /dispensing/lots/:key/available
func (h *DispensingHandler) AvailableLots(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	lots, err := s.AvailableLots(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToAvailableLotResponses(lots))
}

// ToggleNode opens or closes a semi-finished node of the tree
// POST /dispensing/tree/:materialId/toggle
func (h *DispensingHandler) ToggleNode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	materialID := c.Param("materialId")
	expanded, err := s.ToggleExpanded(materialID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToggleResponse{MaterialID: materialID, Expanded: expanded})
}

// BeginReview opens the review step and issues a confirmation code
// POST /dispensing/review
func (h *DispensingHandler) BeginReview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	review, err := s.BeginReview(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToReviewResponse(review))
}

// Submit posts the reviewed dispensation to the backend
// POST /dispensing/submit
func (h *DispensingHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	receipt, err := s.Submit(c.Request.Context(), req.ToDraft())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ReceiptResponse{TransactionID: receipt.TransactionID, Message: receipt.Message})
}

// GenerateDocument renders the dispensation sheet and returns a download link
// POST /dispensing/document
func (h *DispensingHandler) GenerateDocument(c *gin.Context) {
	var req DocumentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleBindError(c, err)
			return
		}
	}
	format, err := dispensingapp.ParseDocumentFormat(req.Format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if h.documents == nil {
		h.HandleError(c, shared.ErrInvalidState.WithMessage("document export is not configured"))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	doc, err := h.documents.Generate(c.Request.Context(), s, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToDocumentResponse(doc))
}

// RefreshHistorical recomputes the historical totals of the selected order
// POST /dispensing/refresh-historical
func (h *DispensingHandler) RefreshHistorical(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.RefreshHistorical(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSessionResponse(view))
}
