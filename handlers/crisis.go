package handlers

import (
	"net/http"
	"strings"

	"go-crisislens/apperr"
	"go-crisislens/processor"
	"go-crisislens/types"

	"github.com/gin-gonic/gin"
)

type processReportRequest struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Location string `json:"location"`
}

type manualReportRequest struct {
	Text     string `json:"text"`
	Location string `json:"location"`
	RaisedBy string `json:"raisedBy"`
}

type reconcileRequest struct {
	Text     string            `json:"text"`
	Analysis *types.Assessment `json:"analysis,omitempty"`
}

// ProcessReport handles POST /api/crisis/process-report.
func (h *Handler) ProcessReport(c *gin.Context) {
	var req processReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &apperr.InputError{Field: "body", Message: err.Error()})
		return
	}

	h.process(c, processor.Report{Text: req.Text, Source: req.Source, Location: req.Location})
}

// ManualReport handles POST /api/crisis/manual. The record is attributed to
// the responder that raised it.
func (h *Handler) ManualReport(c *gin.Context) {
	var req manualReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &apperr.InputError{Field: "body", Message: err.Error()})
		return
	}
	raisedBy := strings.TrimSpace(req.RaisedBy)
	if raisedBy == "" {
		raisedBy = strings.TrimSpace(c.GetHeader(ResponderHeader))
	}
	if raisedBy == "" {
		h.respondError(c, &apperr.InputError{Field: "raisedBy", Message: "raisedBy is required"})
		return
	}

	h.process(c, processor.Report{
		Text:     req.Text,
		Source:   processor.DefaultSource,
		Location: req.Location,
		RaisedBy: raisedBy,
	})
}

func (h *Handler) process(c *gin.Context, report processor.Report) {
	res, err := h.Processor.Process(c.Request.Context(), report)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Status == processor.StatusCreated {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// ReconcileCrisis handles POST /api/crisis/:id/reconcile.
func (h *Handler) ReconcileCrisis(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &apperr.InputError{Field: "body", Message: err.Error()})
		return
	}

	res, err := h.Processor.ReconcileAgainstExisting(c.Request.Context(), req.Text, req.Analysis, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteCrisis handles DELETE /api/crisis/:id on behalf of the responder
// named in the X-Responder-ID header.
func (h *Handler) DeleteCrisis(c *gin.Context) {
	requester := strings.TrimSpace(c.GetHeader(ResponderHeader))
	if requester == "" {
		h.respondError(c, &apperr.InputError{Field: ResponderHeader, Message: "header is required"})
		return
	}

	id := c.Param("id")
	if err := h.Deleter.DeleteCrisis(c.Request.Context(), id, requester); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
