// Package handlers exposes the enrichment pipeline and the scoring engine
// over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/processor"
	"go-crisislens/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResponderHeader carries the requesting responder organization's ID.
const ResponderHeader = "X-Responder-ID"

type ReportProcessor interface {
	Process(ctx context.Context, report processor.Report) (processor.Result, error)
	ProcessBatch(ctx context.Context, reports []processor.Report) []processor.BatchItem
	ReconcileAgainstExisting(ctx context.Context, text string, raw *types.Assessment, id string) (processor.ReconcileResult, error)
}

type Recommender interface {
	Score(ctx context.Context) ([]types.ScoringCandidate, error)
}

type CrisisDeleter interface {
	DeleteCrisis(ctx context.Context, id, requester string) error
}

type FeedSource interface {
	Fetch(ctx context.Context, trigger string) ([]processor.Report, error)
}

// Handler holds the collaborators behind every route. Feeds may be nil,
// in which case the scraper trigger is unavailable.
type Handler struct {
	Processor   ReportProcessor
	Recommender Recommender
	Deleter     CrisisDeleter
	Feeds       FeedSource
	Logger      *zap.Logger
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// respondError maps the error taxonomy onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		inputErr *apperr.InputError
		infraErr *apperr.InfrastructureError
		ownerErr *apperr.OwnershipError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &inputErr):
		status = http.StatusBadRequest
	case errors.As(err, &ownerErr):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.As(err, &infraErr) && infraErr.Stage == "classify":
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
