// Package notify delivers alerts for severe crisis records.
package notify

import (
	"context"
	"fmt"

	"go-crisislens/metrics"
	"go-crisislens/types"

	"go.uber.org/zap"
)

// Sender delivers one alert.
type Sender interface {
	Send(ctx context.Context, rec types.CrisisRecord) error
}

// AlertStore is the slice of the document store the dispatcher needs.
type AlertStore interface {
	ListPendingAlerts(ctx context.Context, minSeverity float64) ([]types.CrisisRecord, error)
	MarkNotified(ctx context.Context, ids []string) error
}

// Dispatcher sends one alert per severe, not yet notified record.
type Dispatcher struct {
	store     AlertStore
	sender    Sender
	threshold float64
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewDispatcher(store AlertStore, sender Sender, threshold float64, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, threshold: threshold, logger: logger, metrics: m}
}

// Run sends pending alerts and marks the delivered ones. A failed send leaves
// its record pending for the next run.
func (d *Dispatcher) Run(ctx context.Context) (sent, failed int, err error) {
	pending, err := d.store.ListPendingAlerts(ctx, d.threshold)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending alerts: %w", err)
	}
	if len(pending) == 0 {
		d.logger.Debug("no pending alerts", zap.Float64("threshold", d.threshold))
		return 0, 0, nil
	}

	delivered := make([]string, 0, len(pending))
	for _, rec := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := d.sender.Send(ctx, rec); err != nil {
			failed++
			d.metrics.ObserveNotification("failed")
			d.logger.Warn("alert delivery failed",
				zap.String("record_id", rec.ID),
				zap.Float64("severity", rec.Severity),
				zap.Error(err),
			)
			continue
		}
		d.metrics.ObserveNotification("sent")
		delivered = append(delivered, rec.ID)
	}

	if len(delivered) > 0 {
		if err := d.store.MarkNotified(ctx, delivered); err != nil {
			return len(delivered), failed, fmt.Errorf("mark notified: %w", err)
		}
	}

	d.logger.Info("alerts dispatched",
		zap.Int("pending", len(pending)),
		zap.Int("sent", len(delivered)),
		zap.Int("failed", failed),
	)
	return len(delivered), failed, ctx.Err()
}
