package processor

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one report in a batch.
type BatchItem struct {
	Index    int    `json:"index"`
	Source   string `json:"source"`
	Status   Status `json:"status"`
	RecordID string `json:"recordId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary counts batch items by status.
type BatchSummary map[Status]int

// ProcessBatch runs reports through Process with at most Options.Workers in
// flight. One failed report never stops the others; items come back in
// input order.
func (o *Orchestrator) ProcessBatch(ctx context.Context, reports []Report) []BatchItem {
	items := make([]BatchItem, len(reports))

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	for i := range reports {
		i := i
		g.Go(func() error {
			items[i] = o.processItem(ctx, i, reports[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(items)
	o.Logger.Info("batch processed",
		zap.Int("reports", len(reports)),
		zap.Int("created", summary[StatusCreated]),
		zap.Int("updated", summary[StatusUpdated]),
		zap.Int("duplicate", summary[StatusDuplicate]),
		zap.Int("not_crisis", summary[StatusNotCrisis]),
		zap.Int("errors", summary[StatusError]),
	)
	return items
}

func (o *Orchestrator) processItem(ctx context.Context, index int, report Report) BatchItem {
	item := BatchItem{Index: index, Source: report.Source}
	if err := ctx.Err(); err != nil {
		item.Status = StatusError
		item.Error = err.Error()
		return item
	}

	res, err := o.Process(ctx, report)
	if err != nil {
		o.Logger.Warn("batch report failed", zap.Int("index", index), zap.Error(err))
		item.Status = StatusError
		item.Error = err.Error()
		return item
	}
	item.Status = res.Status
	if res.Record != nil {
		item.RecordID = res.Record.ID
	}
	return item
}

// Summarize counts items per status.
func Summarize(items []BatchItem) BatchSummary {
	s := make(BatchSummary)
	for _, it := range items {
		s[it.Status]++
	}
	return s
}
