package cronjobs

import (
	"context"
	"fmt"
	"time"

	"go-crisislens/processor"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type FeedSource interface {
	Fetch(ctx context.Context, trigger string) ([]processor.Report, error)
}

type BatchProcessor interface {
	ProcessBatch(ctx context.Context, reports []processor.Report) []processor.BatchItem
}

type AlertDispatcher interface {
	Run(ctx context.Context) (sent, failed int, err error)
}

type Purger interface {
	PurgeCrisesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// FeedJob fetches scraped posts and runs them through the pipeline.
func FeedJob(src FeedSource, p BatchProcessor) JobFunc {
	return func(ctx context.Context) error {
		reports, err := src.Fetch(ctx, "Cron")
		if err != nil {
			return fmt.Errorf("fetch feeds: %w", err)
		}
		if len(reports) == 0 {
			return nil
		}
		items := p.ProcessBatch(ctx, reports)
		if failed := processor.Summarize(items)[processor.StatusError]; failed == len(items) {
			return fmt.Errorf("all %d scraped reports failed", failed)
		}
		return nil
	}
}

// AlertJob sends alerts for severe records not yet notified.
func AlertJob(d AlertDispatcher) JobFunc {
	return func(ctx context.Context) error {
		_, _, err := d.Run(ctx)
		return err
	}
}

// RetentionJob deletes records created more than maxAge ago.
func RetentionJob(p Purger, maxAge time.Duration, clock clockwork.Clock, logger *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		cutoff := clock.Now().Add(-maxAge)
		purged, err := p.PurgeCrisesBefore(ctx, cutoff)
		if purged > 0 {
			logger.Info("purged expired crisis records", zap.Int("count", purged), zap.Time("cutoff", cutoff))
		}
		if err != nil {
			return fmt.Errorf("purge records: %w", err)
		}
		return nil
	}
}
