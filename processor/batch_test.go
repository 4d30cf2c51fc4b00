package processor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatchMixedOutcomes(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(classifierFunc(func(_ context.Context, text, _, _ string) (types.Assessment, error) {
		switch {
		case strings.Contains(text, "flood"):
			return floodAssessment("Chennai", 0.7, nil), nil
		case strings.Contains(text, "offline"):
			return types.Assessment{}, &apperr.AdapterError{Adapter: "classifier", Err: errors.New("503")}
		default:
			return types.Assessment{IsCrisis: false}, nil
		}
	}), Options{Workers: 2})

	items := o.ProcessBatch(context.Background(), []Report{
		{Text: "flood in Chennai", Source: "Scraper - bluesky"},
		{Text: "bakery award", Source: "Scraper - bluesky"},
		{Text: "", Source: "Scraper - bluesky"},
		{Text: "classifier offline", Source: "Scraper - bluesky"},
	})

	require.Len(t, items, 4)
	for i, it := range items {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, "Scraper - bluesky", it.Source)
	}
	assert.Equal(t, StatusCreated, items[0].Status)
	assert.NotEmpty(t, items[0].RecordID)
	assert.Equal(t, StatusNotCrisis, items[1].Status)
	assert.Equal(t, StatusError, items[2].Status)
	assert.Contains(t, items[2].Error, "text")
	assert.Equal(t, StatusError, items[3].Status)

	summary := Summarize(items)
	assert.Equal(t, 1, summary[StatusCreated])
	assert.Equal(t, 1, summary[StatusNotCrisis])
	assert.Equal(t, 2, summary[StatusError])
	assert.Len(t, f.allRecords(t), 1)
}

func TestProcessBatchBoundsConcurrency(t *testing.T) {
	f := newFixture()
	var inFlight, peak int32
	o := f.orchestrator(classifierFunc(func(context.Context, string, string, string) (types.Assessment, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return types.Assessment{IsCrisis: false}, nil
	}), Options{Workers: 3})

	reports := make([]Report, 12)
	for i := range reports {
		reports[i] = Report{Text: "report"}
	}
	items := o.ProcessBatch(context.Background(), reports)

	require.Len(t, items, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, 12, Summarize(items)[StatusNotCrisis])
}

func TestProcessBatchCancelledContext(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(returns(floodAssessment("Chennai", 0.7, nil)), Options{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := o.ProcessBatch(ctx, []Report{{Text: "flood"}, {Text: "flood"}})
	for _, it := range items {
		assert.Equal(t, StatusError, it.Status)
	}
	assert.Empty(t, f.allRecords(t))
}

func TestProcessBatchEmpty(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(returns(types.Assessment{}), Options{})
	assert.Empty(t, o.ProcessBatch(context.Background(), nil))
}
