package tagging

import (
	"context"
	"fmt"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

// Summary is the outcome of one tagging run.
type Summary struct {
	Tagged        int     `json:"tagged"`
	Failed        int     `json:"failed"`
	ReferenceRate float64 `json:"reference_rate"`
	Elapsed       string  `json:"elapsed"`
}

// RateSource yields the reference rate pinned for a run.
type RateSource interface {
	LatestRate(ctx context.Context) (float64, error)
}

// Runner pages through pools and writes each one's complete tag set back.
type Runner struct {
	engine    *Engine
	pools     *warehouse.PoolRepository
	rates     RateSource
	batchSize int
	fallback  float64
	logger    observability.Logger
	metrics   observability.Metrics
}

// NewRunner creates the batch runner. fallbackRate is used when the rate
// source has no observation yet.
func NewRunner(engine *Engine, pools *warehouse.PoolRepository, rates RateSource, batchSize int, fallbackRate float64, logger observability.Logger, metrics observability.Metrics) *Runner {
	return &Runner{
		engine:    engine,
		pools:     pools,
		rates:     rates,
		batchSize: batchSize,
		fallback:  fallbackRate,
		logger:    observability.Scoped(logger, "tagging.runner"),
		metrics:   metrics,
	}
}

// Run tags up to limit pools (0 = no limit). retagAll re-tags pools that
// already carry tags; rateOverride, when non-nil, pins the reference rate
// instead of the rate source. The rate is resolved once, before the first
// pool, and held for the whole run.
func (r *Runner) Run(ctx context.Context, retagAll bool, limit int, rateOverride *float64) (Summary, error) {
	start := time.Now()

	rate, err := r.resolveRate(ctx, rateOverride)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{ReferenceRate: rate}
	r.logger.Info("tagging run starting", "reference_rate", rate, "retag_all", retagAll)

	afterPoolID := ""
	for {
		if ctx.Err() != nil {
			r.logger.Warn("run budget exhausted", "tagged", summary.Tagged)
			break
		}

		batchLimit := r.batchSize
		if limit > 0 && limit-summary.Tagged-summary.Failed < batchLimit {
			batchLimit = limit - summary.Tagged - summary.Failed
		}
		if batchLimit <= 0 {
			break
		}

		pools, err := r.pools.SelectForTagging(ctx, retagAll, afterPoolID, batchLimit)
		if err != nil {
			return summary, fmt.Errorf("select pools: %w", err)
		}
		if len(pools) == 0 {
			break
		}

		for i := range pools {
			pool := &pools[i]
			tags := r.engine.Tag(pool, rate)
			if err := r.pools.WriteTags(ctx, tags); err != nil {
				summary.Failed++
				r.logger.Error("tag write-back failed", "pool_id", pool.PoolID, "error", err)
				continue
			}
			summary.Tagged++
		}
		afterPoolID = pools[len(pools)-1].PoolID

		if summary.Tagged > 0 && summary.Tagged%5000 == 0 {
			r.logger.Info("tagging progress", "tagged", summary.Tagged)
		}
	}

	summary.Elapsed = time.Since(start).String()
	r.metrics.RecordHistogram("tagging.run.duration_seconds", time.Since(start).Seconds(), nil)
	return summary, nil
}

func (r *Runner) resolveRate(ctx context.Context, override *float64) (float64, error) {
	if override != nil {
		return *override, nil
	}
	rate, err := r.rates.LatestRate(ctx)
	if err != nil {
		r.logger.Warn("reference rate unavailable, using fallback",
			"fallback", r.fallback, "error", err)
		return r.fallback, nil
	}
	return rate, nil
}
