// Package scheduler triggers one probe per configured site on a cron
// schedule and feeds the results into the alert engine.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/alert"
	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/probe"
)

type Runner struct {
	Logger      *zap.Logger
	Engine      *alert.Engine
	Checker     probe.Checker
	Sites       []string
	Schedule    string // cron spec or @every duration
	Timeout     time.Duration
	Concurrency int
}

func NewRunner(
	logger *zap.Logger,
	engine *alert.Engine,
	checker probe.Checker,
	sites []string,
	schedule string,
	timeout time.Duration,
	concurrency int,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Runner{
		Logger:      logger,
		Engine:      engine,
		Checker:     checker,
		Sites:       sites,
		Schedule:    schedule,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Run does an immediate pass, then runs on the cron schedule until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.Sites) == 0 {
		r.Logger.Info("scheduler_disabled_no_sites")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.Schedule, func() { r.runOnce(ctx) }); err != nil {
		return fmt.Errorf("bad schedule %q: %w", r.Schedule, err)
	}

	r.runOnce(ctx)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	r.Logger.Info("scheduler_stopped")
	return ctx.Err()
}

// runOnce fans out one check per site, bounded by Concurrency. Checks for
// distinct sites run in parallel with no ordering guarantee.
func (r *Runner) runOnce(ctx context.Context) {
	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	for _, site := range r.Sites {
		site := site
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, r.Timeout)
			defer cancel()

			out := r.Checker.Check(cctx, site)

			reason := out.Reason
			if !out.Up {
				// A DNS class makes timeouts vs dead domains readable.
				reason = strings.TrimSpace(fmt.Sprintf("%s dns=%s", reason, probe.ClassifyDNS(cctx, site)))
			}

			status := domain.StatusDown
			if out.Up {
				status = domain.StatusUp
			}
			cr := &domain.CheckResult{
				URL:        site,
				Status:     status,
				HTTPStatus: out.StatusCode,
				LatencyMS:  out.LatencyMS,
				Reason:     reason,
				CheckedAt:  time.Now().UTC(),
			}

			if err := r.Engine.Submit(ctx, cr); err != nil {
				r.Logger.Warn("check_submit_error",
					zap.String("url", site),
					zap.Error(err),
				)
			} else {
				r.Logger.Debug("check_submitted",
					zap.String("url", site),
					zap.String("status", string(status)),
					zap.Int("http_status", out.StatusCode),
					zap.Float64("latency_ms", out.LatencyMS),
				)
			}
		}()
	}

	wg.Wait()
}
