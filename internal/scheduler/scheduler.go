// Package scheduler periodically retries posts that have been approved but
// not fully published. Runs never overlap: each tick scans and publishes
// synchronously before the next tick is armed.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"thoughtpost/pkg/config"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/telemetry"
	"thoughtpost/pkg/thoughts"
)

// retryLimitMessage marks a post whose retry budget is spent. The scheduler
// uses it to recognize posts it already gave up on.
const retryLimitMessage = "Reached maximum retry limit. Manual intervention required."

const defaultCron = "*/10 * * * *"
const defaultMaxRetries = 100

// Scheduler scans for incompletely published posts and re-drives them
// through the orchestrator's publish path.
type Scheduler struct {
	svc        *thoughts.Service
	cronExpr   string
	maxRetries int
}

// New builds a scheduler from config; zero values fall back to the
// ten-minute cadence and the retry ceiling of 100.
func New(svc *thoughts.Service, cfg config.SchedulerConfig) (*Scheduler, error) {
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid scheduler cron expression: %s", cfg.Cron)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Scheduler{svc: svc, cronExpr: cronExpr, maxRetries: maxRetries}, nil
}

// Start launches the cron loop if enabled and returns a cancel func.
func Start(ctx context.Context, svc *thoughts.Service, cfg config.SchedulerConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("scheduler_disabled")
		return func() {}, nil
	}
	s, err := New(svc, cfg)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithCancel(ctx)
	go s.loop(ctx2)
	logger.Info("scheduler_started", "cron", s.cronExpr, "max_retries", s.maxRetries)
	return cancel, nil
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(s.cronExpr, now, false)
		if err != nil {
			logger.Error("scheduler_nexttick_failed", "cron", s.cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			s.RunOnce(ctx)
		case <-ctx.Done():
			logger.Info("scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single scan-and-retry pass. Exported so tests and
// admin triggers can drive the scheduler without the cron loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	telemetry.SchedulerRun()

	candidates, err := s.pending()
	if err != nil {
		logger.Error("scheduler_scan_failed", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}
	logger.Info("scheduler_pass_started", "candidates", len(candidates))

	for _, post := range candidates {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.retryPost(ctx, post)
	}
}

func (s *Scheduler) pending() ([]*models.ThoughtPost, error) {
	return store.ListPostsByStatus(
		models.StatusApproved,
		models.StatusFailed,
		models.StatusPosting,
	)
}

// retryPost re-drives one post, or retires it when every unpublished
// platform has exhausted its retry budget.
func (s *Scheduler) retryPost(ctx context.Context, post *models.ThoughtPost) {
	if post.ErrorMessage == retryLimitMessage {
		return
	}
	// A post that failed during enrichment has nothing to publish; retrying
	// it would only churn its status and bury the agent's error message.
	// Re-enrichment is a user action, not the scheduler's.
	if len(post.EnrichedContents) == 0 {
		return
	}
	if !post.AllPosted() && !s.retryable(post) {
		s.retire(post)
		return
	}
	if err := s.svc.AttemptPosting(ctx, post.ID); err != nil {
		logger.Warn("scheduler_retry_failed", "post", post.ID, "error", err)
	}
}

// retryable reports whether some unpublished platform still has retry
// budget left.
func (s *Scheduler) retryable(post *models.ThoughtPost) bool {
	for i := range post.EnrichedContents {
		ec := &post.EnrichedContents[i]
		if ec.Status != models.StatusPosted && ec.RetryCount < s.maxRetries {
			return true
		}
	}
	return false
}

func (s *Scheduler) retire(post *models.ThoughtPost) {
	saved, err := store.UpdatePost(post.ID, func(p *models.ThoughtPost) error {
		p.Status = models.StatusFailed
		p.ErrorMessage = retryLimitMessage
		return nil
	})
	if err != nil {
		logger.Error("scheduler_retire_failed", "post", post.ID, "error", err)
		return
	}
	if err := store.AppendHistory(models.SnapshotHistory(saved, models.ActionStatusChange, "system")); err != nil {
		logger.Error("history_append_failed", "post", post.ID, "error", err)
	}
	telemetry.SchedulerExhausted()
	logger.Warn("post_retry_budget_exhausted", "post", post.ID, "max_retries", s.maxRetries)
}
