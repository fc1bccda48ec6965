package scheduler

import (
	"context"
	"testing"

	"thoughtpost/pkg/config"
	"thoughtpost/pkg/enrich"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/social"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/thoughts"
)

type noopSender struct{}

func (noopSender) Send(ctx context.Context, p *models.ThoughtPost, opts enrich.Options) (bool, error) {
	return false, nil
}

type countingAdapter struct {
	calls int
	fail  bool
}

func (a *countingAdapter) IsConfigured() bool { return true }

func (a *countingAdapter) Publish(ctx context.Context, post *models.ThoughtPost, content *models.EnrichedContent) (string, error) {
	a.calls++
	if a.fail {
		return "", context.DeadlineExceeded
	}
	return "id-1", nil
}

func newTestScheduler(t *testing.T, maxRetries int, adapter *countingAdapter) *Scheduler {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pub := social.NewService(store.UpdatePost)
	pub.Register(models.PlatformLinkedIn, adapter)
	svc := thoughts.NewService(noopSender{}, pub)

	s, err := New(svc, config.SchedulerConfig{MaxRetries: maxRetries})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}
	return s
}

func seedPost(t *testing.T, status models.Status, retryCount int) *models.ThoughtPost {
	t.Helper()
	p := &models.ThoughtPost{
		ID:              "p-" + string(status),
		UserID:          "u1",
		OriginalThought: "retry me",
		Status:          status,
		PostText:        true,
		PlatformSelections: []models.PlatformSelection{
			{Platform: models.PlatformLinkedIn},
		},
		SelectedPlatforms: []models.Platform{models.PlatformLinkedIn},
		EnrichedContents: []models.EnrichedContent{
			{
				Platform:   models.PlatformLinkedIn,
				Body:       "body",
				Status:     models.StatusFailed,
				RetryCount: retryCount,
			},
		},
	}
	saved, err := store.SavePost(p)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return saved
}

func TestNewRejectsBadCron(t *testing.T) {
	if _, err := New(nil, config.SchedulerConfig{Cron: "not a cron"}); err == nil {
		t.Fatal("invalid cron must be rejected")
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(nil, config.SchedulerConfig{})
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	if s.cronExpr != defaultCron || s.maxRetries != defaultMaxRetries {
		t.Fatalf("got cron %q, maxRetries %d", s.cronExpr, s.maxRetries)
	}
}

func TestRunOnceRetriesFailedPost(t *testing.T) {
	adapter := &countingAdapter{}
	s := newTestScheduler(t, 5, adapter)
	seeded := seedPost(t, models.StatusFailed, 2)

	s.RunOnce(context.Background())

	if adapter.calls != 1 {
		t.Fatalf("publish attempts = %d, want 1", adapter.calls)
	}
	post, err := store.GetPost(seeded.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if post.Status != models.StatusPosted {
		t.Fatalf("status = %s, want POSTED", post.Status)
	}
}

func TestRunOnceRetiresExhaustedPost(t *testing.T) {
	adapter := &countingAdapter{fail: true}
	s := newTestScheduler(t, 3, adapter)
	seeded := seedPost(t, models.StatusFailed, 3)

	s.RunOnce(context.Background())

	if adapter.calls != 0 {
		t.Fatal("exhausted post must not be published again")
	}
	post, err := store.GetPost(seeded.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if post.Status != models.StatusFailed || post.ErrorMessage != retryLimitMessage {
		t.Fatalf("post not retired: status=%s msg=%q", post.Status, post.ErrorMessage)
	}

	entries, err := store.ListHistory(seeded.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ActionType != models.ActionStatusChange {
		t.Fatalf("retirement history missing: %+v", entries)
	}
}

func TestRunOnceSkipsAlreadyRetiredPost(t *testing.T) {
	adapter := &countingAdapter{fail: true}
	s := newTestScheduler(t, 3, adapter)
	seeded := seedPost(t, models.StatusFailed, 3)

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	entries, err := store.ListHistory(seeded.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("retired post rewritten on second pass: %d entries", len(entries))
	}
}

func TestRunOnceIgnoresPendingPosts(t *testing.T) {
	adapter := &countingAdapter{}
	s := newTestScheduler(t, 5, adapter)
	seedPost(t, models.StatusPending, 0)

	s.RunOnce(context.Background())

	if adapter.calls != 0 {
		t.Fatal("pending posts must not be picked up")
	}
}

func TestRunOnceSkipsEnrichmentFailedPost(t *testing.T) {
	adapter := &countingAdapter{}
	s := newTestScheduler(t, 5, adapter)

	agentError := "AI agent processing failed: model overloaded"
	p := &models.ThoughtPost{
		ID:              "p-enrich-failed",
		UserID:          "u1",
		OriginalThought: "never enriched",
		Status:          models.StatusFailed,
		ErrorMessage:    agentError,
		PostText:        true,
		PlatformSelections: []models.PlatformSelection{
			{Platform: models.PlatformLinkedIn},
		},
	}
	if _, err := store.SavePost(p); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		s.RunOnce(context.Background())
	}

	if adapter.calls != 0 {
		t.Fatalf("publish attempts = %d, want 0 with no enriched content", adapter.calls)
	}
	post, err := store.GetPost(p.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if post.Status != models.StatusFailed || post.ErrorMessage != agentError {
		t.Fatalf("agent diagnostics clobbered: status=%s msg=%q", post.Status, post.ErrorMessage)
	}
	entries, err := store.ListHistory(p.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scheduler wrote %d history entries for an unpublishable post", len(entries))
	}
}

func TestRunOnceCompletesFullyPublishedPost(t *testing.T) {
	adapter := &countingAdapter{}
	s := newTestScheduler(t, 5, adapter)

	seeded := seedPost(t, models.StatusFailed, 0)
	if _, err := store.UpdatePost(seeded.ID, func(p *models.ThoughtPost) error {
		p.EnrichedContents[0].Status = models.StatusPosted
		p.EnrichedContents[0].PostID = "ext-1"
		return nil
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	s.RunOnce(context.Background())

	if adapter.calls != 0 {
		t.Fatal("published platforms must not be re-published")
	}
	post, err := store.GetPost(seeded.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if post.Status != models.StatusPosted {
		t.Fatalf("status = %s, want POSTED once all platforms are published", post.Status)
	}
}

func TestRetryableIgnoresPostedPlatforms(t *testing.T) {
	s := &Scheduler{maxRetries: 3}
	post := &models.ThoughtPost{
		EnrichedContents: []models.EnrichedContent{
			{Platform: models.PlatformLinkedIn, Status: models.StatusPosted, RetryCount: 0},
			{Platform: models.PlatformFacebook, Status: models.StatusFailed, RetryCount: 3},
		},
	}
	if s.retryable(post) {
		t.Fatal("posted platforms must not keep a post alive")
	}
	post.EnrichedContents[1].RetryCount = 2
	if !s.retryable(post) {
		t.Fatal("remaining budget must keep the post retryable")
	}
}
