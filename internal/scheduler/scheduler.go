// Package scheduler decides which subscriptions are due and dispatches
// ingestion runs for them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"notesbot/internal/model"
	"notesbot/internal/pipeline"
	"notesbot/internal/source"
	"notesbot/internal/storage"
)

// Runner executes one ingestion run for a subscription.
type Runner interface {
	Run(ctx context.Context, sub model.Subscription, since time.Time) pipeline.Result
}

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Scheduler periodically polls due subscriptions through the pipeline.
// Consecutive permanent-failure counts are kept in memory only: losing
// them on restart just means a deactivation takes a few extra ticks.
type Scheduler struct {
	store            storage.Storage
	runner           Runner
	sender           Sender
	log              *slog.Logger
	tick             time.Duration
	concurrency      int
	failureThreshold int
	lookback         time.Duration

	mu       sync.Mutex
	failures map[int64]int
}

// New creates a Scheduler with default timing: a 1-minute tick, 4 parallel
// runs, deactivation after 5 consecutive permanent failures, and a 24h
// look-back for never-fetched subscriptions.
func New(store storage.Storage, runner Runner, sender Sender, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:            store,
		runner:           runner,
		sender:           sender,
		log:              log,
		tick:             1 * time.Minute,
		concurrency:      4,
		failureThreshold: 5,
		lookback:         24 * time.Hour,
		failures:         make(map[int64]int),
	}
}

// SetTickInterval overrides the default 1-minute tick.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// SetConcurrency caps how many ingestion runs execute in parallel per tick.
func (s *Scheduler) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// SetFailureThreshold overrides how many consecutive permanent failures
// deactivate a subscription.
func (s *Scheduler) SetFailureThreshold(n int) {
	if n > 0 {
		s.failureThreshold = n
	}
}

// SetLookback overrides the fetch window used for never-fetched subscriptions.
func (s *Scheduler) SetLookback(d time.Duration) {
	if d > 0 {
		s.lookback = d
	}
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

// checkAll processes every due subscription once. Runs are independent:
// one slow or failing source never delays or aborts the others beyond
// occupying a worker slot.
func (s *Scheduler) checkAll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		s.log.Error("list active subscriptions", "error", err)
		return
	}

	now := time.Now().UTC()
	var due []model.Subscription
	for _, sub := range subs {
		if sub.Due(now) {
			due = append(due, sub)
		}
	}
	if len(due) == 0 {
		return
	}

	// Deterministic processing order.
	sort.Slice(due, func(i, j int) bool {
		if due[i].Platform != due[j].Platform {
			return due[i].Platform < due[j].Platform
		}
		return due[i].SourceIdentifier < due[j].SourceIdentifier
	})

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, sub := range due {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.process(ctx, sub, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) process(ctx context.Context, sub model.Subscription, now time.Time) {
	s.log.Debug("checking subscription",
		"subscription_id", sub.ID, "platform", sub.Platform, "source", sub.SourceIdentifier)

	since := now.Add(-s.lookback)
	if sub.LastFetchedAt != nil {
		since = *sub.LastFetchedAt
	}

	res := s.runner.Run(ctx, sub, since)

	// Always advance the watermark so a failing or empty source is not
	// re-polled before its interval elapses again.
	if err := s.store.UpdateSubscriptionLastFetch(ctx, sub.ID, now); err != nil {
		s.log.Error("update last fetch", "subscription_id", sub.ID, "error", err)
	}

	if res.Failed() {
		s.log.Error("ingestion failed",
			"subscription_id", sub.ID, "platform", sub.Platform,
			"source", sub.SourceIdentifier, "error", res.Err)
		if source.IsPermanent(res.Err) {
			s.recordPermanentFailure(ctx, sub)
		}
		return
	}

	s.mu.Lock()
	delete(s.failures, sub.ID)
	s.mu.Unlock()

	if res.Inserted > 0 {
		s.log.Info("collected notes",
			"subscription_id", sub.ID, "platform", sub.Platform, "count", res.Inserted)
		s.notify(ctx, sub, res.Inserted)
	}
}

func (s *Scheduler) recordPermanentFailure(ctx context.Context, sub model.Subscription) {
	s.mu.Lock()
	s.failures[sub.ID]++
	count := s.failures[sub.ID]
	if count >= s.failureThreshold {
		delete(s.failures, sub.ID)
	}
	s.mu.Unlock()

	if count < s.failureThreshold {
		return
	}

	if err := s.store.SetSubscriptionActive(ctx, sub.ID, false); err != nil {
		s.log.Error("deactivate subscription", "subscription_id", sub.ID, "error", err)
		return
	}
	s.log.Warn("subscription deactivated after repeated failures",
		"subscription_id", sub.ID, "platform", sub.Platform,
		"source", sub.SourceIdentifier, "failures", count)
	s.sender.SendMessage(sub.UserID, fmt.Sprintf(
		"Source \"%s\" (%s) kept failing and was paused. Use /resume %d to try again.",
		sub.DisplayName, sub.Platform, sub.ID))
}

func (s *Scheduler) notify(ctx context.Context, sub model.Subscription, count int) {
	settings, err := s.store.GetOrCreateUserSettings(ctx, sub.UserID)
	if err != nil {
		s.log.Error("load settings", "user_id", sub.UserID, "error", err)
		return
	}
	if !settings.Notifications {
		return
	}
	s.sender.SendMessage(sub.UserID, fmt.Sprintf(
		"%d new note(s) from \"%s\". Use /list to read them.", count, sub.DisplayName))
}
