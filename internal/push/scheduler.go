package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/license"
	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/store"
)

// Scheduler sends the daily "you haven't logged yet" reminder to owners
// with push subscriptions and unlogged challenges, and warns trial
// accounts shortly before they expire.
type Scheduler struct {
	mu         sync.RWMutex
	service    *Service
	push       *store.PushStore
	challenges *store.ChallengeStore
	logbooks   *logbook.Manager
	license    *license.Service
	logger     *slog.Logger
	interval   time.Duration
	remindHour int
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewScheduler creates a reminder scheduler. Reminders go out in the
// first tick at or after remindHour (UTC) each day.
func NewScheduler(svc *Service, pushStore *store.PushStore, challengeStore *store.ChallengeStore, logbooks *logbook.Manager, licenseSvc *license.Service, logger *slog.Logger, remindHour int) *Scheduler {
	return &Scheduler{
		service:    svc,
		push:       pushStore,
		challenges: challengeStore,
		logbooks:   logbooks,
		license:    licenseSvc,
		logger:     logger.With("component", "push-scheduler"),
		interval:   60 * time.Second,
		remindHour: remindHour,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() < s.remindHour {
		return
	}

	ownerIDs, err := s.push.ListOwnerIDs()
	if err != nil {
		s.logger.Error("list push owners", "error", err)
		return
	}

	for _, ownerID := range ownerIDs {
		s.checkDailyReminder(ctx, ownerID, now)
		s.checkTrialExpiring(ctx, ownerID)
	}
}

// checkTrialExpiring warns a trial account once when three or fewer days
// remain. Upgraded and already-expired owners are skipped.
func (s *Scheduler) checkTrialExpiring(ctx context.Context, ownerID string) {
	access, err := s.license.Check(ownerID)
	if err != nil {
		s.logger.Error("check trial", "owner", ownerID, "error", err)
		return
	}
	if access.Upgraded || access.Expired || access.TrialDaysLeft > 3 {
		return
	}

	sent, err := s.push.WasSent(ownerID, model.NotifTypeTrialExpiring, "trial")
	if err != nil || sent {
		return
	}

	payload := Payload{
		Title: "ChallengerDaily",
		Body:  fmt.Sprintf("Your free trial ends in %d days. Upgrade once to keep logging forever.", access.TrialDaysLeft),
		URL:   "/upgrade",
		Tag:   "trial-expiring",
	}

	subs, err := s.push.ListByOwner(ownerID)
	if err != nil {
		s.logger.Error("list subscriptions", "owner", ownerID, "error", err)
		return
	}
	for _, sub := range subs {
		if err := s.service.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Error("send trial warning", "owner", ownerID, "error", err)
			}
		}
	}

	if err := s.push.RecordSent(ownerID, model.NotifTypeTrialExpiring, "trial"); err != nil {
		s.logger.Error("record trial warning sent", "owner", ownerID, "error", err)
	}
}

func (s *Scheduler) checkDailyReminder(ctx context.Context, ownerID string, now time.Time) {
	refID := now.Format("2006-01-02")

	sent, err := s.push.WasSent(ownerID, model.NotifTypeDailyReminder, refID)
	if err != nil {
		s.logger.Error("check reminder sent", "owner", ownerID, "error", err)
		return
	}
	if sent {
		return
	}

	challenges, err := s.challenges.ListByOwner(ownerID)
	if err != nil {
		s.logger.Error("list challenges", "owner", ownerID, "error", err)
		return
	}

	engine, err := s.logbooks.Engine(ownerID)
	if err != nil {
		s.logger.Error("load logbook", "owner", ownerID, "error", err)
		return
	}

	pending := 0
	for _, ch := range challenges {
		if !engine.HasLoggedInCurrentPeriod(ch.ID) {
			pending++
		}
	}
	if pending == 0 {
		// Everything logged; mark the day done so we stop re-checking
		s.push.RecordSent(ownerID, model.NotifTypeDailyReminder, refID)
		return
	}

	body := fmt.Sprintf("You have %d challenges waiting for today's log", pending)
	if pending == 1 {
		body = "One challenge is waiting for today's log"
	}
	payload := Payload{
		Title: "ChallengerDaily",
		Body:  body,
		URL:   "/",
		Tag:   "daily-reminder",
	}

	subs, err := s.push.ListByOwner(ownerID)
	if err != nil {
		s.logger.Error("list subscriptions", "owner", ownerID, "error", err)
		return
	}
	for _, sub := range subs {
		if err := s.service.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Error("send reminder", "owner", ownerID, "error", err)
			}
		}
	}

	if err := s.push.RecordSent(ownerID, model.NotifTypeDailyReminder, refID); err != nil {
		s.logger.Error("record reminder sent", "owner", ownerID, "error", err)
	}
}
