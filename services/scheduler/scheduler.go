package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JatinSri1909/slack-connect-server/models"
	"github.com/JatinSri1909/slack-connect-server/services/retry"
)

// MessageStore is the persistence surface the scheduler needs. The conditional
// claim is the sole source of mutual exclusion across processes.
type MessageStore interface {
	GetDueMessages(ctx context.Context, now time.Time) ([]*models.ScheduledMessage, error)
	ClaimScheduledMessage(ctx context.Context, id string) (bool, error)
	FinalizeScheduledMessage(ctx context.Context, id string, status models.ScheduledMessageStatus) (bool, error)
	CountPendingMessages(ctx context.Context) (int, error)
}

// MessageSender delivers one message to one channel in one workspace
type MessageSender interface {
	Deliver(ctx context.Context, teamID, channelID, body string) error
}

// TaskWrapper decorates a delivery cycle, typically with error alerting. Both
// timer-driven and manually triggered cycles run through it.
type TaskWrapper func(taskName string, task func() error) func() error

// DeliveryScheduler owns the due-message discovery loop: it periodically
// claims due messages exactly once and dispatches them sequentially. A
// process-wide single-flight flag ensures cycles never pile up - a tick that
// arrives while a cycle is in flight is skipped, not queued.
type DeliveryScheduler struct {
	store         MessageStore
	sender        MessageSender
	interval      time.Duration
	courtesyDelay time.Duration
	wrapTask      TaskWrapper

	inFlight atomic.Bool

	// storagePolicy retries claim/finalize updates on short-lived row
	// contention; the conditional update stays the exclusivity gate
	storagePolicy retry.Policy

	// now and sleep are overridable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDeliveryScheduler(
	store MessageStore,
	sender MessageSender,
	interval time.Duration,
	courtesyDelay time.Duration,
	wrapTask TaskWrapper,
) *DeliveryScheduler {
	return &DeliveryScheduler{
		store:         store,
		sender:        sender,
		interval:      interval,
		courtesyDelay: courtesyDelay,
		wrapTask:      wrapTask,
		storagePolicy: retry.StoragePolicy(),
		now:           time.Now,
		sleep:         sleepContext,
	}
}

// Start performs a read-only reconciliation pass for observability and then
// launches the timer loop. Overdue rows are not processed eagerly - they are
// picked up on the next tick.
func (s *DeliveryScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		log.Printf("⚠️ Delivery scheduler already started")
		return
	}

	if count, err := s.store.CountPendingMessages(ctx); err != nil {
		log.Printf("❌ Failed to count pending messages on startup: %v", err)
	} else {
		log.Printf("📋 Delivery scheduler starting with %d pending messages, interval %s", count, s.interval)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				log.Printf("📋 Delivery scheduler stopping")
				return
			case <-ticker.C:
				if err := s.runCycle(loopCtx); err != nil {
					log.Printf("❌ Delivery cycle failed: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the timer loop and waits for any in-flight cycle to finish
func (s *DeliveryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
}

// TriggerNow runs one delivery cycle synchronously, subject to the same
// single-flight guard as the timer - a manual trigger racing the internal
// timer cannot cause double-claims.
func (s *DeliveryScheduler) TriggerNow(ctx context.Context) error {
	return s.runCycle(ctx)
}

// runCycle routes every cycle through the task wrapper so timer-driven and
// manual failures alert the same way
func (s *DeliveryScheduler) runCycle(ctx context.Context) error {
	cycle := func() error { return s.ProcessDueMessages(ctx) }
	if s.wrapTask != nil {
		return s.wrapTask("delivery cycle", cycle)()
	}
	return cycle()
}

// ProcessDueMessages runs one cycle: discover due rows, then sequentially
// claim and dispatch each one. Per-message failures are isolated - one
// message's failure never blocks the rest of the cycle.
func (s *DeliveryScheduler) ProcessDueMessages(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Printf("📋 Delivery cycle already in flight, skipping")
		return nil
	}
	defer s.inFlight.Store(false)

	due, err := s.store.GetDueMessages(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to query due messages: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	log.Printf("📋 Starting delivery cycle with %d due messages", len(due))
	for i, message := range due {
		s.processMessage(ctx, message)

		// Courtesy delay between sends to avoid burst-triggered rate limits
		if i < len(due)-1 && s.courtesyDelay > 0 {
			s.sleep(ctx, s.courtesyDelay)
		}
	}

	log.Printf("📋 Completed delivery cycle")
	return nil
}

func (s *DeliveryScheduler) processMessage(ctx context.Context, message *models.ScheduledMessage) {
	var claimed bool
	err := s.storagePolicy.Execute(ctx, fmt.Sprintf("claim message %s", message.ID), func() error {
		var claimErr error
		claimed, claimErr = s.store.ClaimScheduledMessage(ctx, message.ID)
		return claimErr
	})
	if err != nil {
		log.Printf("❌ Failed to claim message %s: %v", message.ID, err)
		return
	}
	if !claimed {
		// Another claimer won the race or the row was cancelled concurrently
		return
	}

	status := models.ScheduledMessageStatusSent
	if err := s.sender.Deliver(ctx, message.SlackTeamID, message.ChannelID, message.Message); err != nil {
		log.Printf("❌ Failed to deliver message %s to channel %s: %v", message.ID, message.ChannelID, err)
		status = models.ScheduledMessageStatusFailed
	}

	var finalized bool
	err = s.storagePolicy.Execute(ctx, fmt.Sprintf("finalize message %s", message.ID), func() error {
		var finalizeErr error
		finalized, finalizeErr = s.store.FinalizeScheduledMessage(ctx, message.ID, status)
		return finalizeErr
	})
	if err != nil {
		log.Printf("❌ Failed to finalize message %s as %s: %v", message.ID, status, err)
		return
	}
	if !finalized {
		log.Printf("⚠️ Message %s was not in processing state when finalizing as %s", message.ID, status)
		return
	}

	log.Printf("📋 Message %s finalized as %s", message.ID, status)
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
