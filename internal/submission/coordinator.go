// Package submission sends validated drafts to the log API. It guarantees
// one in-flight attempt per editor session, reuses the draft id as the
// idempotency key on every network try and flattens the server envelope
// exactly once before anything else sees the record.
package submission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charmbracelet/log"

	"github.com/pharrrodev/type2lyfe-sub001/internal/editor"
	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultSkewTolerance = 5 * time.Minute
	DefaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond
)

type Gateway interface {
	CreateLog(ctx context.Context, entry record.Record) (Envelope, error)
}

type SessionTracker interface {
	IsCurrent(ticket editor.Ticket) bool
}

// Listener observes optimistic inserts and resolved attempts. Calls happen
// outside the coordinator's lock, in the order attempts resolve.
type Listener interface {
	OnSubmitting(entry record.Record)
	OnOutcome(outcome Outcome)
}

type Options struct {
	Timeout       time.Duration
	SkewTolerance time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
	Logger        *log.Logger
}

type Outcome struct {
	Ticket  editor.Ticket
	DraftID string
	// Record is the flattened confirmed record, or the submitted draft on failure.
	Record  record.Record
	Failure *Failure
	// Superseded is set when the editor session that issued the attempt was
	// closed or replaced before the outcome arrived.
	Superseded bool
	// Late marks a confirmation that arrived after the attempt timed out.
	Late      bool
	ClockSkew time.Duration
}

func (outcome Outcome) Confirmed() bool {
	return outcome.Failure == nil
}

// Resolution converts the outcome for the editor. Confirmed outcomes carry
// a nil error.
func (outcome Outcome) Resolution() editor.Resolution {
	resolution := editor.Resolution{Ticket: outcome.Ticket, Record: outcome.Record}
	if outcome.Failure != nil {
		resolution.Err = outcome.Failure
	}
	return resolution
}

type attemptResult struct {
	envelope Envelope
	err      error
}

type Coordinator struct {
	gateway   Gateway
	sessions  SessionTracker
	options   Options
	logger    *log.Logger
	mu        sync.Mutex
	inFlight  map[uint64]string
	listeners []Listener
}

func NewCoordinator(gateway Gateway, sessions SessionTracker, options Options) *Coordinator {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.SkewTolerance <= 0 {
		options.SkewTolerance = DefaultSkewTolerance
	}
	if options.MaxRetries == 0 {
		options.MaxRetries = DefaultMaxRetries
	}
	if options.RetryInterval <= 0 {
		options.RetryInterval = defaultRetryInterval
	}
	return &Coordinator{
		gateway:  gateway,
		sessions: sessions,
		options:  options,
		logger:   logging.OrDiscard(options.Logger),
		inFlight: map[uint64]string{},
	}
}

func (coordinator *Coordinator) Subscribe(listener Listener) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	coordinator.listeners = append(coordinator.listeners, listener)
}

// Submit sends entry for the editor session identified by ticket and waits
// at most Options.Timeout for the server. The request itself is never
// aborted: a confirmation that arrives after the timeout is still published
// to listeners with Late set.
func (coordinator *Coordinator) Submit(ctx context.Context, ticket editor.Ticket, entry record.Record) Outcome {
	if !coordinator.acquire(ticket) {
		coordinator.logger.Warn("submission already in flight", "draft_id", entry.ID, "log_type", entry.LogType)
		return Outcome{
			Ticket:  ticket,
			DraftID: entry.ID,
			Record:  entry,
			Failure: &Failure{Reason: ReasonAlreadySubmitting, Message: "a submission for this entry is already in progress"},
		}
	}

	entry.Status = record.StatusSubmitting
	for _, listener := range coordinator.snapshotListeners() {
		listener.OnSubmitting(entry)
	}

	done := make(chan attemptResult, 1)
	go func() {
		envelope, err := coordinator.send(context.WithoutCancel(ctx), entry)
		done <- attemptResult{envelope: envelope, err: err}
	}()

	timer := time.NewTimer(coordinator.options.Timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		coordinator.release(ticket)
		outcome := coordinator.resolve(ticket, entry, result)
		coordinator.publish(outcome)
		return outcome
	case <-timer.C:
	case <-ctx.Done():
	}

	coordinator.release(ticket)
	coordinator.logger.Warn("submission timed out", "draft_id", entry.ID, "log_type", entry.LogType, "timeout", coordinator.options.Timeout)
	outcome := Outcome{
		Ticket:     ticket,
		DraftID:    entry.ID,
		Record:     entry,
		Failure:    &Failure{Reason: ReasonTimeout, Message: "the server did not answer in time, please retry"},
		Superseded: !coordinator.isCurrent(ticket),
	}
	coordinator.publish(outcome)

	go coordinator.awaitLate(ticket, entry, done)
	return outcome
}

func (coordinator *Coordinator) awaitLate(ticket editor.Ticket, entry record.Record, done <-chan attemptResult) {
	result := <-done
	outcome := coordinator.resolve(ticket, entry, result)
	if !outcome.Confirmed() {
		coordinator.logger.Debug("late submission failed", "draft_id", entry.ID, "reason", outcome.Failure.Reason)
		return
	}
	outcome.Late = true
	coordinator.logger.Info("late submission confirmed", "draft_id", entry.ID, "id", outcome.Record.ID)
	coordinator.publish(outcome)
}

func (coordinator *Coordinator) send(ctx context.Context, entry record.Record) (Envelope, error) {
	var envelope Envelope
	operation := func() error {
		response, err := coordinator.gateway.CreateLog(ctx, entry)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		envelope = response
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = coordinator.options.RetryInterval
	policy.MaxElapsedTime = coordinator.options.Timeout
	notify := func(err error, wait time.Duration) {
		coordinator.logger.Debug("retrying submission", "draft_id", entry.ID, "wait", wait, "err", err)
	}

	err := backoff.RetryNotify(operation, backoff.WithMaxRetries(policy, coordinator.options.MaxRetries), notify)
	return envelope, err
}

func (coordinator *Coordinator) resolve(ticket editor.Ticket, entry record.Record, result attemptResult) Outcome {
	outcome := Outcome{
		Ticket:     ticket,
		DraftID:    entry.ID,
		Record:     entry,
		Superseded: !coordinator.isCurrent(ticket),
	}

	if result.err != nil {
		outcome.Failure = classify(result.err)
		outcome.Record.Status = record.StatusFailed
		coordinator.logger.Warn("submission failed", "draft_id", entry.ID, "log_type", entry.LogType, "reason", outcome.Failure.Reason, "err", result.err)
		return outcome
	}

	confirmed, err := Flatten(entry, result.envelope)
	if err != nil {
		outcome.Failure = &Failure{Reason: ReasonNetwork, Message: "the server response could not be read", Err: err}
		outcome.Record.Status = record.StatusFailed
		coordinator.logger.Error("unreadable submission response", "draft_id", entry.ID, "err", err)
		return outcome
	}
	outcome.Record = confirmed

	skew := confirmed.Timestamp.Sub(entry.Timestamp)
	if skew > coordinator.options.SkewTolerance || -skew > coordinator.options.SkewTolerance {
		outcome.ClockSkew = skew
		coordinator.logger.Warn("server timestamp differs from client timestamp", "draft_id", entry.ID, "id", confirmed.ID, "skew", skew)
	}
	coordinator.logger.Debug("submission confirmed", "draft_id", entry.ID, "id", confirmed.ID, "log_type", confirmed.LogType, "superseded", outcome.Superseded)
	return outcome
}

func (coordinator *Coordinator) publish(outcome Outcome) {
	for _, listener := range coordinator.snapshotListeners() {
		listener.OnOutcome(outcome)
	}
}

func (coordinator *Coordinator) acquire(ticket editor.Ticket) bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if _, busy := coordinator.inFlight[ticket.Generation]; busy {
		return false
	}
	coordinator.inFlight[ticket.Generation] = ticket.DraftID
	return true
}

func (coordinator *Coordinator) release(ticket editor.Ticket) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	delete(coordinator.inFlight, ticket.Generation)
}

// InFlight reports whether an attempt for the ticket's session is outstanding.
func (coordinator *Coordinator) InFlight(ticket editor.Ticket) bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	_, busy := coordinator.inFlight[ticket.Generation]
	return busy
}

func (coordinator *Coordinator) snapshotListeners() []Listener {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return append([]Listener(nil), coordinator.listeners...)
}

func (coordinator *Coordinator) isCurrent(ticket editor.Ticket) bool {
	if coordinator.sessions == nil {
		return true
	}
	return coordinator.sessions.IsCurrent(ticket)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var coded statusCoder
	if errors.As(err, &coded) {
		return coded.HTTPStatus() >= 500
	}
	return true
}
