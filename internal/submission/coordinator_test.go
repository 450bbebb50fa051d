package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pharrrodev/type2lyfe-sub001/internal/editor"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

type stubStatusError struct {
	status int
}

func (err stubStatusError) Error() string   { return fmt.Sprintf("status %d", err.status) }
func (err stubStatusError) HTTPStatus() int { return err.status }

type stubGateway struct {
	mu       sync.Mutex
	draftIDs []string
	started  chan struct{}
	release  chan struct{}
	errs     []error
	response string
}

func (gateway *stubGateway) CreateLog(ctx context.Context, entry record.Record) (Envelope, error) {
	gateway.mu.Lock()
	gateway.draftIDs = append(gateway.draftIDs, entry.ID)
	call := len(gateway.draftIDs)
	var err error
	if call <= len(gateway.errs) {
		err = gateway.errs[call-1]
	}
	gateway.mu.Unlock()

	if gateway.started != nil && call == 1 {
		close(gateway.started)
	}
	if gateway.release != nil {
		<-gateway.release
	}
	if err != nil {
		return Envelope{}, err
	}

	response := gateway.response
	if response == "" {
		response = `{"id":"01HSERVER","timestamp":"2026-03-01T08:00:05Z","data":{"value":8.5}}`
	}
	envelope := Envelope{}
	if err := json.Unmarshal([]byte(response), &envelope); err != nil {
		return Envelope{}, err
	}
	return envelope, nil
}

func (gateway *stubGateway) calls() []string {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	return append([]string(nil), gateway.draftIDs...)
}

type stubTracker struct {
	current bool
}

func (tracker stubTracker) IsCurrent(editor.Ticket) bool { return tracker.current }

type recordingListener struct {
	mu         sync.Mutex
	submitting []record.Record
	outcomes   []Outcome
	notify     chan Outcome
}

func (listener *recordingListener) OnSubmitting(entry record.Record) {
	listener.mu.Lock()
	defer listener.mu.Unlock()
	listener.submitting = append(listener.submitting, entry)
}

func (listener *recordingListener) OnOutcome(outcome Outcome) {
	listener.mu.Lock()
	listener.outcomes = append(listener.outcomes, outcome)
	listener.mu.Unlock()
	if listener.notify != nil {
		listener.notify <- outcome
	}
}

func glucoseDraft() record.Record {
	return record.Record{
		ID:        record.NewPendingID(),
		LogType:   record.LogTypeGlucose,
		Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Payload:   record.GlucosePayload{Value: 8.5, Unit: record.GlucoseMmolL, MealContext: record.MealContextBeforeMeal},
		Source:    record.ModeManual,
		Status:    record.StatusSubmitting,
	}
}

func TestSubmitConfirmed(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{}
	listener := &recordingListener{}
	coordinator := NewCoordinator(gateway, stubTracker{current: true}, Options{})
	coordinator.Subscribe(listener)

	draft := glucoseDraft()
	outcome := coordinator.Submit(context.Background(), editor.Ticket{Generation: 1, DraftID: draft.ID}, draft)
	if !outcome.Confirmed() {
		t.Fatalf("expected confirmed outcome, got %v", outcome.Failure)
	}
	if outcome.Record.ID != "01HSERVER" || outcome.DraftID != draft.ID {
		t.Fatalf("unexpected ids %q / %q", outcome.Record.ID, outcome.DraftID)
	}
	if outcome.Record.Status != record.StatusConfirmed || outcome.Superseded || outcome.ClockSkew != 0 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	payload := outcome.Record.Payload.(record.GlucosePayload)
	if payload.Unit != record.GlucoseMmolL || payload.MealContext != record.MealContextBeforeMeal {
		t.Fatalf("expected submitted fields to survive flattening, got %#v", payload)
	}
	if len(listener.submitting) != 1 || len(listener.outcomes) != 1 {
		t.Fatalf("expected one optimistic insert and one outcome, got %d/%d", len(listener.submitting), len(listener.outcomes))
	}
}

func TestSubmitTwiceMakesOneNetworkCall(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{started: make(chan struct{}), release: make(chan struct{})}
	coordinator := NewCoordinator(gateway, stubTracker{current: true}, Options{})

	draft := glucoseDraft()
	ticket := editor.Ticket{Generation: 7, DraftID: draft.ID}
	first := make(chan Outcome, 1)
	go func() {
		first <- coordinator.Submit(context.Background(), ticket, draft)
	}()
	<-gateway.started

	if !coordinator.InFlight(ticket) {
		t.Fatal("expected attempt to be in flight")
	}
	second := coordinator.Submit(context.Background(), ticket, draft)
	if second.Failure == nil || second.Failure.Reason != ReasonAlreadySubmitting {
		t.Fatalf("expected AlreadySubmitting, got %#v", second.Failure)
	}

	close(gateway.release)
	if outcome := <-first; !outcome.Confirmed() {
		t.Fatalf("expected first attempt to be confirmed, got %v", outcome.Failure)
	}
	if calls := gateway.calls(); len(calls) != 1 {
		t.Fatalf("expected exactly one network call, got %d", len(calls))
	}
	if coordinator.InFlight(ticket) {
		t.Fatal("expected in-flight slot to be released")
	}
}

func TestRetryReusesDraftID(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{errs: []error{stubStatusError{status: 503}, errors.New("connection reset")}}
	coordinator := NewCoordinator(gateway, stubTracker{current: true}, Options{RetryInterval: time.Millisecond})

	draft := glucoseDraft()
	outcome := coordinator.Submit(context.Background(), editor.Ticket{Generation: 1, DraftID: draft.ID}, draft)
	if !outcome.Confirmed() {
		t.Fatalf("expected confirmed after retries, got %v", outcome.Failure)
	}
	calls := gateway.calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 network tries, got %d", len(calls))
	}
	for _, id := range calls {
		if id != draft.ID {
			t.Fatalf("expected every try to carry draft id %s, got %s", draft.ID, id)
		}
	}
}

func TestFailureReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		want  Reason
		calls int
	}{
		{name: "validation", err: stubStatusError{status: 400}, want: ReasonValidation, calls: 1},
		{name: "session expired", err: stubStatusError{status: 401}, want: ReasonSessionExpired, calls: 1},
		{name: "setup required", err: stubStatusError{status: 409}, want: ReasonSetupRequired, calls: 1},
		{name: "server error", err: stubStatusError{status: 502}, want: ReasonNetwork, calls: 2},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			gateway := &stubGateway{errs: []error{test.err, test.err, test.err}}
			listener := &recordingListener{}
			coordinator := NewCoordinator(gateway, stubTracker{current: true}, Options{RetryInterval: time.Millisecond, MaxRetries: 1})
			coordinator.Subscribe(listener)

			draft := glucoseDraft()
			outcome := coordinator.Submit(context.Background(), editor.Ticket{Generation: 1, DraftID: draft.ID}, draft)
			if outcome.Failure == nil || outcome.Failure.Reason != test.want {
				t.Fatalf("expected %s, got %#v", test.want, outcome.Failure)
			}
			if len(gateway.calls()) != test.calls {
				t.Fatalf("expected %d calls, got %d", test.calls, len(gateway.calls()))
			}
			if outcome.Record.ID != draft.ID || outcome.Record.Status != record.StatusFailed {
				t.Fatalf("expected failed draft to be returned intact, got %#v", outcome.Record)
			}
			if resolution := outcome.Resolution(); resolution.Err == nil {
				t.Fatal("expected resolution to carry the failure")
			}
		})
	}
}

func TestTimeoutThenLateConfirmation(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{release: make(chan struct{})}
	listener := &recordingListener{notify: make(chan Outcome, 2)}
	coordinator := NewCoordinator(gateway, stubTracker{current: true}, Options{Timeout: 20 * time.Millisecond})
	coordinator.Subscribe(listener)

	draft := glucoseDraft()
	outcome := coordinator.Submit(context.Background(), editor.Ticket{Generation: 1, DraftID: draft.ID}, draft)
	if outcome.Failure == nil || outcome.Failure.Reason != ReasonTimeout {
		t.Fatalf("expected timeout, got %#v", outcome.Failure)
	}
	if !outcome.Failure.Retryable() {
		t.Fatal("timeout must be retryable")
	}
	if timedOut := <-listener.notify; timedOut.Failure == nil {
		t.Fatal("expected listeners to see the timeout first")
	}

	close(gateway.release)
	select {
	case late := <-listener.notify:
		if !late.Confirmed() || !late.Late || late.Record.ID != "01HSERVER" {
			t.Fatalf("unexpected late outcome %#v", late)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late confirmation was not published")
	}
}

func TestSupersededOutcomeIsStillPublished(t *testing.T) {
	t.Parallel()

	listener := &recordingListener{}
	coordinator := NewCoordinator(&stubGateway{}, stubTracker{current: false}, Options{})
	coordinator.Subscribe(listener)

	draft := glucoseDraft()
	outcome := coordinator.Submit(context.Background(), editor.Ticket{Generation: 3, DraftID: draft.ID}, draft)
	if !outcome.Confirmed() || !outcome.Superseded {
		t.Fatalf("expected superseded confirmation, got %#v", outcome)
	}
	if len(listener.outcomes) != 1 || !listener.outcomes[0].Superseded {
		t.Fatalf("expected the feed listener to receive the superseded outcome, got %#v", listener.outcomes)
	}
}

func TestClockSkewIsReported(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{response: `{"id":"a1","timestamp":"2026-03-01T09:00:00Z","data":{"value":8.5}}`}
	coordinator := NewCoordinator(gateway, stubTracker{current: true}, Options{})

	draft := glucoseDraft()
	outcome := coordinator.Submit(context.Background(), editor.Ticket{Generation: 1, DraftID: draft.ID}, draft)
	if outcome.ClockSkew != time.Hour {
		t.Fatalf("expected 1h skew, got %v", outcome.ClockSkew)
	}
	if !outcome.Record.Timestamp.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("server timestamp must be authoritative, got %v", outcome.Record.Timestamp)
	}
}

func TestFlattenEnvelope(t *testing.T) {
	t.Parallel()

	submitted := glucoseDraft()
	submitted.Payload = record.GlucosePayload{Value: 140, Unit: record.GlucoseMgDL}

	envelope := Envelope{}
	if err := json.Unmarshal([]byte(`{"id":"x","timestamp":"2026-03-01T08:00:00Z","data":{"value":142}}`), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	flat, err := Flatten(submitted, envelope)
	if err != nil {
		t.Fatalf("Flatten() unexpected error: %v", err)
	}
	if flat.ID != "x" || !flat.Timestamp.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected identity %q %v", flat.ID, flat.Timestamp)
	}
	if payload := flat.Payload.(record.GlucosePayload); payload.Value != 142 || payload.Unit != record.GlucoseMgDL {
		t.Fatalf("unexpected payload %#v", payload)
	}

	encoded, err := json.Marshal(flat)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(encoded), `"data"`) || !strings.Contains(string(encoded), `"value":142`) {
		t.Fatalf("expected flat record, got %s", encoded)
	}
}

func TestFlattenWithoutData(t *testing.T) {
	t.Parallel()

	submitted := glucoseDraft()
	envelope := Envelope{}
	if err := json.Unmarshal([]byte(`{"id":42,"timestamp":"bad","value":9.1}`), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	flat, err := Flatten(submitted, envelope)
	if err != nil {
		t.Fatalf("Flatten() unexpected error: %v", err)
	}
	if flat.ID != "42" {
		t.Fatalf("expected numeric id to be kept, got %q", flat.ID)
	}
	if !flat.Timestamp.Equal(submitted.Timestamp) {
		t.Fatalf("expected client timestamp fallback, got %v", flat.Timestamp)
	}
	if payload := flat.Payload.(record.GlucosePayload); payload.Value != 9.1 {
		t.Fatalf("expected top-level value, got %#v", payload)
	}

	if _, err := Flatten(submitted, Envelope{}); !errors.Is(err, ErrMissingServerID) {
		t.Fatalf("expected ErrMissingServerID, got %v", err)
	}
}
