package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
	"github.com/pharrrodev/type2lyfe-sub001/internal/submission"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type stubHistory struct {
	pages   map[string]Page
	cursors []string
	err     error
}

func (history *stubHistory) FetchHistory(ctx context.Context, cursor string, limit int) (Page, error) {
	history.cursors = append(history.cursors, cursor)
	if history.err != nil {
		return Page{}, history.err
	}
	return history.pages[cursor], nil
}

func confirmedRecord(id string, logType record.LogType, at time.Time) record.Record {
	return record.Record{
		ID:        id,
		LogType:   logType,
		Timestamp: at,
		Payload:   record.EmptyPayload(logType),
		Source:    record.ModeManual,
		Status:    record.StatusConfirmed,
	}
}

func historyPage(count int) Page {
	records := make([]record.Record, 0, count)
	for index := 0; index < count; index++ {
		records = append(records, confirmedRecord(fmt.Sprintf("h%d", index), record.LogTypeWeight, baseTime.Add(-time.Duration(index+1)*time.Hour)))
	}
	return Page{Records: records}
}

func ids(records []record.Record) []string {
	result := make([]string, 0, len(records))
	for _, item := range records {
		result = append(result, item.ID)
	}
	return result
}

func TestConfirmedOutcomeIsImmediatelyVisible(t *testing.T) {
	t.Parallel()

	for _, logType := range record.AllLogTypes() {
		logType := logType
		t.Run(string(logType), func(t *testing.T) {
			t.Parallel()

			aggregator := NewAggregator(nil, Options{})
			aggregator.Refresh(historyPage(3))

			draft := record.NewDraft(logType, record.ModeManual, baseTime)
			confirmed := confirmedRecord("srv-1", logType, baseTime)
			aggregator.OnOutcome(submission.Outcome{DraftID: draft.ID, Record: confirmed})

			feed := aggregator.CurrentFeed()
			if len(feed) != 4 {
				t.Fatalf("expected 4 entries, got %v", ids(feed))
			}
			if feed[0].ID != "srv-1" {
				t.Fatalf("expected confirmed record on top, got %v", ids(feed))
			}
		})
	}
}

func TestOptimisticEntryReplacedInPlace(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(nil, Options{})
	aggregator.Refresh(historyPage(2))

	draft := record.NewDraft(record.LogTypeGlucose, record.ModeManual, baseTime)
	draft.Payload = record.GlucosePayload{Value: 8.5, Unit: record.GlucoseMmolL}
	aggregator.OnSubmitting(draft)

	feed := aggregator.CurrentFeed()
	if len(feed) != 3 || feed[0].ID != draft.ID || feed[0].Status != record.StatusSubmitting {
		t.Fatalf("expected optimistic entry on top, got %v", ids(feed))
	}

	// The server timestamp differs from the one the client showed.
	confirmed := confirmedRecord("srv-1", record.LogTypeGlucose, baseTime.Add(-30*time.Minute-time.Hour))
	aggregator.OnOutcome(submission.Outcome{DraftID: draft.ID, Record: confirmed})

	feed = aggregator.CurrentFeed()
	if len(feed) != 3 {
		t.Fatalf("expected no duplicate, got %v", ids(feed))
	}
	if feed[0].ID != "srv-1" || feed[0].Status != record.StatusConfirmed {
		t.Fatalf("expected confirmed record to keep the top position, got %v", ids(feed))
	}
}

func TestFailedOutcomeRemovesOptimisticEntry(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(nil, Options{})
	draft := record.NewDraft(record.LogTypeMeal, record.ModeVoice, baseTime)
	aggregator.OnSubmitting(draft)

	aggregator.OnOutcome(submission.Outcome{
		DraftID: draft.ID,
		Record:  draft,
		Failure: &submission.Failure{Reason: submission.ReasonAlreadySubmitting},
	})
	if aggregator.Len() != 1 {
		t.Fatal("an AlreadySubmitting outcome must not touch the in-flight entry")
	}

	aggregator.OnOutcome(submission.Outcome{
		DraftID: draft.ID,
		Record:  draft,
		Failure: &submission.Failure{Reason: submission.ReasonNetwork},
	})
	if aggregator.Len() != 0 {
		t.Fatalf("expected optimistic entry to be removed, got %v", ids(aggregator.CurrentFeed()))
	}
}

func TestPendingEntryOfOtherTypeIsNotReplaced(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(nil, Options{})
	draft := record.NewDraft(record.LogTypeGlucose, record.ModeManual, baseTime)
	aggregator.OnSubmitting(draft)
	aggregator.OnOutcome(submission.Outcome{DraftID: draft.ID, Record: confirmedRecord("srv-1", record.LogTypeWeight, baseTime)})

	if aggregator.Len() != 2 {
		t.Fatalf("expected mismatched confirmation to be inserted separately, got %v", ids(aggregator.CurrentFeed()))
	}
}

func TestRefreshDeduplicatesAndHistoryWins(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(nil, Options{})
	draft := record.NewDraft(record.LogTypeGlucose, record.ModeManual, baseTime)
	aggregator.OnSubmitting(draft)
	confirmed := confirmedRecord("srv-1", record.LogTypeGlucose, baseTime)
	confirmed.Payload = record.GlucosePayload{Value: 8.5, Unit: record.GlucoseMmolL}
	aggregator.OnOutcome(submission.Outcome{DraftID: draft.ID, Record: confirmed})

	fromHistory := confirmedRecord("srv-1", record.LogTypeGlucose, baseTime.Add(-2*time.Hour))
	fromHistory.Payload = record.GlucosePayload{Value: 8.6, Unit: record.GlucoseMmolL}
	page := historyPage(2)
	page.Records = append([]record.Record{fromHistory}, page.Records...)
	aggregator.Refresh(page)

	feed := aggregator.CurrentFeed()
	if len(feed) != 3 {
		t.Fatalf("expected 3 entries, got %v", ids(feed))
	}
	if feed[0].ID != "srv-1" {
		t.Fatalf("expected pinned entry to keep its position, got %v", ids(feed))
	}
	if payload := feed[0].Payload.(record.GlucosePayload); payload.Value != 8.6 {
		t.Fatalf("expected history fields to win, got %#v", payload)
	}
	if !feed[0].Timestamp.Equal(fromHistory.Timestamp) {
		t.Fatalf("expected history timestamp, got %v", feed[0].Timestamp)
	}
}

func TestReloadDropsPinsAndKeepsSubmitting(t *testing.T) {
	t.Parallel()

	moved := confirmedRecord("srv-1", record.LogTypeGlucose, baseTime.Add(-3*time.Hour))
	history := &stubHistory{pages: map[string]Page{
		"": {Records: []record.Record{
			confirmedRecord("h0", record.LogTypeWeight, baseTime.Add(-time.Hour)),
			moved,
		}, NextCursor: "c1"},
		"c1": {Records: []record.Record{confirmedRecord("h9", record.LogTypeMeal, baseTime.Add(-5*time.Hour))}},
	}}
	aggregator := NewAggregator(history, Options{PageSize: 2})

	aggregator.OnOutcome(submission.Outcome{DraftID: "pending-a", Record: confirmedRecord("srv-1", record.LogTypeGlucose, baseTime)})
	inFlight := record.NewDraft(record.LogTypeMeal, record.ModePhoto, baseTime.Add(time.Minute))
	aggregator.OnSubmitting(inFlight)

	if err := aggregator.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() unexpected error: %v", err)
	}
	feed := aggregator.CurrentFeed()
	want := []string{inFlight.ID, "h0", "srv-1"}
	if fmt.Sprint(ids(feed)) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, ids(feed))
	}
	if !aggregator.HasMore() {
		t.Fatal("expected more history")
	}

	if err := aggregator.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore() unexpected error: %v", err)
	}
	if aggregator.Len() != 4 || aggregator.HasMore() {
		t.Fatalf("expected all history loaded, got %v", ids(aggregator.CurrentFeed()))
	}
	if fmt.Sprint(history.cursors) != fmt.Sprint([]string{"", "c1"}) {
		t.Fatalf("unexpected cursors %v", history.cursors)
	}
}

func TestTiesBreakByInsertionOrder(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(nil, Options{})
	aggregator.Refresh(Page{Records: []record.Record{
		confirmedRecord("newer", record.LogTypeWeight, baseTime),
		confirmedRecord("older", record.LogTypeWeight, baseTime),
	}})
	aggregator.OnOutcome(submission.Outcome{DraftID: "pending-x", Record: confirmedRecord("latest", record.LogTypeWeight, baseTime)})

	want := []string{"latest", "newer", "older"}
	if got := ids(aggregator.CurrentFeed()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	if err := NewAggregator(nil, Options{}).Reload(context.Background()); !errors.Is(err, ErrNoHistorySource) {
		t.Fatalf("expected ErrNoHistorySource, got %v", err)
	}
	failing := &stubHistory{err: errors.New("offline")}
	if err := NewAggregator(failing, Options{}).LoadMore(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

type blockingHistory struct {
	page    Page
	started chan struct{}
	release chan struct{}
}

func (history *blockingHistory) FetchHistory(ctx context.Context, cursor string, limit int) (Page, error) {
	history.started <- struct{}{}
	<-history.release
	return history.page, nil
}

func TestReloadKeepsRecordConfirmedDuringFetch(t *testing.T) {
	t.Parallel()

	history := &blockingHistory{
		page:    Page{Records: []record.Record{confirmedRecord("h0", record.LogTypeWeight, baseTime.Add(-time.Hour))}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	aggregator := NewAggregator(history, Options{})

	done := make(chan error, 1)
	go func() {
		done <- aggregator.Reload(context.Background())
	}()
	<-history.started

	aggregator.OnOutcome(submission.Outcome{DraftID: "pending-new", Record: confirmedRecord("srv-new", record.LogTypeGlucose, baseTime)})
	close(history.release)
	if err := <-done; err != nil {
		t.Fatalf("Reload() unexpected error: %v", err)
	}

	want := []string{"srv-new", "h0"}
	if got := ids(aggregator.CurrentFeed()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestReloadKeepsConfirmedRecordOutsideFirstPage(t *testing.T) {
	t.Parallel()

	older := confirmedRecord("srv-old", record.LogTypeGlucose, baseTime.Add(-48*time.Hour))
	history := &stubHistory{pages: map[string]Page{
		"":   {Records: []record.Record{confirmedRecord("h0", record.LogTypeWeight, baseTime.Add(-time.Hour))}, NextCursor: "c1"},
		"c1": {Records: []record.Record{older}},
	}}
	aggregator := NewAggregator(history, Options{PageSize: 1})
	aggregator.OnOutcome(submission.Outcome{DraftID: "pending-old", Record: older})

	if err := aggregator.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() unexpected error: %v", err)
	}
	want := []string{"h0", "srv-old"}
	if got := ids(aggregator.CurrentFeed()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v after reload, got %v", want, got)
	}

	if err := aggregator.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore() unexpected error: %v", err)
	}
	if got := ids(aggregator.CurrentFeed()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected history page to deduplicate, got %v", got)
	}
}

func TestLoadMoreKeepsHistoryOrderAcrossPages(t *testing.T) {
	t.Parallel()

	history := &stubHistory{pages: map[string]Page{
		"": {Records: []record.Record{
			confirmedRecord("a", record.LogTypeWeight, baseTime),
			confirmedRecord("b", record.LogTypeWeight, baseTime),
		}, NextCursor: "c1"},
		"c1": {Records: []record.Record{
			confirmedRecord("c", record.LogTypeWeight, baseTime),
			confirmedRecord("d", record.LogTypeWeight, baseTime),
		}},
	}}
	aggregator := NewAggregator(history, Options{PageSize: 2})

	if err := aggregator.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() unexpected error: %v", err)
	}
	if err := aggregator.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore() unexpected error: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	if got := ids(aggregator.CurrentFeed()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
