// Package feed keeps the recent-activity list: server history merged with
// records submitted in this session, deduplicated by id.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
	"github.com/pharrrodev/type2lyfe-sub001/internal/submission"
)

const DefaultPageSize = 20

var ErrNoHistorySource = errors.New("feed has no history source")

type Page struct {
	Records    []record.Record
	NextCursor string
}

type HistorySource interface {
	FetchHistory(ctx context.Context, cursor string, limit int) (Page, error)
}

type Options struct {
	PageSize int
	Logger   *log.Logger
}

// entry is one feed row. displayAt is the time the row sorts by; a pinned
// row keeps the position it was first shown at until the next Reload.
// session marks a row submitted here that no merged history page has
// contained yet; Reload keeps it. Rows appended from later history pages
// take negative sequence numbers so they rank below every row already shown.
type entry struct {
	record    record.Record
	seq       int64
	displayAt time.Time
	pinned    bool
	session   bool
}

type Aggregator struct {
	mu       sync.Mutex
	source   HistorySource
	pageSize int
	logger   *log.Logger
	entries  []*entry
	seq      int64
	tail     int64
	cursor   string
	loaded   bool
	hasMore  bool
}

func NewAggregator(source HistorySource, options Options) *Aggregator {
	if options.PageSize <= 0 {
		options.PageSize = DefaultPageSize
	}
	return &Aggregator{
		source:   source,
		pageSize: options.PageSize,
		logger:   logging.OrDiscard(options.Logger),
	}
}

// CurrentFeed returns the feed ordered by display time, newest first; ties
// go to the most recently inserted row.
func (aggregator *Aggregator) CurrentFeed() []record.Record {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()

	ordered := append([]*entry(nil), aggregator.entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].displayAt.Equal(ordered[j].displayAt) {
			return ordered[i].displayAt.After(ordered[j].displayAt)
		}
		return ordered[i].seq > ordered[j].seq
	})

	records := make([]record.Record, 0, len(ordered))
	for _, row := range ordered {
		records = append(records, row.record)
	}
	return records
}

func (aggregator *Aggregator) Len() int {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()
	return len(aggregator.entries)
}

// OnSubmitting shows a record optimistically, before the server answers.
func (aggregator *Aggregator) OnSubmitting(submitted record.Record) {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()

	submitted.Status = record.StatusSubmitting
	if row := aggregator.findLocked(submitted.ID); row != nil {
		row.record = submitted
		row.session = true
		return
	}
	aggregator.insertLocked(submitted, true).session = true
}

// OnOutcome patches the feed with a resolved attempt. Confirmed records are
// always applied, even when the editor that sent them is gone.
func (aggregator *Aggregator) OnOutcome(outcome submission.Outcome) {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()

	if outcome.Failure != nil {
		if outcome.Failure.Reason == submission.ReasonAlreadySubmitting {
			return
		}
		if row := aggregator.findLocked(outcome.DraftID); row != nil && row.record.Status == record.StatusSubmitting {
			aggregator.removeLocked(row)
		}
		return
	}

	confirmed := outcome.Record
	pending := aggregator.findLocked(outcome.DraftID)
	if pending != nil && pending.record.LogType != confirmed.LogType {
		aggregator.logger.Warn("confirmed record does not match pending entry", "draft_id", outcome.DraftID, "log_type", confirmed.LogType)
		pending = nil
	}
	existing := aggregator.findLocked(confirmed.ID)

	var row *entry
	switch {
	case existing != nil:
		existing.record = confirmed
		if pending != nil && pending != existing {
			aggregator.removeLocked(pending)
		}
		row = existing
	case pending != nil:
		pending.record = confirmed
		row = pending
	default:
		row = aggregator.insertLocked(confirmed, true)
	}
	row.session = true
	aggregator.logger.Debug("feed patched", "id", confirmed.ID, "draft_id", outcome.DraftID, "late", outcome.Late)
}

// Refresh merges a history page. On an id match history wins for every field;
// a pinned row keeps its display position.
func (aggregator *Aggregator) Refresh(page Page) {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()
	aggregator.mergeLocked(page.Records, false)
}

// Reload rebuilds the feed from the first history page. Rows submitted in
// this session that history has not returned yet are kept, including ones
// confirmed while the page was being fetched; every pin is dropped.
func (aggregator *Aggregator) Reload(ctx context.Context) error {
	page, err := aggregator.fetch(ctx, "")
	if err != nil {
		return err
	}

	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()

	kept := make([]*entry, 0, len(aggregator.entries))
	for _, row := range aggregator.entries {
		if !row.session && row.record.Status != record.StatusSubmitting {
			continue
		}
		row.pinned = false
		row.displayAt = row.record.Timestamp
		kept = append(kept, row)
	}
	aggregator.entries = kept
	aggregator.mergeLocked(page.Records, false)
	aggregator.cursor = page.NextCursor
	aggregator.hasMore = page.NextCursor != ""
	aggregator.loaded = true
	return nil
}

// LoadMore appends the next history page, loading the first one if needed.
func (aggregator *Aggregator) LoadMore(ctx context.Context) error {
	aggregator.mu.Lock()
	loaded, cursor, hasMore := aggregator.loaded, aggregator.cursor, aggregator.hasMore
	aggregator.mu.Unlock()

	if !loaded {
		return aggregator.Reload(ctx)
	}
	if !hasMore {
		return nil
	}

	page, err := aggregator.fetch(ctx, cursor)
	if err != nil {
		return err
	}

	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()
	aggregator.mergeLocked(page.Records, true)
	aggregator.cursor = page.NextCursor
	aggregator.hasMore = page.NextCursor != ""
	return nil
}

func (aggregator *Aggregator) HasMore() bool {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()
	return !aggregator.loaded || aggregator.hasMore
}

func (aggregator *Aggregator) fetch(ctx context.Context, cursor string) (Page, error) {
	if aggregator.source == nil {
		return Page{}, ErrNoHistorySource
	}
	page, err := aggregator.source.FetchHistory(ctx, cursor, aggregator.pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("fetch history: %w", err)
	}
	return page, nil
}

// mergeLocked applies a history page, which arrives newest first. A page
// appended below the loaded history takes sequence numbers under every
// existing row; any other page is inserted in reverse so it ranks above
// them, keeping page order among rows with equal timestamps either way.
func (aggregator *Aggregator) mergeLocked(records []record.Record, appended bool) {
	for step := range records {
		index := len(records) - 1 - step
		if appended {
			index = step
		}
		incoming := records[index]
		if incoming.ID == "" {
			continue
		}
		if incoming.Status == "" {
			incoming.Status = record.StatusConfirmed
		}
		if row := aggregator.findLocked(incoming.ID); row != nil {
			row.record = incoming
			row.session = false
			if !row.pinned {
				row.displayAt = incoming.Timestamp
			}
			continue
		}
		if appended {
			aggregator.appendLocked(incoming)
			continue
		}
		aggregator.insertLocked(incoming, false)
	}
}

func (aggregator *Aggregator) insertLocked(item record.Record, pinned bool) *entry {
	aggregator.seq++
	row := &entry{
		record:    item,
		seq:       aggregator.seq,
		displayAt: item.Timestamp,
		pinned:    pinned,
	}
	aggregator.entries = append(aggregator.entries, row)
	return row
}

func (aggregator *Aggregator) appendLocked(item record.Record) {
	aggregator.tail--
	aggregator.entries = append(aggregator.entries, &entry{
		record:    item,
		seq:       aggregator.tail,
		displayAt: item.Timestamp,
	})
}

func (aggregator *Aggregator) findLocked(id string) *entry {
	if id == "" {
		return nil
	}
	for _, row := range aggregator.entries {
		if row.record.ID == id {
			return row
		}
	}
	return nil
}

func (aggregator *Aggregator) removeLocked(target *entry) {
	for index, row := range aggregator.entries {
		if row == target {
			aggregator.entries = append(aggregator.entries[:index], aggregator.entries[index+1:]...)
			return
		}
	}
}
