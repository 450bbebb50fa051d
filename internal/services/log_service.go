package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/db"
	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

const (
	DefaultLogPageSize = 20
	MaxLogPageSize     = 100
	MaxClientIDLength  = 128
	// MaxFutureSkew is how far ahead of the server clock a client timestamp
	// may be before the server replaces it with its own time.
	MaxFutureSkew = 5 * time.Minute
)

var (
	ErrInvalidCursor   = errors.New("invalid cursor")
	ErrClientIDTooLong = errors.New("client_id is too long")
)

type LogEntryRepository interface {
	FindByClientID(userID uint, clientID string) (models.LogEntry, bool, error)
	CreateOnce(entry *models.LogEntry) (models.LogEntry, bool, error)
	ListPage(userID uint, logType string, after *db.LogPosition, limit int) ([]models.LogEntry, error)
}

type CatalogProvider interface {
	Catalog(userID uint) (record.Catalog, error)
}

// LogObserver is told about every create attempt; the metrics collector
// implements it.
type LogObserver interface {
	LogCreated(logType string, source string)
	LogReplayed(logType string)
	LogRejected(logType string, reason string)
}

type CreateLogInput struct {
	ClientID  string
	Timestamp time.Time
	Source    string
	Payload   json.RawMessage
}

type CreateLogResult struct {
	Record record.Record
	// Replayed is set when the client id was already stored and the earlier
	// record is returned unchanged.
	Replayed bool
}

type ListLogsQuery struct {
	Cursor  string
	Limit   int
	LogType string
}

type LogPage struct {
	Records    []record.Record
	NextCursor string
}

type LogService struct {
	entries  LogEntryRepository
	catalogs CatalogProvider
	observer LogObserver
	now      func() time.Time
}

func NewLogService(entries LogEntryRepository, catalogs CatalogProvider, observer LogObserver) *LogService {
	return &LogService{entries: entries, catalogs: catalogs, observer: observer, now: time.Now}
}

// Create stores one log for userID. A client id seen before returns the
// stored record instead of creating a second one, before any validation.
func (service *LogService) Create(userID uint, logType record.LogType, input CreateLogInput) (CreateLogResult, error) {
	clientID := strings.TrimSpace(input.ClientID)
	if len(clientID) > MaxClientIDLength {
		service.rejected(logType, "client_id")
		return CreateLogResult{}, ErrClientIDTooLong
	}

	if clientID != "" {
		existing, found, err := service.entries.FindByClientID(userID, clientID)
		if err != nil {
			return CreateLogResult{}, fmt.Errorf("lookup client id: %w", err)
		}
		if found {
			return service.replayed(existing)
		}
	}

	source := record.ModeManual
	if raw := strings.TrimSpace(input.Source); raw != "" {
		parsed, err := record.ParseCaptureMode(raw)
		if err != nil {
			service.rejected(logType, "source")
			return CreateLogResult{}, &record.ValidationError{Field: "source", Message: err.Error()}
		}
		source = parsed
	}

	payload, err := record.DecodePayload(logType, input.Payload)
	if err != nil {
		service.rejected(logType, "payload")
		return CreateLogResult{}, &record.ValidationError{Field: "payload", Message: err.Error()}
	}

	catalog := record.Catalog{}
	if logType == record.LogTypeMedication {
		catalog, err = service.catalogs.Catalog(userID)
		if err != nil {
			return CreateLogResult{}, err
		}
	}
	payload, err = record.Validate(logType, payload, catalog)
	if err != nil {
		reason := "validation"
		if errors.Is(err, record.ErrSetupRequired) {
			reason = "setup_required"
		}
		service.rejected(logType, reason)
		return CreateLogResult{}, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return CreateLogResult{}, fmt.Errorf("encode payload: %w", err)
	}

	now := service.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	if clientID == "" {
		clientID = id
	}
	entry := &models.LogEntry{
		ID:         id,
		UserID:     userID,
		ClientID:   clientID,
		LogType:    string(logType),
		Source:     string(source),
		Payload:    string(encoded),
		RecordedAt: correctTimestamp(input.Timestamp, now),
		CreatedAt:  now,
	}

	stored, created, err := service.entries.CreateOnce(entry)
	if err != nil {
		return CreateLogResult{}, fmt.Errorf("store log: %w", err)
	}
	if !created {
		return service.replayed(stored)
	}

	if service.observer != nil {
		service.observer.LogCreated(string(logType), string(source))
	}
	converted, err := toRecord(stored)
	if err != nil {
		return CreateLogResult{}, err
	}
	return CreateLogResult{Record: converted}, nil
}

func (service *LogService) replayed(existing models.LogEntry) (CreateLogResult, error) {
	if service.observer != nil {
		service.observer.LogReplayed(existing.LogType)
	}
	converted, err := toRecord(existing)
	if err != nil {
		return CreateLogResult{}, err
	}
	return CreateLogResult{Record: converted, Replayed: true}, nil
}

func (service *LogService) rejected(logType record.LogType, reason string) {
	if service.observer != nil {
		service.observer.LogRejected(string(logType), reason)
	}
}

// List returns one history page, newest first. NextCursor is empty on the
// last page.
func (service *LogService) List(userID uint, query ListLogsQuery) (LogPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultLogPageSize
	}
	if limit > MaxLogPageSize {
		limit = MaxLogPageSize
	}

	logType := ""
	if raw := strings.TrimSpace(query.LogType); raw != "" {
		parsed, err := record.ParseLogType(raw)
		if err != nil {
			return LogPage{}, err
		}
		logType = string(parsed)
	}

	var after *db.LogPosition
	if query.Cursor != "" {
		position, err := DecodeLogCursor(query.Cursor)
		if err != nil {
			return LogPage{}, err
		}
		after = &position
	}

	// One extra row tells whether another page exists.
	entries, err := service.entries.ListPage(userID, logType, after, limit+1)
	if err != nil {
		return LogPage{}, fmt.Errorf("list logs: %w", err)
	}

	page := LogPage{Records: make([]record.Record, 0, limit)}
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		page.NextCursor = EncodeLogCursor(db.LogPosition{RecordedAt: last.RecordedAt, ID: last.ID})
	}
	for _, entry := range entries {
		converted, err := toRecord(entry)
		if err != nil {
			return LogPage{}, err
		}
		page.Records = append(page.Records, converted)
	}
	return page, nil
}

func EncodeLogCursor(position db.LogPosition) string {
	raw := position.RecordedAt.UTC().Format(time.RFC3339Nano) + "|" + position.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeLogCursor(cursor string) (db.LogPosition, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return db.LogPosition{}, ErrInvalidCursor
	}
	recordedAt, id, found := strings.Cut(string(raw), "|")
	if !found || id == "" {
		return db.LogPosition{}, ErrInvalidCursor
	}
	parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return db.LogPosition{}, ErrInvalidCursor
	}
	return db.LogPosition{RecordedAt: parsed.UTC(), ID: id}, nil
}

// correctTimestamp keeps the client's time unless it is missing or too far
// in the future.
func correctTimestamp(submitted time.Time, now time.Time) time.Time {
	if submitted.IsZero() || submitted.After(now.Add(MaxFutureSkew)) {
		return now
	}
	return submitted.UTC()
}

func toRecord(entry models.LogEntry) (record.Record, error) {
	logType, err := record.ParseLogType(entry.LogType)
	if err != nil {
		return record.Record{}, fmt.Errorf("log %s: %w", entry.ID, err)
	}
	payload, err := record.DecodePayload(logType, json.RawMessage(entry.Payload))
	if err != nil {
		return record.Record{}, fmt.Errorf("log %s: %w", entry.ID, err)
	}
	source := record.CaptureMode(entry.Source)
	if parsed, err := record.ParseCaptureMode(entry.Source); err == nil {
		source = parsed
	}
	return record.Record{
		ID:        entry.ID,
		LogType:   logType,
		Timestamp: entry.RecordedAt.UTC(),
		Payload:   payload,
		Source:    source,
		Status:    record.StatusConfirmed,
	}, nil
}
