package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
	"github.com/pharrrodev/type2lyfe-sub001/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

// Keys of a create-log body that describe the request rather than the payload.
var createLogMetaKeys = []string{"client_id", "timestamp", "source", "log_type", "id", "status"}

type logEnvelope struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	LogType   record.LogType  `json:"log_type"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// CreateLog stores one record. The body is flat: payload fields next to
// client_id, timestamp and source. A repeated client id answers 200 with the
// stored record instead of 201.
func (handler *Handler) CreateLog(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized")
	}
	logType, err := record.ParseLogType(c.Params("type"))
	if err != nil {
		return apiError(c, fiber.StatusNotFound, "unknown log type")
	}
	if len(c.Body()) > maxRequestBodyBytes {
		return apiError(c, fiber.StatusRequestEntityTooLarge, "request body too large")
	}

	input, err := parseCreateLogInput(c.Body(), c.Get(idempotencyHeader))
	if err != nil {
		return validationError(c, err)
	}

	result, err := handler.logService.Create(user.ID, logType, input)
	var invalid *record.ValidationError
	switch {
	case errors.Is(err, record.ErrSetupRequired):
		return apiError(c, fiber.StatusConflict, "medication setup required")
	case errors.As(err, &invalid), errors.Is(err, services.ErrClientIDTooLong):
		return validationError(c, err)
	case err != nil:
		handler.logger.Error("create log failed", "user_id", user.ID, "log_type", logType, "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to save log")
	}

	envelope, err := newLogEnvelope(result.Record)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to encode log")
	}

	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
		handler.logger.Info("log replayed", "user_id", user.ID, "id", result.Record.ID, "client_id", input.ClientID)
	} else {
		handler.logger.Info("log created", "user_id", user.ID, "id", result.Record.ID, "log_type", logType, "source", result.Record.Source)
	}
	return c.Status(status).JSON(envelope)
}

func (handler *Handler) ListLogs(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	query := services.ListLogsQuery{
		Cursor:  strings.TrimSpace(c.Query("cursor")),
		LogType: c.Query("type"),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return apiError(c, fiber.StatusBadRequest, "invalid limit")
		}
		query.Limit = limit
	}

	page, err := handler.logService.List(user.ID, query)
	switch {
	case errors.Is(err, services.ErrInvalidCursor):
		return apiError(c, fiber.StatusBadRequest, "invalid cursor")
	case errors.Is(err, record.ErrUnknownLogType):
		return apiError(c, fiber.StatusBadRequest, "unknown log type")
	case err != nil:
		handler.logger.Error("list logs failed", "user_id", user.ID, "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to load logs")
	}

	return c.JSON(fiber.Map{
		"items":       page.Records,
		"next_cursor": page.NextCursor,
	})
}

func parseCreateLogInput(body []byte, idempotencyKey string) (services.CreateLogInput, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return services.CreateLogInput{}, &record.ValidationError{Message: "request body must be a JSON object"}
		}
	}

	input := services.CreateLogInput{ClientID: strings.TrimSpace(idempotencyKey)}
	if raw, ok := fields["client_id"]; ok {
		var clientID string
		if err := json.Unmarshal(raw, &clientID); err != nil {
			return services.CreateLogInput{}, &record.ValidationError{Field: "client_id", Message: "must be a string"}
		}
		clientID = strings.TrimSpace(clientID)
		if input.ClientID != "" && clientID != "" && clientID != input.ClientID {
			return services.CreateLogInput{}, &record.ValidationError{Field: "client_id", Message: "does not match " + idempotencyHeader}
		}
		if clientID != "" {
			input.ClientID = clientID
		}
	}
	if raw, ok := fields["timestamp"]; ok {
		if err := json.Unmarshal(raw, &input.Timestamp); err != nil {
			return services.CreateLogInput{}, &record.ValidationError{Field: "timestamp", Message: "must be an RFC 3339 time"}
		}
	}
	if raw, ok := fields["source"]; ok {
		if err := json.Unmarshal(raw, &input.Source); err != nil {
			return services.CreateLogInput{}, &record.ValidationError{Field: "source", Message: "must be a string"}
		}
	}

	if nested, ok := fields["payload"]; ok && bytes.HasPrefix(bytes.TrimSpace(nested), []byte("{")) {
		input.Payload = nested
		return input, nil
	}
	for _, key := range createLogMetaKeys {
		delete(fields, key)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return services.CreateLogInput{}, err
	}
	input.Payload = payload
	return input, nil
}

func newLogEnvelope(stored record.Record) (logEnvelope, error) {
	data, err := json.Marshal(stored.Payload)
	if err != nil {
		return logEnvelope{}, err
	}
	return logEnvelope{
		ID:        stored.ID,
		Timestamp: stored.Timestamp.UTC(),
		LogType:   stored.LogType,
		Source:    string(stored.Source),
		Data:      data,
	}, nil
}
