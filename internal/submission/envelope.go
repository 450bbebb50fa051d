package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

var ErrMissingServerID = errors.New("server response has no id")

// Envelope is the create-log response as received: {id, timestamp, data}.
// Fields keeps every top-level key for servers that answer without data.
type Envelope struct {
	ID        string
	Timestamp string
	Data      json.RawMessage
	Fields    map[string]json.RawMessage
}

func (envelope *Envelope) UnmarshalJSON(raw []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}

	parsed := Envelope{Fields: fields, Data: fields["data"]}
	if value, ok := fields["id"]; ok {
		parsed.ID = decodeScalar(value)
	}
	if value, ok := fields["timestamp"]; ok {
		parsed.Timestamp = decodeScalar(value)
	}
	*envelope = parsed
	return nil
}

// Server ids may arrive as numbers.
func decodeScalar(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

var envelopeMetaKeys = map[string]bool{
	"id": true, "timestamp": true, "data": true, "log_type": true,
	"source": true, "status": true, "client_id": true, "user_id": true,
	"created_at": true,
}

// Flatten merges a server envelope into one flat confirmed record. The
// server id and timestamp win; payload fields come from data, then from
// top-level fields, overlaid on the submitted payload.
func Flatten(submitted record.Record, envelope Envelope) (record.Record, error) {
	if envelope.ID == "" {
		return record.Record{}, ErrMissingServerID
	}

	confirmed := submitted
	confirmed.ID = envelope.ID
	confirmed.Status = record.StatusConfirmed
	if timestamp, err := time.Parse(time.RFC3339Nano, envelope.Timestamp); err == nil {
		confirmed.Timestamp = timestamp.UTC()
	}

	overlay, err := payloadOverlay(envelope)
	if err != nil {
		return record.Record{}, err
	}
	if len(overlay) > 0 {
		payload, err := mergePayload(submitted.LogType, submitted.Payload, overlay)
		if err != nil {
			return record.Record{}, err
		}
		confirmed.Payload = payload
	}
	return confirmed, nil
}

func payloadOverlay(envelope Envelope) (map[string]json.RawMessage, error) {
	data := bytes.TrimSpace(envelope.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		overlay := map[string]json.RawMessage{}
		if err := json.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
		// Some handlers wrap the payload once more.
		if nested, ok := overlay["payload"]; ok {
			inner := map[string]json.RawMessage{}
			if err := json.Unmarshal(nested, &inner); err == nil {
				return inner, nil
			}
		}
		return overlay, nil
	}

	overlay := map[string]json.RawMessage{}
	for key, value := range envelope.Fields {
		if !envelopeMetaKeys[key] {
			overlay[key] = value
		}
	}
	if nested, ok := envelope.Fields["payload"]; ok {
		inner := map[string]json.RawMessage{}
		if err := json.Unmarshal(nested, &inner); err == nil {
			return inner, nil
		}
	}
	return overlay, nil
}

func mergePayload(logType record.LogType, base record.Payload, overlay map[string]json.RawMessage) (record.Payload, error) {
	merged := map[string]json.RawMessage{}
	if base != nil {
		encoded, err := json.Marshal(base)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(encoded, &merged); err != nil {
			return nil, err
		}
	}
	for key, value := range overlay {
		merged[key] = value
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	payload, err := record.DecodePayload(logType, encoded)
	if err != nil {
		return nil, fmt.Errorf("decode response payload: %w", err)
	}
	return payload, nil
}
