package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/graph"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
)

// ErrInvalidMessage marks messages that can never succeed; they skip the
// retry queue.
var ErrInvalidMessage = errors.New("invalid ingest message")

// IngestMsg is the body of an ingest_queue message. Records are either
// inline or stored under ObjectKey in the payload bucket.
type IngestMsg struct {
	CorrelationID string          `json:"correlation_id"`
	Records       json.RawMessage `json:"records,omitempty"`
	ObjectKey     string          `json:"object_key,omitempty"`
}

// GraphUpdatedEvent is published after a message was ingested.
type GraphUpdatedEvent struct {
	CorrelationID string              `json:"correlation_id"`
	Result        *graph.IngestResult `json:"result"`
}

type Ingester interface {
	Ingest(ctx context.Context, records []common.RawRecord) (*graph.IngestResult, error)
}

// PayloadSource loads records that were too large to travel inline.
type PayloadSource interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// NewIngestMsg builds a message for inline records.
func NewIngestMsg(correlationID string, records []common.RawRecord) ([]byte, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return json.Marshal(IngestMsg{
		CorrelationID: util.CorrelationIDOrNew(correlationID),
		Records:       raw,
	})
}

// NewObjectIngestMsg builds a message whose records live under key in the
// payload bucket.
func NewObjectIngestMsg(correlationID, key string) ([]byte, error) {
	return json.Marshal(IngestMsg{
		CorrelationID: util.CorrelationIDOrNew(correlationID),
		ObjectKey:     key,
	})
}

// DecodeIngestMsg parses a message body. Exactly one of records and
// object_key must be set.
func DecodeIngestMsg(body []byte) (*IngestMsg, error) {
	msg := new(IngestMsg)
	if err := json.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	hasRecords := len(msg.Records) > 0 && strings.TrimSpace(string(msg.Records)) != "null"
	hasObject := msg.ObjectKey != ""
	if hasRecords == hasObject {
		return nil, fmt.Errorf("%w: exactly one of records and object_key must be set", ErrInvalidMessage)
	}
	msg.CorrelationID = util.CorrelationIDOrNew(msg.CorrelationID)
	return msg, nil
}

// ProcessIngestMessage decodes body, loads its records and ingests them.
// payloads may be nil when no bucket is configured.
func ProcessIngestMessage(
	ctx context.Context,
	pipeline Ingester,
	payloads PayloadSource,
	body []byte,
) (*IngestMsg, *graph.IngestResult, error) {
	msg, err := DecodeIngestMsg(body)
	if err != nil {
		return nil, nil, err
	}

	data := []byte(msg.Records)
	if msg.ObjectKey != "" {
		if payloads == nil {
			return msg, nil, fmt.Errorf("%w: object_key %q set but no payload bucket configured", ErrInvalidMessage, msg.ObjectKey)
		}
		data, err = payloads.GetFile(ctx, msg.ObjectKey)
		if err != nil {
			return msg, nil, err
		}
	}

	records, err := graph.DecodeRecords(data)
	if err != nil {
		return msg, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	logger.Info("[Queue] Ingesting records", "correlation_id", msg.CorrelationID, "records", len(records), "object_key", msg.ObjectKey)
	result, err := pipeline.Ingest(ctx, records)
	if err != nil {
		return msg, nil, err
	}
	return msg, result, nil
}
