package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TopicDispatchTriggers = "dispatch_triggers"
	TopicDeliveryOutcomes = "delivery_outcomes"
)

// DispatchTrigger asks a worker for one batch pass over due entries.
type DispatchTrigger struct {
	ID         string    `json:"id"`
	Reason     string    `json:"reason"`
	CampaignID int       `json:"campaign_id,omitempty"`
	BatchSize  int       `json:"batch_size,omitempty"`
	At         time.Time `json:"at"`
}

func NewDispatchTrigger(reason string, campaignID int) DispatchTrigger {
	return DispatchTrigger{
		ID:         uuid.NewString(),
		Reason:     reason,
		CampaignID: campaignID,
		At:         time.Now().UTC(),
	}
}

// OutcomeEvent is published once per entry that reached a terminal state.
type OutcomeEvent struct {
	ID                string    `json:"id"`
	RunID             string    `json:"run_id"`
	EntryID           int       `json:"entry_id"`
	CampaignID        int       `json:"campaign_id"`
	RecipientID       int       `json:"recipient_id"`
	Status            string    `json:"status"`
	ExternalMessageID string    `json:"external_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	At                time.Time `json:"at"`
}

// Decode turns a handler payload into T. In-memory subscribers receive the
// published value itself; AMQP subscribers receive the JSON body.
func Decode[T any](payload any) (T, error) {
	var v T
	switch p := payload.(type) {
	case T:
		return p, nil
	case *T:
		if p == nil {
			return v, fmt.Errorf("nil %T payload", p)
		}
		return *p, nil
	case []byte:
		err := json.Unmarshal(p, &v)
		return v, err
	case json.RawMessage:
		err := json.Unmarshal(p, &v)
		return v, err
	default:
		return v, fmt.Errorf("unexpected payload type %T", payload)
	}
}
