package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sitepay/internal/core"
)

type MessageType string

const (
	TypeEntryRecorded MessageType = "entry_recorded"
	TypeLedgerReset   MessageType = "ledger_reset"
)

// Message is the envelope published on the entries queue. Entry messages
// carry only identifiers; the worker loads the entry from the database.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	EntryID   int64          `json:"entry_id,omitempty"`
	SiteID    int64          `json:"site_id,omitempty"`
	Kind      core.EntryKind `json:"kind,omitempty"`
	Date      string         `json:"date,omitempty"`
}

func NewEntryRecordedMessage(e core.Entry) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      TypeEntryRecorded,
		Timestamp: time.Now().UTC(),
		EntryID:   e.ID,
		SiteID:    e.SiteID,
		Kind:      e.Kind,
		Date:      e.Date.String(),
	}
}

func NewLedgerResetMessage() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      TypeLedgerReset,
		Timestamp: time.Now().UTC(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and checks an envelope.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypeEntryRecorded:
		if msg.EntryID <= 0 {
			return nil, fmt.Errorf("entry message %s without entry id", msg.ID)
		}
	case TypeLedgerReset:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
