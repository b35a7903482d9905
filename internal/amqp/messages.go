package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ResyncMessage asks the worker to push a locally written document to the
// remote store. It only names the document; the worker reads the current
// local copy itself.
type ResyncMessage struct {
	Collection string    `json:"collection"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var errEmptyCollection = errors.New("resync message without collection")

func NewResyncMessage(collection, reason string) *ResyncMessage {
	return &ResyncMessage{
		Collection: collection,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}

func (m *ResyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ResyncMessageFromJSON(data []byte) (*ResyncMessage, error) {
	var msg ResyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" {
		return nil, errEmptyCollection
	}
	return &msg, nil
}
