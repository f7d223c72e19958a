package amqp

import (
	"encoding/json"

	"finledger/internal/ledger"
)

// LedgerEventMessage is the wire form of a ledger change notification.
// It carries only the user id and event kind; consumers reload whatever
// state they need from the store.
type LedgerEventMessage struct {
	ledger.Event
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
