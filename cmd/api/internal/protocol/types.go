package protocol

import (
	"encoding/json"
	"time"
)

const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
)

const (
	TypeAck      = "ack"
	TypeError    = "error"
	TypeSnapshot = "snapshot"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Domains []string `json:"domains"`
}

type WSResponse struct {
	Type    string      `json:"type"`             // "ack", "error"
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SnapshotMessage carries a full snapshot payload to a subscriber.
type SnapshotMessage struct {
	Type       string          `json:"type"`
	Domain     string          `json:"domain"`
	Generation uint64          `json:"generation"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Data       json.RawMessage `json:"data"`
}
