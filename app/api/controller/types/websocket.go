package types

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	ChainID string `json:"chainId"`
	Account string `json:"account"`
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"` // "locks.updated", "subscribed", "unsubscribed", "error"
	Payload interface{} `json:"payload"`
}

const (
	MessageLocksUpdated = "locks.updated"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessageError        = "error"
)
