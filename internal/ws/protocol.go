package ws

import (
	"encoding/json"
)

// MessageType is the declared type of a live-socket wire message. The set is
// fixed; anything else is logged as unrecognized and the connection stays
// open.
type MessageType string

const (
	MsgConnectionConfirmed MessageType = "connection_confirmed"
	MsgHeartbeat           MessageType = "heartbeat"
	MsgHeartbeatResponse   MessageType = "heartbeat_response"
	MsgTransportUpdate     MessageType = "transport_update"
	MsgTransportSync       MessageType = "transport_sync"
	MsgGenerationRequest   MessageType = "generation_request"
	MsgGenerationComplete  MessageType = "generation_complete"
	MsgFilesReady          MessageType = "files_ready"
)

// Message is the wire envelope for everything sent over a live socket:
// { "type": string, "data": object }.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// Encode marshals the message for socket delivery.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// inbound defers payload decoding until the type is known.
type inbound struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type heartbeatData struct {
	Timestamp float64 `json:"timestamp"`
}

type connectionConfirmedData struct {
	PluginID string `json:"plugin_id"`
	Status   string `json:"status"`
}
