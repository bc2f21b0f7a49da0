// Package protocol defines the WebSocket message types exchanged with the
// robot daemon's move stream.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/robokit/go-teleop/pkg/pose"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Operator -> robot messages
	TypeTarget MessageType = "target" // full pose target

	// Robot -> operator messages
	TypeAck   MessageType = "ack"   // command acknowledgement (may carry an error)
	TypeState MessageType = "state" // full robot state snapshot

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// NewTarget wraps a full pose in a target message.
func NewTarget(p pose.Pose) *Message {
	msg, _ := NewMessage(TypeTarget, p) // pose marshaling cannot fail
	return msg
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// AckData is the robot's acknowledgement of a target message.
type AckData struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
