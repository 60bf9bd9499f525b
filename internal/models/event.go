package models

import (
	"encoding/json"
	"time"
)

// EventType names a change pushed to stream subscribers
type EventType string

const (
	EventSensorCreated  EventType = "sensor.created"
	EventSensorUpdated  EventType = "sensor.updated"
	EventSensorDeleted  EventType = "sensor.deleted"
	EventReadingCreated EventType = "reading.created"
	EventReadingUpdated EventType = "reading.updated"
	EventReadingDeleted EventType = "reading.deleted"
	EventAlertCreated   EventType = "alert.created"
	EventAlertUpdated   EventType = "alert.updated"
	EventAlertDeleted   EventType = "alert.deleted"
)

// Event is the envelope for all stream messages
type Event struct {
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Ref is the payload of *.deleted events.
type Ref struct {
	ID int64 `json:"id"`
}

// NewEvent creates a new event with the given type and payload
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   payloadJSON,
		Timestamp: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into the provided struct
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
