// Package mqtt exports board events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/odroid-io/internal/board"
)

// Topic is the MQTT topic for pin and I2C events.
const Topic = "odroid/io/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "odroid/io/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a board event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event board.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // "STARTUP", "SHUTDOWN", "ERROR"
	Reason    string // signal name on shutdown, error text on ERROR
	Board     string
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Pin PinPayload `json:"pin"`
}

// PinPayload contains the event details. Pin events carry position and
// value; I2C replies carry address, register and data instead.
type PinPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Kind      string `json:"kind"`
	Position  *int   `json:"position,omitempty"`
	Value     *int   `json:"value,omitempty"`
	Address   *int   `json:"address,omitempty"`
	Register  *int   `json:"register,omitempty"`
	Data      []int  `json:"data,omitempty"`
}

func intp(v int) *int { return &v }

// FormatPayload creates the JSON payload for a board event.
func FormatPayload(event board.Event) ([]byte, error) {
	p := PinPayload{
		Timestamp: event.Time.UTC().Format(time.RFC3339Nano),
		Event:     event.Name,
		Kind:      string(event.Kind),
	}
	if event.Kind == board.KindI2C {
		p.Address = intp(int(event.Address))
		p.Register = intp(int(event.Register))
		// Bytes as numbers; encoding/json would base64 a []byte.
		p.Data = make([]int, len(event.Data))
		for i, b := range event.Data {
			p.Data[i] = int(b)
		}
	} else {
		p.Position = intp(event.Position)
		p.Value = intp(event.Value)
	}
	return json.Marshal(Payload{Pin: p})
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Board     string `json:"board,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Board:     event.Board,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
