package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/odroid-io/internal/board"
)

// EventJSON is one websocket text frame.
type EventJSON struct {
	Event     string `json:"event"`
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
	Position  *int   `json:"position,omitempty"`
	Value     *int   `json:"value,omitempty"`
	Address   *int   `json:"address,omitempty"`
	Register  *int   `json:"register,omitempty"`
	Data      []int  `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

func ptr(v int) *int { return &v }

func formatEvent(ev board.Event) []byte {
	ej := EventJSON{
		Event:     ev.Name,
		Kind:      string(ev.Kind),
		Timestamp: ev.Time.UTC().Format(time.RFC3339Nano),
	}
	switch ev.Kind {
	case board.KindI2C:
		ej.Address = ptr(int(ev.Address))
		ej.Register = ptr(int(ev.Register))
		ej.Data = make([]int, len(ev.Data))
		for i, b := range ev.Data {
			ej.Data[i] = int(b)
		}
	case board.KindError:
		if ev.Err != nil {
			ej.Error = ev.Err.Error()
		}
	default:
		ej.Position = ptr(ev.Position)
		ej.Value = ptr(ev.Value)
	}
	data, _ := json.Marshal(ej)
	return data
}
