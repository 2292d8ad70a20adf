package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/odroid-io/internal/board"
	"github.com/sweeney/odroid-io/internal/pins"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Name          string     `json:"name"`
	Hardware      string     `json:"hardware"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	LastError     string     `json:"last_error,omitempty"`
	Pins          []PinJSON  `json:"pins"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts per kind.
type CountsJSON struct {
	Digital int `json:"digital"`
	Analog  int `json:"analog"`
	Ping    int `json:"ping"`
	I2C     int `json:"i2c"`
	Error   int `json:"error"`
}

// PinJSON is one used header position. Value is null until sampled or written.
type PinJSON struct {
	Position int      `json:"position"`
	IDs      []string `json:"ids"`
	Modes    []string `json:"modes"`
	Mode     string   `json:"mode"`
	Value    *int     `json:"value"`
	Report   bool     `json:"report"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SamplingMs int    `json:"sampling_ms"`
	I2CBus     int    `json:"i2c_bus"`
	GPIOChip   string `json:"gpio_chip"`
	Broker     string `json:"broker"`
	HTTPAddr   string `json:"http_addr"`
}

// PinsJSON converts pin snapshots, skipping positions with no modes.
func PinsJSON(ps []board.PinInfo) []PinJSON {
	out := []PinJSON{}
	for _, p := range ps {
		if len(p.Modes) == 0 {
			continue
		}
		pj := PinJSON{
			Position: p.Position,
			IDs:      p.IDs,
			Modes:    modeNames(p.Modes),
			Mode:     p.Mode.String(),
			Report:   p.Report != 0,
		}
		if p.Known {
			v := p.Value
			pj.Value = &v
		}
		out = append(out, pj)
	}
	return out
}

func modeNames(ms []pins.Mode) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

// Inner builds the status body for snap.
func Inner(snap Snapshot) StatusInner {
	hw := snap.Hardware
	if hw == "" {
		hw = "UNKNOWN"
	}
	return StatusInner{
		Name:          snap.Name,
		Hardware:      hw,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Digital: snap.Counts[board.KindDigital],
			Analog:  snap.Counts[board.KindAnalog],
			Ping:    snap.Counts[board.KindPing],
			I2C:     snap.Counts[board.KindI2C],
			Error:   snap.Counts[board.KindError],
		},
		LastError: snap.LastError,
		Pins:      PinsJSON(snap.Pins),
		Config: ConfigJSON{
			SamplingMs: snap.Config.SamplingMs,
			I2CBus:     snap.Config.I2CBus,
			GPIOChip:   snap.Config.GPIOChip,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the indented JSON status for the web endpoint and
// -print-state.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: Inner(snap)}, "", "  ")
	return data
}
