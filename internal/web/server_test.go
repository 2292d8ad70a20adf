package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/odroid-io/internal/board"
	"github.com/sweeney/odroid-io/internal/pins"
	"github.com/sweeney/odroid-io/internal/status"
)

type staticPins []board.PinInfo

func (s staticPins) Pins() []board.PinInfo { return s }

func newTestServer(t *testing.T) (*httptest.Server, *Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		SamplingMs: 10,
		I2CBus:     1,
		GPIOChip:   "gpiochip1",
		Broker:     "tcp://192.168.1.200:1883",
		HTTPAddr:   ":80",
	}
	tr := status.NewTracker(start, cfg)
	tr.SetBoard("ODROID-IO", "ODROID-C2", staticPins{
		{Position: 0, IDs: []string{"P1-0", "GPIO247"}, Modes: []pins.Mode{pins.ModeInput, pins.ModeOutput}, Mode: pins.ModeInput, Value: 0, Known: true, Report: 1},
		{Position: 15, IDs: []string{"P1-15", "A0"}, Modes: []pins.Mode{pins.ModeAnalog}},
	})
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv, tr
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Record(board.Event{Kind: board.KindDigital})
	tr.SetMQTTConnected(true)

	sj := getStatus(t, ts.URL)

	if sj.Status.Hardware != "ODROID-C2" {
		t.Errorf("Hardware: got %q", sj.Status.Hardware)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Digital != 1 {
		t.Errorf("Counts.Digital: got %d, want 1", sj.Status.Counts.Digital)
	}
	if len(sj.Status.Pins) != 2 {
		t.Fatalf("expected 2 pins, got %d", len(sj.Status.Pins))
	}
	if v := sj.Status.Pins[0].Value; v == nil || *v != 0 {
		t.Errorf("pin 0 value: got %v, want 0", v)
	}
	if sj.Status.Pins[1].Value != nil {
		t.Errorf("pin 15 value: expected null, got %d", *sj.Status.Pins[1].Value)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, _, tr := newTestServer(t)

	if sj := getStatus(t, ts.URL); sj.Status.Counts.Error != 0 || sj.Status.LastError != "" {
		t.Errorf("unexpected initial errors %+v", sj.Status.Counts)
	}

	tr.Record(board.Event{Kind: board.KindError, Err: errors.New("i2c read 0x50 on bus 1: nack")})

	sj := getStatus(t, ts.URL)
	if sj.Status.Counts.Error != 1 {
		t.Errorf("Counts.Error: got %d, want 1", sj.Status.Counts.Error)
	}
	if !strings.Contains(sj.Status.LastError, "nack") {
		t.Errorf("LastError: got %q", sj.Status.LastError)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != 200 {
				t.Errorf("status: got %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type: got %q, want text/html", ct)
			}
			body, _ := io.ReadAll(resp.Body)
			for _, want := range []string{"ODROID-C2", "GPIO247", `id="pin-0">0<`, `id="pin-15">-<`, "gpiochip1"} {
				if !strings.Contains(string(body), want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestPinEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	tests := []struct {
		path     string
		wantCode int
		wantPos  int
	}{
		{"/pins/0", 200, 0},
		{"/pins/GPIO247", 200, 0},
		{"/pins/A0", 200, 15},
		{"/pins/P1-15", 200, 15},
		{"/pins/3", 404, 0},
		{"/pins/GPIO999", 404, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status: got %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if tt.wantCode != 200 {
				return
			}
			var p status.PinJSON
			if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.Position != tt.wantPos {
				t.Errorf("position: got %d, want %d", p.Position, tt.wantPos)
			}
		})
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for srv.hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d websocket clients, have %d", n, srv.hub.Clients())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebsocketStreamsEvents(t *testing.T) {
	ts, srv, _ := newTestServer(t)
	a, b := dialWS(t, ts), dialWS(t, ts)
	waitClients(t, srv, 2)

	srv.Broadcast(board.Event{Name: board.DigitalEvent(0), Kind: board.KindDigital, Position: 0, Value: 1, Time: time.Now()})
	srv.Broadcast(board.Event{Name: board.I2CReplyEvent(0x50, 1), Kind: board.KindI2C, Address: 0x50, Register: 1, Data: []byte{7}, Time: time.Now()})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(time.Second))

		var ev EventJSON
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Event != "digital-read-0" || ev.Position == nil || *ev.Position != 0 || ev.Value == nil || *ev.Value != 1 {
			t.Errorf("unexpected digital frame %+v", ev)
		}

		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Kind != "i2c" || ev.Address == nil || *ev.Address != 0x50 || len(ev.Data) != 1 || ev.Data[0] != 7 {
			t.Errorf("unexpected i2c frame %+v", ev)
		}
	}
}

func TestWebsocketClientRemovedOnDisconnect(t *testing.T) {
	ts, srv, _ := newTestServer(t)
	conn := dialWS(t, ts)
	waitClients(t, srv, 1)

	conn.Close()
	waitClients(t, srv, 0)
}

func TestShutdownClosesWebsocketClients(t *testing.T) {
	ts, srv, _ := newTestServer(t)
	conn := dialWS(t, ts)
	waitClients(t, srv, 1)

	srv.hub.Close()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
	if srv.hub.Clients() != 0 {
		t.Errorf("expected no clients, got %d", srv.hub.Clients())
	}
}

func TestFormatEventError(t *testing.T) {
	data := formatEvent(board.Event{Name: board.EventError, Kind: board.KindError, Err: errors.New("boom")})

	var ev EventJSON
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Error != "boom" || ev.Position != nil {
		t.Errorf("unexpected frame %s", data)
	}
}
