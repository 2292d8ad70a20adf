package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/odroid-io/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"join": strings.Join,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title>
<style>
body { font-family: monospace; max-width: 800px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.unknown { color: orange; }
.report { font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>{{.Name}} ({{.Hardware}})<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Pins</h2>
<table>
<tr><th>Pos</th><th>IDs</th><th>Modes</th><th>Mode</th><th>Value</th></tr>
{{range .Pins}}<tr{{if .Report}} class="report"{{end}}><td>{{.Position}}</td><td>{{join .IDs ", "}}</td><td>{{join .Modes " "}}</td><td{{if eq .Mode "UNKNOWN"}} class="unknown"{{end}}>{{.Mode}}</td><td id="pin-{{.Position}}">{{if .Value}}{{.Value}}{{else}}-{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Digital</th><td>{{.Counts.Digital}}</td></tr>
<tr><th>Analog</th><td>{{.Counts.Analog}}</td></tr>
<tr><th>Ping</th><td>{{.Counts.Ping}}</td></tr>
<tr><th>I2C</th><td>{{.Counts.I2C}}</td></tr>
<tr><th>Errors</th><td>{{.Counts.Error}}{{if .LastError}} (last: {{.LastError}}){{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sampling</th><td>{{.Config.SamplingMs}}ms</td></tr>
<tr><th>GPIO chip</th><td>{{.Config.GPIOChip}}</td></tr>
<tr><th>I2C bus</th><td>{{.Config.I2CBus}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
  ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; };
  ws.onmessage = function(m) {
    try {
      var ev = JSON.parse(m.data);
      if (ev.position === undefined) return;
      var el = document.getElementById("pin-" + ev.position);
      if (el) el.textContent = ev.value;
    } catch (e) {}
  };
})();
</script>
</body>
</html>
`

// Value pointers are replaced by display strings so "0" is not mistaken
// for missing in the template.
type pinRow struct {
	Position int
	IDs      []string
	Modes    []string
	Mode     string
	Value    string
	Report   bool
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	inner := status.Inner(snap)
	rows := make([]pinRow, len(inner.Pins))
	for i, p := range inner.Pins {
		rows[i] = pinRow{Position: p.Position, IDs: p.IDs, Modes: p.Modes, Mode: p.Mode, Report: p.Report}
		if p.Value != nil {
			rows[i].Value = fmt.Sprint(*p.Value)
		}
	}
	data := struct {
		status.StatusInner
		Pins          []pinRow
		Uptime        time.Duration
		StartTime     time.Time
		MQTTConnected bool
	}{
		StatusInner:   inner,
		Pins:          rows,
		Uptime:        snap.Uptime(),
		StartTime:     snap.StartTime,
		MQTTConnected: snap.MQTTConnected,
	}
	indexTmpl.Execute(w, data)
}
