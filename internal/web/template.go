package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/turnandrun/internal/dial"
	"github.com/sweeney/turnandrun/internal/status"
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
	"mark": dial.FormatMark,
	"label": func(v status.ChannelView) string {
		if v.State.Dispatched == dial.Unset {
			return "-"
		}
		return v.Settings.Commands.Lookup(v.State.Dispatched).Label
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Turn and Run</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.ok { color: green; }
.warning { color: orange; }
.error { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
#log { height: 10em; overflow-y: auto; border: 1px solid #ddd; padding: 4px; }
</style>
</head>
<body>
<h1>Turn and Run <span class="{{.Overall.Severity}}">{{.Overall.Severity}}</span></h1>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><th>Raw</th><th>Mark</th><th>Dispatched</th><th>Label</th><th>Count</th><th>Status</th></tr>
{{range .Channels}}<tr id="ch-{{.Letter}}">
<td>{{.Letter}}</td>
<td class="raw">{{.State.Raw}}</td>
<td class="mark">{{mark .State.Resolved}}</td>
<td class="dispatched">{{mark .State.Dispatched}}</td>
<td class="label">{{label .}}</td>
<td class="count">{{.State.Dispatches}}</td>
<td class="{{.State.Status.Severity}}">{{.State.Status.Severity}}{{if .State.LastError}} ({{.State.LastError}}){{end}}</td>
</tr>
{{else}}<tr><td colspan="7">no channels enabled</td></tr>
{{end}}</table>

<h2>Dispatches</h2>
<div id="log"></div>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Device</th><td>{{.Config.Device}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatSec 0}}disabled{{else}}{{.Config.HeartbeatSec}}s{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var log = document.getElementById("log");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");

  ws.onmessage = function(ev) {
    try {
      var msg = JSON.parse(ev.data);
      if (msg.type !== "dispatch") return;
      var d = msg.data;
      var row = document.getElementById("ch-" + d.channel);
      if (row) {
        row.querySelector(".dispatched").textContent = d.mark;
        row.querySelector(".label").textContent = d.label;
        var count = row.querySelector(".count");
        count.textContent = parseInt(count.textContent, 10) + 1;
      }
      var line = document.createElement("div");
      line.textContent = d.timestamp + " " + d.channel + ": " + d.label + " (" + d.mark + ")" + (d.ran ? "" : " [not run]");
      log.insertBefore(line, log.firstChild);
    } catch (e) {}
  };
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() and Overall() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Overall struct{ Severity string }
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	data.Overall.Severity = snap.Overall().Severity.String()
	return indexTmpl.Execute(w, data)
}
