// Package history records dispatches as InfluxDB points.
package history

import (
	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/dial"
)

// Measurement is the InfluxDB measurement dispatches are written to.
const Measurement = "dial_dispatch"

// pointWriter is the part of api.WriteAPI the writer uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Writer queues one point per dispatch. Writes are batched and sent in
// the background; failures are logged and never reach the channel worker.
type Writer struct {
	client influxdb2.Client
	api    pointWriter
	logger *log.Logger
}

// New creates a writer for the configured bucket.
func New(cfg config.InfluxConfig, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("influx write failed", "err", err)
		}
	}()

	return &Writer{client: client, api: writeAPI, logger: logger}
}

// NewPoint converts a dispatch to a point.
func NewPoint(d dial.Dispatch) *write.Point {
	return influxdb2.NewPoint(Measurement,
		map[string]string{
			"channel": config.ChannelLetter(d.Channel),
			"label":   d.Label,
		},
		map[string]interface{}{
			"mark":   int64(d.Mark),
			"action": d.Action,
			"id":     d.ID,
			"ran":    d.Ran,
		},
		d.Time)
}

// Notify queues the dispatch for writing.
func (w *Writer) Notify(d dial.Dispatch) error {
	w.api.WritePoint(NewPoint(d))
	return nil
}

// Close flushes pending points and closes the client.
func (w *Writer) Close() {
	w.api.Flush()
	if w.client != nil {
		w.client.Close()
	}
}
