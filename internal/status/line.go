package status

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sweeney/turnandrun/internal/dial"
)

// FormatLine renders the one-line monitor view: the raw reading and the
// dispatched mark of every channel, -1 while nothing was dispatched.
func FormatLine(snap Snapshot) string {
	var sb strings.Builder
	for _, ch := range snap.Channels {
		fmt.Fprintf(&sb, "%s:%6d (%6d)  ", ch.Letter, ch.State.Raw, dial.FormatMark(ch.State.Dispatched))
	}
	return sb.String()
}

// Monitor rewrites the monitor line on w at hz until ctx is cancelled,
// then ends the line.
func Monitor(ctx context.Context, w io.Writer, tr *Tracker, hz float64) {
	interval := time.Duration(float64(time.Second) / hz)
	if !(hz > 0) || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fmt.Fprint(w, FormatLine(tr.Snapshot())+"\r")
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return
		case <-ticker.C:
		}
	}
}
