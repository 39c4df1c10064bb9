package mqtt

// message is a publish held back while the broker is unreachable.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues messages while disconnected. Once full, the oldest message
// makes room for the newest. The caller must synchronize.
type outbox struct {
	queue   []message
	limit   int
	dropped int // since the last flush
}

func newOutbox(limit int) *outbox {
	return &outbox{queue: make([]message, 0, limit), limit: limit}
}

// add queues m. It reports whether this was the first drop since the last
// flush, so the caller can warn once per outage.
func (o *outbox) add(m message) bool {
	if o.limit <= 0 {
		o.dropped++
		return o.dropped == 1
	}
	if len(o.queue) < o.limit {
		o.queue = append(o.queue, m)
		return false
	}
	copy(o.queue, o.queue[1:])
	o.queue[len(o.queue)-1] = m
	o.dropped++
	return o.dropped == 1
}

// flush empties the outbox, returning the queued messages oldest first and
// the number dropped while they waited.
func (o *outbox) flush() ([]message, int) {
	if len(o.queue) == 0 && o.dropped == 0 {
		return nil, 0
	}
	msgs := make([]message, len(o.queue))
	copy(msgs, o.queue)
	dropped := o.dropped
	o.queue = o.queue[:0]
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) size() int {
	return len(o.queue)
}
