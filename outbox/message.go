package outbox

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Status is the delivery state of an outbox message. Transitions are
// monotonic: a message starts pending and ends either published or failed,
// and never leaves a terminal state.
type Status string

func (s Status) String() string {
	return string(s)
}

func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// Message is one durable record awaiting publication. The payload is an
// opaque byte sequence; RoutingKey, Exchange and Headers are forwarded
// verbatim to the broker on delivery.
type Message struct {
	Id          uuid.UUID
	MessageType string
	Payload     []byte
	RoutingKey  string
	Exchange    string
	Headers     map[string]interface{}
	Status      Status
	CreatedAt   time.Time
	PublishedAt sql.NullTime
	RetryCount  int
	LastError   string
}

// copy returns a record that shares no mutable state with the original, so
// store implementations can hand out results without aliasing their internal
// state.
func (m *Message) copy() *Message {
	c := *m

	if m.Payload != nil {
		c.Payload = make([]byte, len(m.Payload))
		copy(c.Payload, m.Payload)
	}

	if m.Headers != nil {
		c.Headers = make(map[string]interface{}, len(m.Headers))
		for k, v := range m.Headers {
			c.Headers[k] = v
		}
	}

	return &c
}
