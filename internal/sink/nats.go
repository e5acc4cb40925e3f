package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
)

// NATS publishes alerts as JSON to a subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS connects to url with automatic reconnection.
func NewNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("alertrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATS{conn: nc, subject: subject}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Publish(_ context.Context, a alert.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	msg := nats.NewMsg(n.subject)
	msg.Data = data
	msg.Header.Set("Alert-Id", a.ID)
	// Nats-Msg-Id lets a JetStream stream on the subject dedupe redeliveries.
	msg.Header.Set(nats.MsgIdHdr, a.ID)
	return n.conn.PublishMsg(msg)
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
