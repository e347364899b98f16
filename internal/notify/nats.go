package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"obralink/internal/domain"
)

// Publisher is the subset of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATS publishes each notification on <prefix>.<project>.<type>.
type NATS struct {
	Conn   Publisher
	Prefix string
}

// ConnectNATS dials url and returns a sink bound to the connection. Closing
// the returned connection is up to the caller.
func ConnectNATS(url, prefix string) (*NATS, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("obralink"), nats.MaxReconnects(5))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{Conn: nc, Prefix: prefix}, nc, nil
}

func (s *NATS) Subject(n domain.Notification) string {
	parts := []string{n.ProjectID, n.Type}
	if p := strings.Trim(s.Prefix, "."); p != "" {
		parts = append([]string{p}, parts...)
	}
	return strings.Join(parts, ".")
}

func (s *NATS) Notify(_ context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.Conn.Publish(s.Subject(n), data); err != nil {
		return fmt.Errorf("publish %s: %w", s.Subject(n), err)
	}
	return nil
}
