package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"obralink/internal/domain"
)

// Writer appends audit events inside the caller's transaction, so an event
// exists exactly when the state change it describes was committed.
type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID string, kind domain.Kind, entityID int64, actorID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	var id any
	if entityID > 0 {
		id = strconv.FormatInt(entityID, 10)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339Nano), evtType, nullable(projectID), string(kind), id, actorID, string(data))
	return err
}

// AppendNotification records a transition notification as an audit event.
func (w Writer) AppendNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	payload := Payload{"status": n.Status}
	if n.Recipient != "" {
		payload["recipient"] = n.Recipient
	}
	for k, v := range n.Payload {
		payload[k] = v
	}
	return w.Append(ctx, tx, n.Type, n.ProjectID, n.Kind, n.ItemID, n.Actor, payload)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
