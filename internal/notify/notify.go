// Package notify delivers transition notifications after the state change
// they describe has been committed. Delivery failures are logged and counted
// but never undo the transition.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"obralink/internal/domain"
)

type Dispatcher interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Func adapts a function to Dispatcher.
type Func func(ctx context.Context, n domain.Notification) error

func (f Func) Notify(ctx context.Context, n domain.Notification) error { return f(ctx, n) }

// Multi fans a notification out to every sink and joins their errors.
type Multi []Dispatcher

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each notification to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n domain.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		slog.String("type", n.Type),
		slog.String("project", n.ProjectID),
		slog.String("kind", string(n.Kind)),
		slog.Int64("item", n.ItemID),
		slog.String("recipient", n.Recipient),
		slog.String("status", n.Status),
	)
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
