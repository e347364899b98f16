package notify

import (
	"context"
	"log/slog"
	"sync"

	"obralink/internal/domain"
	"obralink/internal/metrics"
)

// Async queues notifications and delivers them on a background worker so a
// slow sink never holds up a committed transition. When the queue is full
// the notification is dropped and counted.
type Async struct {
	next    Dispatcher
	sink    string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Notification
	wg     sync.WaitGroup
}

func NewAsync(next Dispatcher, sink string, size int, logger *slog.Logger, m *metrics.Metrics) *Async {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		sink:    sink,
		logger:  logger,
		metrics: m,
		queue:   make(chan domain.Notification, size),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for n := range a.queue {
		if err := a.next.Notify(context.Background(), n); err != nil {
			a.logger.Warn("notification delivery failed",
				slog.String("sink", a.sink),
				slog.String("type", n.Type),
				slog.Int64("item", n.ItemID),
				slog.Any("err", err),
			)
			a.metrics.Notification(a.sink, "error")
			continue
		}
		a.metrics.Notification(a.sink, "ok")
	}
}

// Notify enqueues n. It never blocks and never fails.
func (a *Async) Notify(ctx context.Context, n domain.Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.metrics.Drop()
		return nil
	}
	select {
	case a.queue <- n:
	default:
		a.metrics.Drop()
		a.logger.WarnContext(ctx, "notification queue full", slog.String("sink", a.sink), slog.String("type", n.Type))
	}
	return nil
}

// Close stops accepting notifications and waits for queued ones to be
// delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
