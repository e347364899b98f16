package notify

import (
	"io"
	"log/slog"

	"obralink/internal/config"
	"obralink/internal/metrics"
)

// FromConfig assembles the sinks declared in cfg behind one asynchronous
// queue. The returned closer drains the queue and closes any NATS
// connection.
func FromConfig(cfg config.Notifications, logger *slog.Logger, m *metrics.Metrics) (Dispatcher, io.Closer, error) {
	sinks := Multi{Log{Logger: logger}}
	for _, hook := range cfg.Webhooks {
		if hook.Active() {
			sinks = append(sinks, NewWebhook(hook, nil))
		}
	}
	var closers closeAll
	if cfg.NATS.URL != "" {
		sink, nc, err := ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		closers = append(closers, func() { _ = nc.Drain() })
	}
	async := NewAsync(sinks, "default", cfg.QueueSize, logger, m)
	return async, append(closeAll{async.Close}, closers...), nil
}

type closeAll []func()

func (c closeAll) Close() error {
	for _, fn := range c {
		fn()
	}
	return nil
}
