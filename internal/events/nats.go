package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"invoice-agent/internal/resilience"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NATSOptions struct {
	SubjectPrefix  string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
}

// NATSPublisher writes events as JSON to "<prefix>.<action>".
type NATSPublisher struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
}

func NewNATSPublisher(url string, opts NATSOptions, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("events")
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := opts.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := opts.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	prefix := strings.TrimSuffix(opts.SubjectPrefix, ".")
	if prefix == "" {
		prefix = "invoice_agent"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("invoice-agent"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix, executor: opts.Executor}, nil
}

// Subject returns the subject an event with action is published on.
func (p *NATSPublisher) Subject(action string) string {
	return Subject(p.prefix, action)
}

func Subject(prefix, action string) string {
	if action == "" {
		action = "unknown"
	}
	return prefix + "." + action
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(e.Action)
	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor != nil {
		return p.executor.Execute(ctx, "nats.publish", call, resilience.RetryAll)
	}
	return call(ctx)
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
