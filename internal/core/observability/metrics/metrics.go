// Package metrics exports environment and bus activity as OpenTelemetry
// instruments. It only listens to the event bus, so environments stay
// unaware of it. Without a configured provider the global no-op meter is used.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zeusync/football/internal/core/events"
	"github.com/zeusync/football/internal/core/events/bus"
)

const instrumentationName = "github.com/zeusync/football/internal/core/observability/metrics"

var ErrAttached = errors.New("metrics: collector already attached")

type options struct {
	provider metric.MeterProvider
}

type Option func(*options)

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *options) { o.provider = p }
}

// Collector counts episode events and bus deliveries.
type Collector struct {
	steps     metric.Int64Counter
	resets    metric.Int64Counter
	episodes  metric.Int64Counter
	goals     metric.Int64Counter
	running   metric.Int64UpDownCounter
	delivered metric.Int64Counter
	failures  metric.Int64Counter
	publish   metric.Int64Histogram

	mu   sync.Mutex
	bus  bus.EventBus
	subs []bus.Subscription
}

var _ bus.EventBusObserver = (*Collector)(nil)

func New(opts ...Option) (*Collector, error) {
	o := options{provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	m := o.provider.Meter(instrumentationName)

	c := &Collector{}
	var err error
	if c.steps, err = m.Int64Counter("env.steps", metric.WithDescription("Environment steps taken")); err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}
	if c.resets, err = m.Int64Counter("env.resets", metric.WithDescription("Episodes started")); err != nil {
		return nil, fmt.Errorf("creating resets counter: %w", err)
	}
	if c.episodes, err = m.Int64Counter("env.episodes", metric.WithDescription("Episodes finished, by outcome")); err != nil {
		return nil, fmt.Errorf("creating episodes counter: %w", err)
	}
	if c.goals, err = m.Int64Counter("env.goals", metric.WithDescription("Goals scored, by scoring side")); err != nil {
		return nil, fmt.Errorf("creating goals counter: %w", err)
	}
	if c.running, err = m.Int64UpDownCounter("env.episodes.running", metric.WithDescription("Episodes in progress")); err != nil {
		return nil, fmt.Errorf("creating running counter: %w", err)
	}
	if c.delivered, err = m.Int64Counter("bus.events.delivered", metric.WithDescription("Handler invocations, by event type")); err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}
	if c.failures, err = m.Int64Counter("bus.events.failed", metric.WithDescription("Publishes with at least one failing handler")); err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	if c.publish, err = m.Int64Histogram("bus.publish.duration",
		metric.WithDescription("Time spent delivering one event"),
		metric.WithUnit("us"),
	); err != nil {
		return nil, fmt.Errorf("creating publish histogram: %w", err)
	}
	return c, nil
}

// Attach subscribes to the episode events of b and observes its deliveries.
func (c *Collector) Attach(b bus.EventBus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus != nil {
		return ErrAttached
	}

	handlers := []struct {
		typ string
		fn  bus.EventHandler
	}{
		{events.EpisodeReset, c.onReset},
		{events.EpisodeStep, c.onStep},
		{events.EpisodeGoal, c.onGoal},
		{events.EpisodeEnd, c.onEnd},
	}
	for _, h := range handlers {
		sub, err := b.Subscribe(h.typ, h.fn)
		if err != nil {
			c.cancelLocked()
			return err
		}
		c.subs = append(c.subs, sub)
	}
	b.AddObserver(c)
	c.bus = b
	return nil
}

// Detach stops collecting from the attached bus.
func (c *Collector) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus != nil {
		c.bus.RemoveObserver(c)
		c.bus = nil
	}
	c.cancelLocked()
}

func (c *Collector) cancelLocked() {
	for _, s := range c.subs {
		_ = s.Cancel()
	}
	c.subs = nil
}

func (c *Collector) onReset(ev bus.Event) error {
	data, ok := ev.Data().(events.Reset)
	if !ok {
		return nil
	}
	attrs := metric.WithAttributes(attribute.String("scenario", data.Scenario))
	c.resets.Add(context.Background(), 1, attrs)
	c.running.Add(context.Background(), 1)
	return nil
}

func (c *Collector) onStep(ev bus.Event) error {
	if _, ok := ev.Data().(events.Step); ok {
		c.steps.Add(context.Background(), 1)
	}
	return nil
}

func (c *Collector) onGoal(ev bus.Event) error {
	data, ok := ev.Data().(events.Goal)
	if !ok {
		return nil
	}
	c.goals.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scorer", data.Scorer.String())))
	return nil
}

func (c *Collector) onEnd(ev bus.Event) error {
	data, ok := ev.Data().(events.End)
	if !ok {
		return nil
	}
	outcome := "terminated"
	if data.Truncated {
		outcome = "truncated"
	}
	c.episodes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	c.running.Add(context.Background(), -1)
	return nil
}

func (c *Collector) OnPublish(string, bus.Event) {}

func (c *Collector) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	attrs := metric.WithAttributes(attribute.String("event", eventType))
	c.delivered.Add(context.Background(), int64(handlers), attrs)
	c.publish.Record(context.Background(), durationMicros, attrs)
	if err != nil {
		c.failures.Add(context.Background(), 1, attrs)
	}
}
