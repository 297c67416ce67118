package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"buildwatch/src/broker"
	"buildwatch/src/contracts"
	"buildwatch/src/logger"
	"buildwatch/src/provider"
	"buildwatch/src/store"
)

// LogSink writes notifications to the process logger.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	line := n.Title
	if n.Subtitle != "" {
		line += " (" + n.Subtitle + ")"
	}
	s.log.Info("[Notify] %s: %s [%s -> %s]", line, n.Body, n.From, n.To)
	return nil
}

// BrokerSink publishes a contracts.TransitionEvent per notification.
// Events are keyed by build ID so one build's transitions stay ordered.
type BrokerSink struct {
	broker broker.Broker
	topic  string
}

func NewBrokerSink(b broker.Broker) *BrokerSink {
	return &BrokerSink{broker: b, topic: contracts.TopicTransitions}
}

func (s *BrokerSink) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n.Event())
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	if err := s.broker.Publish(ctx, s.topic, n.Build.ID, data); err != nil {
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	return nil
}

// RecorderSink persists each notification as a transition row.
type RecorderSink struct {
	recorder store.TransitionRecorder
}

func NewRecorderSink(r store.TransitionRecorder) *RecorderSink {
	return &RecorderSink{recorder: r}
}

func (s *RecorderSink) Notify(ctx context.Context, n Notification) error {
	return s.recorder.RecordTransition(ctx, n.Event())
}

// MultiSink delivers to every sink and returns the first error, if any.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FilterSink forwards only transitions into one of the allowed states.
// With no states configured every transition is forwarded.
type FilterSink struct {
	next    Sink
	allowed map[string]struct{}
}

// NewFilterSink wraps next. Blank entries are ignored; an empty list
// forwards everything.
func NewFilterSink(next Sink, states []string) *FilterSink {
	var allowed map[string]struct{}
	for _, s := range states {
		if s = strings.TrimSpace(s); s != "" {
			if allowed == nil {
				allowed = make(map[string]struct{})
			}
			allowed[provider.ParseBuildState(s).String()] = struct{}{}
		}
	}
	return &FilterSink{next: next, allowed: allowed}
}

// Allows reports whether a transition into state would be forwarded.
func (f *FilterSink) Allows(state provider.BuildState) bool {
	if f.allowed == nil {
		return true
	}
	_, ok := f.allowed[state.String()]
	return ok
}

func (f *FilterSink) Notify(ctx context.Context, n Notification) error {
	if !f.Allows(n.To) {
		return nil
	}
	return f.next.Notify(ctx, n)
}
