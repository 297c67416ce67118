// Package contracts defines the messages buildwatch publishes to brokers and stores.
package contracts

import "time"

// TransitionEvent records a tracked build changing state between two polls.
// Published to: buildwatch.transitions
// Key: {build_id}
type TransitionEvent struct {
	BuildID      string `json:"build_id"`
	Organization string `json:"organization"`
	Pipeline     string `json:"pipeline"`
	PipelineName string `json:"pipeline_name"`
	Number       int    `json:"number"`
	Branch       string `json:"branch"`
	WebURL       string `json:"web_url"`

	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`

	// Rendered notification text.
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`

	ObservedAt time.Time `json:"observed_at"`
}

// DiagnosticEvent is one entry of the diagnostic log.
// Published to: buildwatch.diagnostics
// Key: {code}
type DiagnosticEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	// Level is one of info, warning, error.
	Level string `json:"level"`
}

// TopicNames defines the broker topics buildwatch publishes to
const (
	// TopicTransitions carries TransitionEvent values
	TopicTransitions = "buildwatch.transitions"

	// TopicDiagnostics carries DiagnosticEvent values
	TopicDiagnostics = "buildwatch.diagnostics"
)
