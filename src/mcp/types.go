// Package mcp exposes the build monitor to MCP clients over stdio.
package mcp

// BuildInfo is a tracked build as returned to MCP clients.
type BuildInfo struct {
	ID            string `json:"id"`
	Ref           string `json:"ref"`
	URL           string `json:"url"`
	Pipeline      string `json:"pipeline"`
	Branch        string `json:"branch,omitempty"`
	Commit        string `json:"commit,omitempty"`
	State         string `json:"state"`
	Duration      string `json:"duration,omitempty"`
	AddedManually bool   `json:"added_manually,omitempty"`
	FailedSteps   []string `json:"failed_steps,omitempty"`
}

// TieredBuilds groups builds by how urgently they need a human.
type TieredBuilds struct {
	Status StatusInfo `json:"status"`
	// NeedsAttention are failed or blocked builds.
	NeedsAttention []BuildInfo `json:"needs_attention"`
	InProgress     []BuildInfo `json:"in_progress"`
	// Finished is summarized beyond the per-tier limit.
	Finished        []BuildInfo `json:"finished"`
	FinishedOmitted int         `json:"finished_omitted,omitempty"`
}

// StatusInfo describes the monitor itself.
type StatusInfo struct {
	Monitoring   bool     `json:"monitoring"`
	Organization string   `json:"organization"`
	User         string   `json:"user,omitempty"`
	PollInterval string   `json:"poll_interval"`
	LastUpdated  string   `json:"last_updated,omitempty"`
	HasFetched   bool     `json:"has_fetched"`
	Error        string   `json:"error,omitempty"`
	Active       int      `json:"active"`
	Completed    int      `json:"completed"`
	ManualRefs   []string `json:"manual_refs,omitempty"`
}

// DiagnosticInfo is one diagnostic log entry.
type DiagnosticInfo struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// TransitionInfo is one recorded state change.
type TransitionInfo struct {
	Time   string `json:"time"`
	Build  string `json:"build"`
	URL    string `json:"url"`
	From   string `json:"from"`
	To     string `json:"to"`
	Branch string `json:"branch,omitempty"`
}
