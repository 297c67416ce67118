package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"buildwatch/src/diagnostics"
	"buildwatch/src/monitor"
	"buildwatch/src/provider"
	"buildwatch/src/store"
)

// Version is reported to MCP clients during initialization.
var Version = "dev"

const (
	defaultDiagnosticsLimit = 20
	defaultHistoryLimit     = 20
)

// Monitor is the part of the engine the MCP tools drive.
type Monitor interface {
	Snapshot() monitor.Snapshot
	AddBuild(ctx context.Context, url string) (provider.Build, error)
	RemoveBuild(id string) bool
	ClearCompleted() int
	Poll(ctx context.Context) error
	Diagnostics() *diagnostics.Log
}

// Server is the MCP server for buildwatch.
type Server struct {
	mcpServer *server.MCPServer
	monitor   Monitor
	history   store.Store
	now       func() time.Time
}

// NewServer creates a new MCP server over mon. history may be nil, in
// which case recent_transitions is not offered.
func NewServer(mon Monitor, history store.Store) *Server {
	s := server.NewMCPServer(
		"buildwatch",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	srv := &Server{
		mcpServer: s,
		monitor:   mon,
		history:   history,
		now:       time.Now,
	}
	srv.registerTools()

	return srv
}

const instructions = `buildwatch tracks Buildkite builds for the token's user.
Call list_builds first; builds in needs_attention have failed or are blocked.
Use add_build to follow a build by URL and poll_now to refresh immediately.
When something looks wrong, check status and diagnostics.`

// registerTools registers all available tools.
func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_builds",
		mcp.WithDescription("List tracked builds grouped into needs_attention, in_progress and finished tiers. Finished builds beyond the limit are only counted."),
		mcp.WithString("state",
			mcp.Description("Optional filter: a build state (running, failed, ...), active, completed or attention"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max finished builds to list (default: %d)", DefaultFinishedLimit)),
		),
	)

	addTool := mcp.NewTool("add_build",
		mcp.WithDescription("Start tracking a build by its Buildkite URL. Returns the build as fetched."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Build URL, e.g. https://buildkite.com/org/pipeline/builds/42"),
		),
	)

	removeTool := mcp.NewTool("remove_build",
		mcp.WithDescription("Stop tracking a build. It will not come back from the feed."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Build ID as returned by list_builds"),
		),
	)

	clearTool := mcp.NewTool("clear_completed",
		mcp.WithDescription("Dismiss every completed build."),
	)

	pollTool := mcp.NewTool("poll_now",
		mcp.WithDescription("Refresh builds from Buildkite immediately and return the new status."),
	)

	statusTool := mcp.NewTool("status",
		mcp.WithDescription("Report whether monitoring is running, for which user and org, and the current error if any."),
	)

	diagTool := mcp.NewTool("diagnostics",
		mcp.WithDescription("Return recent diagnostic log entries, newest first."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max entries (default: %d)", defaultDiagnosticsLimit)),
		),
		mcp.WithString("level",
			mcp.Description("Optional filter: info, warning or error"),
		),
	)

	s.mcpServer.AddTool(listTool, s.handleListBuilds)
	s.mcpServer.AddTool(addTool, s.handleAddBuild)
	s.mcpServer.AddTool(removeTool, s.handleRemoveBuild)
	s.mcpServer.AddTool(clearTool, s.handleClearCompleted)
	s.mcpServer.AddTool(pollTool, s.handlePollNow)
	s.mcpServer.AddTool(statusTool, s.handleStatus)
	s.mcpServer.AddTool(diagTool, s.handleDiagnostics)

	if s.history != nil {
		historyTool := mcp.NewTool("recent_transitions",
			mcp.WithDescription("Return recorded build state changes, newest first. Survives restarts when a persistent store is configured."),
			mcp.WithNumber("limit",
				mcp.Description(fmt.Sprintf("Max transitions (default: %d)", defaultHistoryLimit)),
			),
		)
		s.mcpServer.AddTool(historyTool, s.handleRecentTransitions)
	}
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleListBuilds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.monitor.Snapshot()
	snap.Builds = filterBuilds(snap.Builds, request.GetString("state", ""))

	limit := request.GetInt("limit", DefaultFinishedLimit)
	return jsonResult(TierBuilds(snap, s.now(), limit))
}

func (s *Server) handleAddBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := request.GetString("url", "")
	if url == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	build, err := s.monitor.AddBuild(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(toolError(err)), nil
	}
	return jsonResult(convertBuild(build, s.now()))
}

func (s *Server) handleRemoveBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	if s.monitor.RemoveBuild(id) {
		return mcp.NewToolResultText(fmt.Sprintf("removed build %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("build %s was not tracked; it will be ignored if it appears", id)), nil
}

func (s *Server) handleClearCompleted(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.monitor.ClearCompleted()
	return mcp.NewToolResultText(fmt.Sprintf("cleared %d completed builds", n)), nil
}

func (s *Server) handlePollNow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.monitor.Poll(ctx); err != nil {
		if errors.Is(err, monitor.ErrCycleInProgress) {
			return mcp.NewToolResultText("a refresh is already running"), nil
		}
		return mcp.NewToolResultError(toolError(err)), nil
	}
	return jsonResult(statusInfo(s.monitor.Snapshot()))
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(statusInfo(s.monitor.Snapshot()))
}

func (s *Server) handleDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultDiagnosticsLimit)
	level := request.GetString("level", "")

	// Newest first; a non-positive limit means everything retained.
	var entries []diagnostics.Entry
	if level == "" {
		entries = s.monitor.Diagnostics().Recent(limit)
	} else {
		filtered := s.monitor.Diagnostics().Filter(diagnostics.ParseLevel(level))
		if limit <= 0 || limit > len(filtered) {
			limit = len(filtered)
		}
		// Filter is oldest first.
		for i := len(filtered) - 1; len(entries) < limit; i-- {
			entries = append(entries, filtered[i])
		}
	}

	out := make([]DiagnosticInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, DiagnosticInfo{
			Time:    e.Timestamp.UTC().Format(time.RFC3339),
			Level:   string(e.Level),
			Code:    e.Code,
			Message: e.Message,
			Detail:  compactDetail(e.Detail),
		})
	}
	return jsonResult(out)
}

func (s *Server) handleRecentTransitions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultHistoryLimit)

	events, err := s.history.RecentTransitions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %v", err)), nil
	}

	out := make([]TransitionInfo, 0, len(events))
	for _, ev := range events {
		build := fmt.Sprintf("%s #%d", ev.PipelineName, ev.Number)
		out = append(out, TransitionInfo{
			Time:   ev.ObservedAt.UTC().Format(time.RFC3339),
			Build:  build,
			URL:    ev.WebURL,
			From:   ev.FromState,
			To:     ev.ToState,
			Branch: ev.Branch,
		})
	}
	return jsonResult(out)
}

// toolError renders err for a client, preferring the user-facing message
// of classified provider errors.
func toolError(err error) string {
	if errors.Is(err, monitor.ErrNotConfigured) {
		return "monitor is not configured with a token and organization"
	}
	if wrapped := provider.WrapError(err); wrapped != nil {
		return wrapped.Error()
	}
	return err.Error()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
