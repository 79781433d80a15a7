// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the board client as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jeterchen1226/fastapi-trello/internal/observability"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// BoardView is the loaded project page.
type BoardView interface {
	Board() models.Board
	Reload(ctx context.Context) ([]models.FeedbackSignal, error)
}

// Mover commits a drag of one item.
type Mover interface {
	Move(ctx context.Context, kind models.ItemKind, itemID, targetID string, index int) (models.FeedbackSignal, error)
}

// Deleter runs the destructive board actions.
type Deleter interface {
	DeleteTask(ctx context.Context, taskID, name string) ([]models.FeedbackSignal, error)
	DeleteLane(ctx context.Context, laneID, name string) ([]models.FeedbackSignal, error)
}

// Server wraps the board services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	view        BoardView
	mover       Mover
	deleter     Deleter
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over the given board services.
// metricsCalc and alertEngine may be nil if the event log is disabled.
func NewServer(view BoardView, mover Mover, deleter Deleter, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		view:        view,
		mover:       mover,
		deleter:     deleter,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "board", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listBoardInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"reload the project page from the server before reading it"`
}

type laneOutput struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Tasks []taskOutput `json:"tasks"`
}

type taskOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listBoardOutput struct {
	ProjectID string       `json:"project_id"`
	Lanes     []laneOutput `json:"lanes"`
	Messages  []string     `json:"messages,omitempty"`
}

type moveTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task to move"`
	LaneID string `json:"lane_id" jsonschema:"required,the lane to move the task into (may be its current lane)"`
	Index  int    `json:"index" jsonschema:"required,0-based position inside the target lane"`
}

type moveLaneInput struct {
	LaneID string `json:"lane_id" jsonschema:"required,the lane to move"`
	Index  int    `json:"index" jsonschema:"required,0-based position among the project's lanes"`
}

type feedbackOutput struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Channel  string `json:"channel"`
}

type feedbackListOutput struct {
	Feedback []feedbackOutput `json:"feedback"`
}

type deleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task to delete"`
}

type deleteLaneInput struct {
	LaneID string `json:"lane_id" jsonschema:"required,the lane to delete together with its tasks"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	FeedbackShown    int            `json:"feedback_shown"`
	FeedbackDropped  int            `json:"feedback_dropped"`
	ShownByChannel   map[string]int `json:"shown_by_channel"`
	ReorderCommitted int            `json:"reorder_committed"`
	ReorderFailed    int            `json:"reorder_failed"`
	FailuresBySource map[string]int `json:"failures_by_source"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_board",
		Description: "Get the lanes and tasks of the open project in visual order.",
	}, s.handleListBoard)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a task to a 0-based index inside a lane and persist the new position. Returns the feedback shown to the user.",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_lane",
		Description: "Move a lane to a 0-based index among the project's lanes and persist the new position.",
	}, s.handleMoveLane)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task. This cannot be undone.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_lane",
		Description: "Delete a lane and all of its tasks. This cannot be undone.",
	}, s.handleDeleteLane)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated feedback and reorder metrics from the event log.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active health alerts (unreachable server, reorder failure rate, error bursts).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListBoard(ctx context.Context, _ *gomcp.CallToolRequest, input listBoardInput) (*gomcp.CallToolResult, listBoardOutput, error) {
	var out listBoardOutput
	if input.Refresh {
		signals, err := s.view.Reload(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("reloading board: %s", err)), listBoardOutput{}, nil
		}
		for _, sig := range signals {
			out.Messages = append(out.Messages, sig.Message)
		}
	}

	b := s.view.Board()
	out.ProjectID = b.ProjectID
	out.Lanes = make([]laneOutput, len(b.Lanes))
	for i, l := range b.Lanes {
		lo := laneOutput{ID: l.ID, Name: l.Name, Tasks: make([]taskOutput, len(l.Tasks))}
		for j, t := range l.Tasks {
			lo.Tasks[j] = taskOutput{ID: t.ID, Name: t.Name}
		}
		out.Lanes[i] = lo
	}
	return nil, out, nil
}

func (s *Server) handleMoveTask(ctx context.Context, _ *gomcp.CallToolRequest, input moveTaskInput) (*gomcp.CallToolResult, feedbackListOutput, error) {
	if input.TaskID == "" || input.LaneID == "" {
		return errorResult("task_id and lane_id are required"), feedbackListOutput{}, nil
	}
	return s.move(ctx, models.KindTask, input.TaskID, input.LaneID, input.Index)
}

func (s *Server) handleMoveLane(ctx context.Context, _ *gomcp.CallToolRequest, input moveLaneInput) (*gomcp.CallToolResult, feedbackListOutput, error) {
	if input.LaneID == "" {
		return errorResult("lane_id is required"), feedbackListOutput{}, nil
	}
	projectID := s.view.Board().ProjectID
	if projectID == "" {
		return errorResult("no project is open"), feedbackListOutput{}, nil
	}
	return s.move(ctx, models.KindLane, input.LaneID, projectID, input.Index)
}

func (s *Server) move(ctx context.Context, kind models.ItemKind, itemID, targetID string, index int) (*gomcp.CallToolResult, feedbackListOutput, error) {
	if index < 0 {
		return errorResult(fmt.Sprintf("invalid index %d", index)), feedbackListOutput{}, nil
	}
	sig, err := s.mover.Move(ctx, kind, itemID, targetID, index)
	if err != nil {
		return errorResult(err.Error()), feedbackListOutput{}, nil
	}
	out := feedbackList([]models.FeedbackSignal{sig})
	if sig.Severity == models.SeverityError {
		return errorResult(sig.Message), out, nil
	}
	return nil, out, nil
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input deleteTaskInput) (*gomcp.CallToolResult, feedbackListOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), feedbackListOutput{}, nil
	}
	name, ok := findName(s.view.Board(), models.KindTask, input.TaskID)
	if !ok {
		return errorResult(fmt.Sprintf("task %s is not on the board", input.TaskID)), feedbackListOutput{}, nil
	}
	signals, err := s.deleter.DeleteTask(ctx, input.TaskID, name)
	if err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.TaskID, err)), feedbackListOutput{}, nil
	}
	return nil, feedbackList(signals), nil
}

func (s *Server) handleDeleteLane(ctx context.Context, _ *gomcp.CallToolRequest, input deleteLaneInput) (*gomcp.CallToolResult, feedbackListOutput, error) {
	if input.LaneID == "" {
		return errorResult("lane_id is required"), feedbackListOutput{}, nil
	}
	name, ok := findName(s.view.Board(), models.KindLane, input.LaneID)
	if !ok {
		return errorResult(fmt.Sprintf("lane %s is not on the board", input.LaneID)), feedbackListOutput{}, nil
	}
	signals, err := s.deleter.DeleteLane(ctx, input.LaneID, name)
	if err != nil {
		return errorResult(fmt.Sprintf("deleting lane %s: %s", input.LaneID, err)), feedbackListOutput{}, nil
	}
	return nil, feedbackList(signals), nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		FeedbackShown:    metrics.FeedbackShown,
		FeedbackDropped:  metrics.FeedbackDropped,
		ShownByChannel:   metrics.ShownByChannel,
		ReorderCommitted: metrics.ReorderCommitted,
		ReorderFailed:    metrics.ReorderFailed,
		FailuresBySource: metrics.FailuresBySource,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func findName(b models.Board, kind models.ItemKind, id string) (string, bool) {
	for _, l := range b.Lanes {
		if kind == models.KindLane && l.ID == id {
			return l.Name, true
		}
		if kind != models.KindTask {
			continue
		}
		for _, t := range l.Tasks {
			if t.ID == id {
				return t.Name, true
			}
		}
	}
	return "", false
}

func feedbackList(signals []models.FeedbackSignal) feedbackListOutput {
	out := feedbackListOutput{Feedback: make([]feedbackOutput, len(signals))}
	for i, sig := range signals {
		out.Feedback[i] = feedbackOutput{
			Severity: string(sig.Severity),
			Message:  sig.Message,
			Channel:  string(sig.Channel),
		}
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		ShownByChannel:   make(map[string]int),
		FailuresBySource: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func ParseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
