// Package mcpserver exposes the pattern engine and the job
// configuration over the Model Context Protocol, so an agent can
// validate cron expressions, preview occurrences, and inspect job
// history through stdio tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/journal"
	"github.com/flemzord/cronus/internal/version"
	"github.com/flemzord/cronus/pkg/cron"
)

const (
	defaultNextCount = 5
	maxNextCount     = 100

	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Server wires engine and daemon-state tools into an MCP stdio
// server. Jobs and Journal are optional; the corresponding tools
// report their absence instead of failing the whole server.
type Server struct {
	jobs    []config.Job
	journal *journal.Journal
	logger  *slog.Logger
	mcp     *server.MCPServer
}

// Config carries the server's data sources.
type Config struct {
	// Jobs is the resolved job list, empty when no config was given.
	Jobs []config.Job

	// Journal backs the job_history tool; nil disables it gracefully.
	Journal *journal.Journal

	Logger *slog.Logger
}

// New builds the server with all tools registered.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		jobs:    cfg.Jobs,
		journal: cfg.Journal,
		logger:  logger,
	}

	m := server.NewMCPServer("cronus", version.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	m.AddTool(mcp.NewTool("cron_check",
		mcp.WithDescription("Validate a five-field cron expression and return its canonical form."),
		mcp.WithString("expr", mcp.Required(),
			mcp.Description("Cron expression: minute hour dayOfMonth month dayOfWeek")),
	), s.handleCheck)

	m.AddTool(mcp.NewTool("cron_next",
		mcp.WithDescription("Compute the upcoming occurrences of a cron expression."),
		mcp.WithString("expr", mcp.Required(),
			mcp.Description("Cron expression: minute hour dayOfMonth month dayOfWeek")),
		mcp.WithNumber("count",
			mcp.Description(fmt.Sprintf("How many occurrences to return (default %d, max %d)", defaultNextCount, maxNextCount))),
		mcp.WithString("timezone",
			mcp.Description("IANA zone name for the computation; defaults to the system zone")),
		mcp.WithString("from",
			mcp.Description("RFC 3339 instant to start from; defaults to now")),
	), s.handleNext)

	m.AddTool(mcp.NewTool("job_list",
		mcp.WithDescription("List the configured jobs with their schedules and next occurrence."),
	), s.handleJobList)

	m.AddTool(mcp.NewTool("job_history",
		mcp.WithDescription("Query the execution journal for recent job runs."),
		mcp.WithString("job",
			mcp.Description("Restrict to one job name; empty means all jobs")),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum rows to return (default %d, max %d)", defaultHistoryLimit, maxHistoryLimit))),
	), s.handleHistory)

	s.mcp = m
	return s
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Info("mcpserver: serving on stdio")
	if err := server.ServeStdio(s.mcp); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

type checkResult struct {
	Expression string `json:"expression"`
	Canonical  string `json:"canonical"`
	Empty      bool   `json:"empty"`
}

func (s *Server) handleCheck(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr, err := req.RequireString("expr")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := cron.Parse(expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(checkResult{
		Expression: expr,
		Canonical:  p.String(),
		Empty:      p.IsEmpty(),
	})
}

type nextResult struct {
	Expression  string   `json:"expression"`
	Zone        string   `json:"zone"`
	From        string   `json:"from"`
	Occurrences []string `json:"occurrences"`
}

func (s *Server) handleNext(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr, err := req.RequireString("expr")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := cron.Parse(expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	count := req.GetInt("count", defaultNextCount)
	if count < 1 || count > maxNextCount {
		return mcp.NewToolResultError(fmt.Sprintf("count %d out of range [1,%d]", count, maxNextCount)), nil
	}

	loc := time.Local
	if tz := req.GetString("timezone", ""); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown timezone %q", tz)), nil
		}
	}

	from := time.Now()
	if raw := req.GetString("from", ""); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("from: %v", err)), nil
		}
	}

	res := nextResult{
		Expression:  expr,
		Zone:        loc.String(),
		From:        from.In(loc).Format(time.RFC3339),
		Occurrences: make([]string, 0, count),
	}
	t := from.In(loc)
	for range count {
		next, ok := p.Next(t, false)
		if !ok {
			break
		}
		res.Occurrences = append(res.Occurrences, next.Format(time.RFC3339))
		t = next
	}
	return jsonResult(res)
}

type jobEntry struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Zone     string   `json:"zone"`
	Command  []string `json:"command"`
	Next     string   `json:"next,omitempty"`
}

func (s *Server) handleJobList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := make([]jobEntry, 0, len(s.jobs))
	for _, job := range s.jobs {
		e := jobEntry{
			Name:     job.Name,
			Schedule: job.Pattern.String(),
			Zone:     job.Location.String(),
			Command:  job.Command,
		}
		if next, ok := job.Pattern.Next(time.Now().In(job.Location), false); ok {
			e.Next = next.Format(time.RFC3339)
		}
		out = append(out, e)
	}
	return jsonResult(out)
}

type historyEntry struct {
	ID       int64  `json:"id"`
	Job      string `json:"job"`
	Pattern  string `json:"pattern"`
	Started  string `json:"started"`
	Duration int64  `json:"duration_ms"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.journal == nil {
		return mcp.NewToolResultError("no journal configured; pass --config pointing at a daemon configuration"), nil
	}
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return mcp.NewToolResultError(fmt.Sprintf("limit %d out of range [1,%d]", limit, maxHistoryLimit)), nil
	}
	runs, err := s.journal.Recent(ctx, req.GetString("job", ""), limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]historyEntry, 0, len(runs))
	for _, run := range runs {
		out = append(out, historyEntry{
			ID:       run.ID,
			Job:      run.Job,
			Pattern:  run.Pattern,
			Started:  run.Started.Format(time.RFC3339),
			Duration: run.Duration.Milliseconds(),
			Status:   string(run.Status),
			Error:    run.Error,
		})
	}
	return jsonResult(out)
}

// jsonResult marshals v as the tool's text payload.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
