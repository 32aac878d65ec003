// Package mcp provides a Model Context Protocol server for donorkit.
//
// It exposes the donation flow protocol (start a session, fetch the current
// prompt, resume with an operator response) and the donation outbox as MCP
// tools, so any MCP-capable host can act as the presenter. Supports stdio
// transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"donorkit/internal/flow"
	"donorkit/internal/platform"
	"donorkit/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store     store.Store
	Registry  *platform.Registry
	Locale    string
	ChunkRows int
	Version   string // version string for MCP server info
	Logger    *zap.Logger
}

// sessionTable holds the live donation sessions. Its mutex serializes all
// MCP tool calls: the mcp-go library dispatches handlers concurrently via
// goroutines, but each session is a strict request/response alternation and
// the SQLite outbox supports only one writer at a time.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	runner *flow.Runner
	last   *flow.RenderRequest
}

// sessionResponse is the wire shape every session tool returns.
type sessionResponse struct {
	SessionID string              `json:"session_id"`
	Done      bool                `json:"done"`
	Request   *flow.RenderRequest `json:"request,omitempty"`
}

// NewServer creates a configured MCP server with all donorkit tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	if cfg.Registry == nil {
		cfg.Registry = platform.DefaultRegistry
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"Donorkit",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	tbl := &sessionTable{sessions: make(map[string]*session)}

	// Register tools
	registerSessionStartTool(s, tbl, cfg)
	registerSessionRequestTool(s, tbl)
	registerSessionResumeTool(s, tbl, cfg)
	registerDonationListTool(s, tbl, cfg.Store)

	// Register resources
	registerStatsResource(s, tbl, cfg.Store)
	registerRecentResource(s, tbl, cfg.Store)

	return s
}

// --- Tools ---

func registerSessionStartTool(s *server.MCPServer, tbl *sessionTable, cfg ServerConfig) {
	tool := mcp.NewTool("donation_session_start",
		mcp.WithDescription("Start a new data donation session. Returns a session id and the first prompt to show the participant (a file input for the first platform)."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("platforms",
			mcp.Description("Comma-separated platform names to walk through, in order (e.g. 'tiktok,chatgpt'). Empty = all registered platforms."),
		),
		mcp.WithString("locale",
			mcp.Description("Prompt language: en or nl (default: server locale)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tbl.mu.Lock()
		defer tbl.mu.Unlock()

		extractors := cfg.Registry.List()
		if raw, err := req.RequireString("platforms"); err == nil && raw != "" {
			extractors = nil
			for _, n := range strings.Split(raw, ",") {
				n = strings.TrimSpace(n)
				if n == "" {
					continue
				}
				e := cfg.Registry.Get(n)
				if e == nil {
					return mcp.NewToolResultError(fmt.Sprintf("unknown platform: %s", n)), nil
				}
				extractors = append(extractors, e)
			}
		}

		locale := cfg.Locale
		if l, err := req.RequireString("locale"); err == nil && l != "" {
			locale = l
		}

		sid := uuid.NewString()
		runner := flow.NewRunner(flow.RunnerConfig{
			SessionID:  sid,
			Extractors: extractors,
			ChunkRows:  cfg.ChunkRows,
			Locale:     locale,
			Logger:     cfg.Logger,
		})

		first := runner.Start()
		if err := persistCommands(ctx, cfg.Store, runner.Commands(), cfg.Logger); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("outbox error: %v", err)), nil
		}

		sess := &session{runner: runner, last: first}
		tbl.sessions[sid] = sess

		data, _ := json.MarshalIndent(sessionResponse{
			SessionID: sid,
			Done:      runner.Done(),
			Request:   first,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSessionRequestTool(s *server.MCPServer, tbl *sessionTable) {
	tool := mcp.NewTool("donation_session_request",
		mcp.WithDescription("Fetch the current prompt for a donation session without advancing it. Useful after a host restart or a dropped response."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by donation_session_start"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tbl.mu.Lock()
		defer tbl.mu.Unlock()

		sid, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		sess, ok := tbl.sessions[sid]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown session: %s", sid)), nil
		}

		data, _ := json.MarshalIndent(sessionResponse{
			SessionID: sid,
			Done:      sess.runner.Done(),
			Request:   sess.last,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSessionResumeTool(s *server.MCPServer, tbl *sessionTable, cfg ServerConfig) {
	tool := mcp.NewTool("donation_session_resume",
		mcp.WithDescription("Answer the current prompt of a donation session and advance it. Returns the next prompt, or the end page when the session is over. Donations are persisted to the outbox as they happen."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by donation_session_start"),
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Response discriminator"),
			mcp.Enum("PayloadString", "PayloadJSON", "PayloadTrue", "PayloadFalse", "PayloadVoid"),
		),
		mcp.WithString("value",
			mcp.Description("Response value. A file path for PayloadString, a JSON document for PayloadJSON, ignored otherwise."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tbl.mu.Lock()
		defer tbl.mu.Unlock()

		sid, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		sess, ok := tbl.sessions[sid]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown session: %s", sid)), nil
		}

		kind, err := req.RequireString("kind")
		if err != nil {
			return mcp.NewToolResultError("kind is required"), nil
		}
		value, _ := req.RequireString("value")

		// ParsePayload expects a JSON value; a plain string gets quoted here
		// so the tool argument stays a simple path.
		var raw json.RawMessage
		if kind == "PayloadString" {
			raw, _ = json.Marshal(value)
		} else {
			raw = json.RawMessage(value)
		}
		payload := flow.ParsePayload(kind, raw)

		next, err := sess.runner.Resume(ctx, payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("resume error: %v", err)), nil
		}
		if perr := persistCommands(ctx, cfg.Store, sess.runner.Commands(), cfg.Logger); perr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("outbox error: %v", perr)), nil
		}
		sess.last = next

		data, _ := json.MarshalIndent(sessionResponse{
			SessionID: sid,
			Done:      sess.runner.Done(),
			Request:   next,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerDonationListTool(s *server.MCPServer, tbl *sessionTable, st store.Store) {
	tool := mcp.NewTool("donation_list",
		mcp.WithDescription("List stored donations from the outbox, oldest first. Optionally scope to one session."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("session_id",
			mcp.Description("Only donations belonging to this session. Empty = all sessions."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tbl.mu.Lock()
		defer tbl.mu.Unlock()

		var sid string
		if v, err := req.RequireString("session_id"); err == nil {
			sid = v
		}

		donations, err := st.ListDonations(ctx, sid)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list error: %v", err)), nil
		}

		items := make([]donationItem, 0, len(donations))
		for _, d := range donations {
			items = append(items, newDonationItem(d))
		}

		payload := map[string]interface{}{
			"donations": items,
			"count":     len(items),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// donationItem is the wire shape of one outbox row.
type donationItem struct {
	ID        int64           `json:"id"`
	Key       string          `json:"key"`
	SessionID string          `json:"session_id"`
	Platform  string          `json:"platform"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func newDonationItem(d *store.Donation) donationItem {
	payload := json.RawMessage(d.Payload)
	if !json.Valid(payload) {
		payload, _ = json.Marshal(d.Payload)
	}
	return donationItem{
		ID:        d.ID,
		Key:       d.Key,
		SessionID: d.SessionID,
		Platform:  d.Platform,
		Payload:   payload,
		CreatedAt: d.CreatedAt,
	}
}

// persistCommands writes donate commands to the outbox and logs exits.
func persistCommands(ctx context.Context, st store.Store, cmds []flow.Command, logger *zap.Logger) error {
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case flow.DonateCommand:
			d := &store.Donation{Key: c.Key, Payload: c.JSON}
			if _, err := st.SaveDonation(ctx, d); err != nil {
				return fmt.Errorf("saving donation %s: %w", c.Key, err)
			}
			logger.Info("donation stored", zap.String("key", c.Key), zap.Int("bytes", len(c.JSON)))
		case flow.ExitCommand:
			logger.Info("session exit", zap.Int("code", c.Code), zap.String("message", c.Message))
		}
	}
	return nil
}
