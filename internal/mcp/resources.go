package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"donorkit/internal/store"
)

func registerStatsResource(s *server.MCPServer, tbl *sessionTable, st store.Store) {
	resource := mcp.NewResource(
		"donorkit://stats",
		"Outbox Statistics",
		mcp.WithResourceDescription("Donation and session counts plus database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tbl.mu.Lock()
		defer tbl.mu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying stats resource: %w", err)
		}

		payload := map[string]interface{}{
			"donation_count": stats.DonationCount,
			"session_count":  stats.SessionCount,
			"db_size_bytes":  stats.DBSizeBytes,
			"live_sessions":  len(tbl.sessions),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func registerRecentResource(s *server.MCPServer, tbl *sessionTable, st store.Store) {
	resource := mcp.NewResource(
		"donorkit://donations/recent",
		"Recent Donations",
		mcp.WithResourceDescription("The most recently stored donations across all sessions."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tbl.mu.Lock()
		defer tbl.mu.Unlock()

		donations, err := st.ListDonations(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("querying recent resource: %w", err)
		}

		const maxRecent = 50
		if len(donations) > maxRecent {
			donations = donations[len(donations)-maxRecent:]
		}

		items := make([]donationItem, 0, len(donations))
		// Newest first.
		for i := len(donations) - 1; i >= 0; i-- {
			items = append(items, newDonationItem(donations[i]))
		}

		payload := map[string]interface{}{
			"donations": items,
			"count":     len(items),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
