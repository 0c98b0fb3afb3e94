// Package mcpserver exports bridge operations as MCP tools so an automation
// agent can drive a game session.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/y8bridge/pkg/bridge"
)

// Server wraps an MCP server whose tools call one bridge.
type Server struct {
	srv *mcp.Server
}

// New registers every tool for b.
func New(b *bridge.Bridge, version string) *Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "y8bridge", Version: version}, nil)

	mcp.AddTool(srv, SessionProfileTool(), SessionProfileHandler(b))
	mcp.AddTool(srv, AutoLoginTool(), loginHandler(b, b.AutoLogin))
	mcp.AddTool(srv, LoginTool(), loginHandler(b, b.Login))
	mcp.AddTool(srv, GetDataTool(), GetDataHandler(b))
	mcp.AddTool(srv, SetDataTool(), SetDataHandler(b))
	mcp.AddTool(srv, ClearDataTool(), ClearDataHandler(b))
	mcp.AddTool(srv, SaveScoreTool(), SaveScoreHandler(b))
	mcp.AddTool(srv, CustomScoreTool(), CustomScoreHandler(b))
	mcp.AddTool(srv, ScoreTablesTool(), ScoreTablesHandler(b))
	mcp.AddTool(srv, IsBlacklistedTool(), flagHandler(b.IsBlacklisted))
	mcp.AddTool(srv, IsSponsorTool(), flagHandler(b.IsSponsor))

	return &Server{srv: srv}
}

// Serve runs the server on transport until ctx ends or the peer disconnects.
// Cancellation is not reported as an error.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	err := s.srv.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// ServeStdio serves over the process's stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}
