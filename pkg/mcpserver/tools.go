package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/y8bridge/pkg/bridge"
	"github.com/wilhg/y8bridge/pkg/protocol"
	"github.com/wilhg/y8bridge/pkg/session"
)

// NoInput is the input of tools that take no arguments.
type NoInput struct{}

// SessionProfileTool reports the current player without contacting the SDK.
func SessionProfileTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_profile",
		Description: "Returns the logged-in player's profile from the last authorisation response.",
	}
}

func SessionProfileHandler(b *bridge.Bridge) mcp.ToolHandlerFor[NoInput, session.Profile] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, session.Profile, error) {
		return nil, b.Session().Profile(), nil
	}
}

// LoginResult is the output of the auth tools.
type LoginResult struct {
	LoggedIn bool   `json:"logged_in" jsonschema:"whether a player is now logged in"`
	PID      string `json:"pid,omitempty" jsonschema:"player id"`
	Nickname string `json:"nickname,omitempty" jsonschema:"player nickname"`
}

func AutoLoginTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "auto_login",
		Description: "Logs the player in silently if the platform remembers them.",
	}
}

func LoginTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "login",
		Description: "Opens the platform login dialog and waits for the player.",
	}
}

func loginHandler(b *bridge.Bridge, run func(context.Context) bridge.Result[*protocol.Authorisation]) mcp.ToolHandlerFor[NoInput, LoginResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, LoginResult, error) {
		r := run(ctx)
		// A declined login is a normal answer, not a tool failure.
		if r.Err != nil && r.Data == nil {
			return nil, LoginResult{}, r.Err
		}
		s := b.Session()
		return nil, LoginResult{LoggedIn: s.IsLoggedIn(), PID: s.PID(), Nickname: s.Nickname()}, nil
	}
}

// KeyInput names a storage key.
type KeyInput struct {
	Key string `json:"key" jsonschema:"storage key"`
}

// SetDataInput is the input of set_data.
type SetDataInput struct {
	Key   string `json:"key" jsonschema:"storage key"`
	Value string `json:"value" jsonschema:"value to store"`
}

// DataResult is the output of the storage tools.
type DataResult struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Status string `json:"status,omitempty"`
}

func GetDataTool() *mcp.Tool {
	return &mcp.Tool{Name: "get_data", Description: "Reads a value from the player's cloud storage. Requires login."}
}

func GetDataHandler(b *bridge.Bridge) mcp.ToolHandlerFor[KeyInput, DataResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in KeyInput) (*mcp.CallToolResult, DataResult, error) {
		r := b.GetData(ctx, in.Key)
		if !r.Success {
			return nil, DataResult{}, r.Err
		}
		return nil, DataResult{Key: in.Key, Value: r.Data}, nil
	}
}

func SetDataTool() *mcp.Tool {
	return &mcp.Tool{Name: "set_data", Description: "Stores a value in the player's cloud storage. Requires login."}
}

func SetDataHandler(b *bridge.Bridge) mcp.ToolHandlerFor[SetDataInput, DataResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SetDataInput) (*mcp.CallToolResult, DataResult, error) {
		return storageResult(in.Key, b.SetData(ctx, in.Key, in.Value))
	}
}

func ClearDataTool() *mcp.Tool {
	return &mcp.Tool{Name: "clear_data", Description: "Removes a key from the player's cloud storage. Requires login."}
}

func ClearDataHandler(b *bridge.Bridge) mcp.ToolHandlerFor[KeyInput, DataResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in KeyInput) (*mcp.CallToolResult, DataResult, error) {
		return storageResult(in.Key, b.ClearData(ctx, in.Key))
	}
}

func storageResult(key string, r bridge.Result[*protocol.SetData]) (*mcp.CallToolResult, DataResult, error) {
	if !r.Success {
		return nil, DataResult{}, r.Err
	}
	return nil, DataResult{Key: key, Status: r.Data.Status}, nil
}

// SaveScoreInput is the input of save_score.
type SaveScoreInput struct {
	Table           string `json:"table" jsonschema:"leaderboard table name"`
	Points          int64  `json:"points" jsonschema:"score to submit"`
	AllowDuplicates bool   `json:"allow_duplicates,omitempty" jsonschema:"keep more than one score per player"`
	Lowest          bool   `json:"lowest,omitempty" jsonschema:"rank lower scores first"`
}

// SaveScoreResult is the output of save_score.
type SaveScoreResult struct {
	Saved bool `json:"saved"`
}

func SaveScoreTool() *mcp.Tool {
	return &mcp.Tool{Name: "save_score", Description: "Submits a score under the player's nickname. Requires login."}
}

func SaveScoreHandler(b *bridge.Bridge) mcp.ToolHandlerFor[SaveScoreInput, SaveScoreResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SaveScoreInput) (*mcp.CallToolResult, SaveScoreResult, error) {
		r := b.SaveScore(ctx, in.Table, in.Points,
			bridge.WithAllowDuplicates(in.AllowDuplicates), bridge.WithHighest(!in.Lowest))
		if !r.Success {
			return nil, SaveScoreResult{}, r.Err
		}
		return nil, SaveScoreResult{Saved: true}, nil
	}
}

// CustomScoreInput is the input of custom_score.
type CustomScoreInput struct {
	Table    string `json:"table" jsonschema:"leaderboard table name"`
	Mode     string `json:"mode,omitempty" jsonschema:"alltime, last30days, last7days or today"`
	PerPage  int    `json:"per_page,omitempty" jsonschema:"entries per page (default 20)"`
	Page     int    `json:"page,omitempty" jsonschema:"page number starting at 1"`
	PlayerID string `json:"player_id,omitempty" jsonschema:"restrict to one player"`
}

// ScoreEntry is one leaderboard row.
type ScoreEntry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Points     float64 `json:"points"`
}

// CustomScoreResult is the output of custom_score.
type CustomScoreResult struct {
	Total  int          `json:"total"`
	Scores []ScoreEntry `json:"scores"`
}

func CustomScoreTool() *mcp.Tool {
	return &mcp.Tool{Name: "custom_score", Description: "Reads one page of a leaderboard."}
}

func CustomScoreHandler(b *bridge.Bridge) mcp.ToolHandlerFor[CustomScoreInput, CustomScoreResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in CustomScoreInput) (*mcp.CallToolResult, CustomScoreResult, error) {
		var opts []bridge.ScoreOption
		if in.Mode != "" {
			opts = append(opts, bridge.WithMode(in.Mode))
		}
		if in.PerPage > 0 {
			opts = append(opts, bridge.WithPerPage(in.PerPage))
		}
		if in.Page > 0 {
			opts = append(opts, bridge.WithPage(in.Page))
		}
		if in.PlayerID != "" {
			opts = append(opts, bridge.WithPlayerID(in.PlayerID))
		}
		r := b.CustomScore(ctx, in.Table, opts...)
		if !r.Success {
			return nil, CustomScoreResult{}, r.Err
		}
		out := CustomScoreResult{Total: r.Data.NumScores, Scores: make([]ScoreEntry, 0, len(r.Data.Scores))}
		for _, s := range r.Data.Scores {
			out.Scores = append(out.Scores, ScoreEntry{Rank: s.Rank, PlayerID: s.PlayerID, PlayerName: s.PlayerName, Points: s.Points})
		}
		return nil, out, nil
	}
}

// TablesResult is the output of score_tables.
type TablesResult struct {
	Tables []string `json:"tables"`
}

func ScoreTablesTool() *mcp.Tool {
	return &mcp.Tool{Name: "score_tables", Description: "Lists the application's leaderboard tables."}
}

func ScoreTablesHandler(b *bridge.Bridge) mcp.ToolHandlerFor[NoInput, TablesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, TablesResult, error) {
		r := b.Tables(ctx)
		if !r.Success {
			return nil, TablesResult{}, r.Err
		}
		tables := r.Data.Tables
		if tables == nil {
			tables = []string{}
		}
		return nil, TablesResult{Tables: tables}, nil
	}
}

// FlagResult is the output of the site flag tools.
type FlagResult struct {
	Value bool `json:"value"`
}

func IsBlacklistedTool() *mcp.Tool {
	return &mcp.Tool{Name: "is_blacklisted", Description: "Reports whether the hosting site is blacklisted."}
}

func IsSponsorTool() *mcp.Tool {
	return &mcp.Tool{Name: "is_sponsor", Description: "Reports whether the hosting site is a sponsor."}
}

func flagHandler(run func(context.Context) bridge.Result[bool]) mcp.ToolHandlerFor[NoInput, FlagResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, FlagResult, error) {
		r := run(ctx)
		if !r.Success {
			return nil, FlagResult{}, r.Err
		}
		return nil, FlagResult{Value: r.Data}, nil
	}
}
