package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/consult"
	"github.com/Muhammadazeem-eng/acne-detect/internal/identity"
	"github.com/Muhammadazeem-eng/acne-detect/internal/profile"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
	"github.com/Muhammadazeem-eng/acne-detect/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. An MCP client talks over a
// single stdio connection, so the whole server is bound to one session.
type MCPDeps struct {
	Identity     *identity.Manager
	Profile      *profile.Manager
	Orchestrator *consult.Orchestrator
	Session      *session.Session
	Store        *storage.Store // optional; if nil, user://recent is not registered
}

// NewMCPServer creates an MCP server exposing the consultation flows.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"acnedetect",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("acnedetect: log in, then analyze face photos for acne or ask the AI dermatologist skin questions."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("login",
			mcp.WithDescription("Log in with an existing acnedetect account. Required before any consultation."),
			mcp.WithString("username", mcp.Description("Account username"), mcp.Required()),
			mcp.WithString("password", mcp.Description("Account password"), mcp.Required()),
		),
		mcpLogin(deps),
	)

	s.AddTool(
		mcp.NewTool("logout",
			mcp.WithDescription("Log out. Profile and conversation history are kept."),
		),
		mcpLogout(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_dermatologist",
			mcp.WithDescription("Ask the AI dermatologist a skin-related question. The conversation continues across calls."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAskDermatologist(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_skin_image",
			mcp.WithDescription("Analyze a JPEG or PNG face photo for acne type, location, stage and treatment."),
			mcp.WithString("image_base64", mcp.Description("Base64-encoded image bytes (max 10 MB)"), mcp.Required()),
		),
		mcpAnalyzeSkinImage(deps),
	)

	s.AddTool(
		mcp.NewTool("save_profile",
			mcp.WithDescription("Save the user's skin profile. Replaces any previous profile."),
			mcp.WithString("profile", mcp.Description("Profile JSON with basic, skin and lifestyle objects"), mcp.Required()),
		),
		mcpSaveProfile(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"Skin Profile",
			mcp.WithResourceDescription("Current skin profile as JSON, or null"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://history",
			"Consultation History",
			mcp.WithResourceDescription("Dermatologist conversation of this session, oldest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	if deps.Store != nil {
		s.AddResource(
			mcp.NewResource(
				"user://recent",
				"Recent Consultations",
				mcp.WithResourceDescription("Last 10 recorded consultations of the logged-in user (inputs truncated)"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

func mcpLogin(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}
		password, err := req.RequireString("password")
		if err != nil {
			return mcpError("password is required"), nil
		}

		if err := deps.Identity.Login(ctx, deps.Session, username, password); err != nil {
			return mcpDomainError(err), nil
		}
		return mcpText(fmt.Sprintf("Logged in as %s", username)), nil
	}
}

func mcpLogout(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Identity.Logout(deps.Session)
		return mcpText("Logged out"), nil
	}
}

func mcpAskDermatologist(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		reply, err := deps.Orchestrator.Chat(ctx, deps.Session, question)
		if err != nil {
			return mcpDomainError(err), nil
		}
		return mcpText(reply), nil
	}
}

func mcpAnalyzeSkinImage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		encoded, err := req.RequireString("image_base64")
		if err != nil {
			return mcpError("image_base64 is required"), nil
		}

		img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return mcpError(fmt.Sprintf("invalid base64 image: %v", err)), nil
		}

		result, err := deps.Orchestrator.AnalyzeImage(ctx, deps.Session, img)
		if err != nil {
			return mcpDomainError(err), nil
		}
		return mcpText(result), nil
	}
}

func mcpSaveProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !deps.Session.Authenticated() {
			return mcpError("please log in first"), nil
		}

		raw, err := req.RequireString("profile")
		if err != nil {
			return mcpError("profile is required"), nil
		}

		var p profile.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return mcpError(fmt.Sprintf("invalid profile JSON: %v", err)), nil
		}

		saved, err := deps.Profile.Save(deps.Session, p)
		if err != nil {
			return mcpDomainError(err), nil
		}
		return mcpText("Profile saved.\n" + profile.Summary(saved)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var v any
		if p, ok := deps.Profile.Get(deps.Session); ok {
			v = p
		}
		return jsonResource(req.Params.URI, v)
	}
}

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(req.Params.URI, deps.Session.History())
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if !deps.Session.Authenticated() {
			return nil, fmt.Errorf("not logged in")
		}
		interactions, err := deps.Store.ListInteractions(deps.Session.Username(), 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Kind      string `json:"kind"`
			Status    string `json:"status"`
			Input     string `json:"input"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			input := ix.Input
			if utf8.RuneCountInString(input) > 200 {
				runes := []rune(input)
				input = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Kind:      ix.Kind,
				Status:    ix.Status,
				Input:     input,
			}
		}

		return jsonResource(req.Params.URI, summaries)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// mcpDomainError reports err with its code so clients can tell a retryable
// service failure from bad input.
func mcpDomainError(err error) *mcp.CallToolResult {
	return mcpError(fmt.Sprintf("%s: %s", apperr.GetCode(err), apperr.Message(err)))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
