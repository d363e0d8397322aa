package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tresses/internal/conversation"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/pipeline"
	"github.com/kalambet/tresses/internal/recommend"
)

const profileURIPrefix = "profile://"

// NewMCPServer creates an MCP server exposing recommendations, chat and the
// cultural knowledge base as tools, and profiles as a resource template.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"tresses",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tresses: personalized hair-care recommendations with attributed cultural context."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend",
			mcp.WithDescription("Generate ranked hair-care recommendations for a stored profile."),
			mcp.WithString("user_id", mcp.Description("Profile id"), mcp.Required()),
			mcp.WithString("season", mcp.Description("Optional season, e.g. harmattan or winter")),
		),
		mcpRecommend(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send one message to a conversation and get the reply."),
			mcp.WithString("conversation_id", mcp.Description("Conversation id"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("Profile id of the speaker"), mcp.Required()),
			mcp.WithString("message", mcp.Description("User message"), mcp.Required()),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("validate_sensitivity",
			mcp.WithDescription("Check text for culturally insensitive wording."),
			mcp.WithString("text", mcp.Description("Text to check"), mcp.Required()),
		),
		mcpValidateSensitivity(deps),
	)

	s.AddTool(
		mcp.NewTool("attribution",
			mcp.WithDescription("Return the attribution line for a traditional practice."),
			mcp.WithString("practice_id", mcp.Description("Practice id"), mcp.Required()),
		),
		mcpAttribution(deps),
	)

	s.AddTool(
		mcp.NewTool("search_practices",
			mcp.WithDescription("Search traditional practices by name, origin, ingredient or benefit."),
			mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
		),
		mcpSearchPractices(deps),
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			profileURIPrefix+"{id}",
			"User Profile",
			mcp.WithTemplateDescription("Stored hair and cultural profile as JSON"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpRecommend(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		raw := req.GetString("season", "")
		season, ok := recommend.ParseSeason(raw)
		if !ok && raw != "" {
			return mcpError(fmt.Sprintf("unknown season %q", raw)), nil
		}

		recs, _, err := deps.Personalizer.Recommend(ctx, pipeline.Request{UserID: userID, Season: season})
		if err != nil {
			return mcpError(fmt.Sprintf("recommend failed: %v", err)), nil
		}
		return mcpJSON(recs)
	}
}

func mcpChat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		convID, err := req.RequireString("conversation_id")
		if err != nil {
			return mcpError("conversation_id is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		resp, err := deps.Conversations.HandleMessage(ctx, conversation.Request{
			ConversationID: convID,
			UserID:         userID,
			Message:        message,
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(resp)
	}
}

func mcpValidateSensitivity(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		return mcpJSON(deps.Knowledge.ValidateCulturalSensitivity(text))
	}
}

func mcpAttribution(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("practice_id")
		if err != nil {
			return mcpError("practice_id is required"), nil
		}
		text, err := deps.Knowledge.GenerateProperAttribution(id)
		if errors.Is(err, knowledge.ErrPracticeNotFound) {
			return mcpError(fmt.Sprintf("practice %s not found", id)), nil
		}
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(text), nil
	}
}

func mcpSearchPractices(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		practices := deps.Knowledge.Search(query)
		if len(practices) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(practices)
	}
}

func mcpResourceProfile(deps Deps) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(req.Params.URI, profileURIPrefix)
		if id == "" || id == req.Params.URI {
			return nil, fmt.Errorf("invalid profile URI %q", req.Params.URI)
		}

		p, ok, err := deps.Profiles.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("profile %s not found", id)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
