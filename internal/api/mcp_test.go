package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func createProfile(t *testing.T, deps Deps, id string, patch profile.Patch) {
	t.Helper()
	if _, err := deps.Profiles.Create(context.Background(), id, patch); err != nil {
		t.Fatalf("creating profile: %v", err)
	}
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestDeps(t)); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_Recommend(t *testing.T) {
	deps := newTestDeps(t)
	createProfile(t, deps, "u1", profile.Patch{
		Hair: &profile.HairProfile{Condition: profile.Condition{Health: 0.5, Moisture: 0.4, Strength: 0.8, Growth: 0.8}},
	})
	handler := mcpRecommend(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recommend", map[string]interface{}{
		"user_id": "u1",
		"season":  "harmattan",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var recs []recommend.Recommendation
	if err := json.Unmarshal([]byte(toolText(t, result)), &recs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
}

func TestMCPTool_Recommend_BadInput(t *testing.T) {
	handler := mcpRecommend(newTestDeps(t))

	for _, args := range []map[string]interface{}{
		{},
		{"user_id": "u1", "season": "monsoon"},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("recommend", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Errorf("%v: expected error result", args)
		}
	}
}

func TestMCPTool_Chat(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpChat(deps)

	result, err := handler(context.Background(), makeCallToolRequest("chat", map[string]interface{}{
		"conversation_id": "c1",
		"user_id":         "u1",
		"message":         "I have hair loss",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var resp composer.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.Contains(strings.ToLower(resp.Message), "neem") {
		t.Errorf("message = %s", resp.Message)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("chat", map[string]interface{}{
		"conversation_id": "c1",
		"user_id":         "someone-else",
		"message":         "hello",
	}))
	if !result.IsError {
		t.Error("expected error for a different user on the same conversation")
	}
}

func TestMCPTool_ValidateSensitivity(t *testing.T) {
	handler := mcpValidateSensitivity(newTestDeps(t))

	result, err := handler(context.Background(), makeCallToolRequest("validate_sensitivity", map[string]interface{}{
		"text": "An exotic traditional ritual for your hair",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res knowledge.SensitivityResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if res.IsAppropriate || len(res.Concerns) != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestMCPTool_Attribution(t *testing.T) {
	handler := mcpAttribution(newTestDeps(t))

	result, err := handler(context.Background(), makeCallToolRequest("attribution", map[string]interface{}{
		"practice_id": "neem-scalp-treatment",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError || !strings.Contains(toolText(t, result), "Ewe") {
		t.Errorf("attribution = %s", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("attribution", map[string]interface{}{
		"practice_id": "nope",
	}))
	if !result.IsError {
		t.Error("expected error for unknown practice")
	}
}

func TestMCPTool_SearchPractices(t *testing.T) {
	handler := mcpSearchPractices(newTestDeps(t))

	result, err := handler(context.Background(), makeCallToolRequest("search_practices", map[string]interface{}{
		"query": "SHEA",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var practices []knowledge.Practice
	if err := json.Unmarshal([]byte(toolText(t, result)), &practices); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(practices) == 0 {
		t.Fatal("expected shea practices")
	}

	result, _ = handler(context.Background(), makeCallToolRequest("search_practices", map[string]interface{}{
		"query": "zzzz",
	}))
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPResource_Profile(t *testing.T) {
	deps := newTestDeps(t)
	createProfile(t, deps, "u1", profile.Patch{
		Cultural: &profile.CulturalProfile{Background: profile.BackgroundCaribbean, RespectLevel: profile.RespectHigh},
	})
	handler := mcpResourceProfile(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("profile://u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(tc.Text), &p); err != nil {
		t.Fatalf("failed to parse profile JSON: %v", err)
	}
	if p.Cultural.Background != profile.BackgroundCaribbean {
		t.Fatalf("background = %s", p.Cultural.Background)
	}

	for _, uri := range []string{"profile://ghost", "profile://", "user://u1"} {
		if _, err := handler(context.Background(), makeReadResourceRequest(uri)); err == nil {
			t.Errorf("%s: expected error", uri)
		}
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestDeps(t)
	chat := mcpChat(deps)
	search := mcpSearchPractices(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := range 5 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := makeCallToolRequest("chat", map[string]interface{}{
				"conversation_id": "shared",
				"user_id":         "u1",
				"message":         "my hair is dry",
			})
			if _, err := chat(context.Background(), req); err != nil {
				errs <- err
			}
		}(i)
	}
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := makeCallToolRequest("search_practices", map[string]interface{}{"query": "neem"})
			if _, err := search(context.Background(), req); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}

	mem, ok, err := deps.Conversations.Memory(context.Background(), "shared")
	if err != nil || !ok {
		t.Fatalf("Memory = %v, %v", ok, err)
	}
	if len(mem.ShortTerm) != 5 {
		t.Errorf("turns = %d, want 5", len(mem.ShortTerm))
	}
}
