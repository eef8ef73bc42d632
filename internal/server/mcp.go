package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chat-proxy/internal/chat"
)

type AskParams struct {
	UserID       string `json:"id" mcp:"user identifier"`
	Model        string `json:"model" mcp:"backend to use: gemini or gpt"`
	Query        string `json:"query" mcp:"the message to send"`
	SystemPrompt string `json:"system_prompt,omitempty" mcp:"optional suffix for the system prompt"`
}

type RememberParams struct {
	UserID string `json:"id" mcp:"user identifier"`
	Key    string `json:"key" mcp:"fact name"`
	Value  string `json:"value" mcp:"fact value"`
}

type RecallParams struct {
	UserID string `json:"id" mcp:"user identifier"`
}

func newMCPServer(s *Server) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chat-proxy",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Sends a message to the user's conversation and returns the reply",
	}, s.Ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remember",
		Description: "Stores a fact in the user's long-term memory",
	}, s.Remember)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall",
		Description: "Returns every fact remembered for the user",
	}, s.Recall)

	log.Printf("📋 Registered 3 MCP tools")
	return server
}

func (s *Server) Ask(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[AskParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	reply, err := s.svc.Ask(ctx, chat.Request{
		Query:        args.Query,
		UserID:       args.UserID,
		Model:        args.Model,
		SystemPrompt: args.SystemPrompt,
	})
	if err != nil {
		return toolError("ask", err), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: reply.Response}},
		Meta: map[string]interface{}{
			"model":      reply.Model,
			"session_id": reply.SessionID,
		},
	}, nil
}

func (s *Server) Remember(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[RememberParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	mem, err := s.svc.Remember(ctx, args.UserID, args.Key, args.Value)
	if err != nil {
		return toolError("remember", err), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("✅ Remembered %s for %s (%d facts)", args.Key, args.UserID, len(mem))},
		},
	}, nil
}

func (s *Server) Recall(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[RecallParams]) (*mcp.CallToolResultFor[any], error) {
	mem, err := s.svc.Memory(ctx, params.Arguments.UserID)
	if err != nil {
		return toolError("recall", err), nil
	}
	data, err := json.Marshal(mem)
	if err != nil {
		return toolError("recall", err), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func toolError(op string, err error) *mcp.CallToolResultFor[any] {
	if statusFor(err) >= 500 {
		log.Printf("❌ MCP %s failed: %v", op, err)
	}
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ %s failed: %v", op, err)}},
	}
}
