package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// mcpService adapts a connected MCP server session to the Service interface.
type mcpService struct {
	name     string
	endpoint string
	session  *mcp.ClientSession
}

// ConnectMCPService dials a streamable MCP server over HTTP and wraps the
// session as a Service.
func ConnectMCPService(ctx context.Context, name, endpoint string) (Service, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "turnpike",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint: endpoint,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to mcp server %q at %s: %w", name, endpoint, err)
	}

	return &mcpService{name: name, endpoint: endpoint, session: session}, nil
}

func (s *mcpService) Name() string {
	return s.name
}

func (s *mcpService) Tools(ctx context.Context) ([]llm.ToolDef, error) {
	var defs []llm.ToolDef
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", s.name, err)
		}
		defs = append(defs, llm.ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}
	return defs, nil
}

func (s *mcpService) Call(ctx context.Context, name string, args map[string]any) (llm.ToolResult, error) {
	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return llm.ToolResult{}, fmt.Errorf("calling %s.%s: %w", s.name, name, err)
	}

	result := llm.ToolResult{IsError: res.IsError}
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			result.Content = append(result.Content, llm.ContentBlock{
				Type: "text",
				Text: text.Text,
			})
		}
	}
	if result.IsError && len(result.Content) == 0 {
		result.Content = []llm.ContentBlock{{
			Type: "text",
			Text: fmt.Sprintf("tool %s reported an error with no detail", name),
		}}
	}
	return result, nil
}

func (s *mcpService) Close() error {
	return s.session.Close()
}

// schemaToMap converts the SDK's schema type into the plain map the provider
// request bodies expect. A schema that fails to round-trip degrades to a
// permissive empty object schema rather than breaking the whole service.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return map[string]any{"type": "object"}
	}
	return m
}
