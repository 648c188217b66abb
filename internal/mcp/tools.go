package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolDefinitions contains all available MCP tools
var ToolDefinitions = []Tool{
	{
		Name:        "list_messages",
		Description: "List message IDs matching a Gmail search query. Returns one page; pass page_token to continue.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Gmail search query, e.g. 'from:jane@example.com is:unread'",
				},
				"label_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Only messages carrying all of these labels",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Page size (default: 20, max: 500)",
				},
				"page_token": map[string]any{
					"type":        "string",
					"description": "Token from a previous call",
				},
			},
		},
	},
	{
		Name:        "get_message",
		Description: "Get one message with headers and plain-text body.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Message ID",
				},
			},
			"required": []string{"id"},
		},
	},
	{
		Name:        "batch_get_messages",
		Description: "Get several messages at once. Failures are reported per message.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Message IDs (at most 100)",
				},
			},
			"required": []string{"ids"},
		},
	},
	{
		Name:        "search_messages",
		Description: "Fetch full messages matching a Gmail search query, newest first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Gmail search query",
				},
				"since_days": map[string]any{
					"type":        "integer",
					"description": "Only messages from the last N days",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of messages (default: 10)",
				},
			},
		},
	},
	{
		Name:        "send_message",
		Description: "Send an email as the authenticated user.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Recipients",
				},
				"cc": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"subject": map[string]any{
					"type": "string",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Plain-text body",
				},
				"thread_id": map[string]any{
					"type":        "string",
					"description": "Reply within this thread",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
	},
	{
		Name:        "get_profile",
		Description: "Get the authenticated user's email address.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
}
