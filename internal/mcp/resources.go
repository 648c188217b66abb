package mcp

import (
	"context"
	"fmt"
	"strings"
)

// Resource defines an MCP resource
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Resource URIs
const (
	URIProfile     = "gmail://profile"
	URICacheStats  = "gmail://cache/stats"
	URICacheRecent = "gmail://cache/recent"
)

var profileResource = Resource{
	URI:         URIProfile,
	Name:        "Account",
	Description: "The authenticated Gmail account",
	MimeType:    "text/plain",
}

var cacheResources = []Resource{
	{
		URI:         URICacheStats,
		Name:        "Cache Statistics",
		Description: "Number of cached messages and threads",
		MimeType:    "text/plain",
	},
	{
		URI:         URICacheRecent,
		Name:        "Recently Cached",
		Description: "The 10 most recent cached messages",
		MimeType:    "text/plain",
	},
}

// resources lists what this server can read; cache resources need a cache
func (s *Server) resources() []Resource {
	list := []Resource{profileResource}
	if s.cache != nil {
		list = append(list, cacheResources...)
	}
	return list
}

// resourcesListResult is the response for resources/list
type resourcesListResult struct {
	Resources []Resource `json:"resources"`
}

// readResourceParams is the params for resources/read
type readResourceParams struct {
	URI string `json:"uri"`
}

// readResourceResult is the response for resources/read
type readResourceResult struct {
	Contents []resourceContent `json:"contents"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (s *Server) handleReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case URIProfile:
		addr, err := s.provider.GetUserEmail(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Provider: %s\nAccount:  %s\n", s.provider.Name(), addr), nil

	case URICacheStats, URICacheRecent:
		if s.cache == nil {
			return "", fmt.Errorf("cache is disabled")
		}
		if uri == URICacheStats {
			return s.readCacheStats(ctx)
		}
		return s.readCacheRecent(ctx)

	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

func (s *Server) readCacheStats(ctx context.Context) (string, error) {
	stats, err := s.cache.GetStats(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read cache stats: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Messages: %d\n", stats.Messages)
	fmt.Fprintf(&b, "Threads:  %d\n", stats.Threads)
	if stats.Newest != nil {
		fmt.Fprintf(&b, "Last cached: %s\n", stats.Newest.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (s *Server) readCacheRecent(ctx context.Context) (string, error) {
	msgs, err := s.cache.ListMessages(ctx, 10)
	if err != nil {
		return "", fmt.Errorf("failed to list cached messages: %w", err)
	}
	if len(msgs) == 0 {
		return "No cached messages.\n", nil
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s  %s  %-25s  %s\n", m.ID, m.Date.Format("Jan 02"), m.From.String(), m.Subject)
	}
	return b.String(), nil
}
