package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/contextstore"
	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/storage"
	"github.com/rhuss/lokal/pkg/tools"
)

const (
	defaultSearchLimit = 10
	previewLength      = 200
)

func searchDocumentsTool(store *contextstore.Store) tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        SearchDocuments,
			Description: "Search through available documents",
			Parameters: tools.ObjectSchema(map[string]tools.Property{
				"query": {Type: "string", Description: "Search query"},
				"limit": {Type: "integer", Description: "Maximum results", Default: defaultSearchLimit},
			}, "query"),
		},
		Handler: tools.HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			query, err := api.StringParam(params, "query", "")
			if err != nil {
				return nil, err
			}
			limit, err := api.IntParam(params, "limit", defaultSearchLimit)
			if err != nil {
				return nil, err
			}

			all := store.Search(query, 0)
			results := make([]map[string]any, 0, len(all))
			for _, rec := range all {
				if limit > 0 && len(results) >= limit {
					break
				}
				results = append(results, map[string]any{
					"type":            "context",
					"id":              rec.ID,
					"name":            rec.Name,
					"content_preview": preview(rec.Content),
					"metadata":        rec.Metadata,
				})
			}
			return map[string]any{
				"query":       query,
				"results":     results,
				"total_found": len(all),
			}, nil
		}),
	}
}

func getContextTool(store *contextstore.Store) tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        GetContext,
			Description: "Retrieve stored context by ID",
			Parameters: tools.ObjectSchema(map[string]tools.Property{
				"context_id": {Type: "string", Description: "ID of the context to retrieve"},
			}, "context_id"),
		},
		Handler: tools.HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			id, err := api.StringParam(params, "context_id", "")
			if err != nil {
				return nil, err
			}
			rec, err := store.Get(id)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, api.NewNotFoundError("context not found: " + id)
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":         rec.ID,
				"name":       rec.Name,
				"content":    rec.Content,
				"metadata":   rec.Metadata,
				"created_at": rec.CreatedAt.Format(time.RFC3339),
				"updated_at": rec.UpdatedAt.Format(time.RFC3339),
			}, nil
		}),
	}
}

func preview(content any) string {
	s, ok := content.(string)
	if !ok {
		data, err := json.Marshal(content)
		if err != nil {
			return ""
		}
		s = string(data)
	}
	return debug.Truncate(s, previewLength)
}
