package builtins

import (
	"context"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/tools"
)

const defaultTopK = 5

func retrieveDocumentsTool(store *retrieval.Store) tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        RetrieveDocuments,
			Description: "Find the documents most similar to a query",
			Parameters: tools.ObjectSchema(map[string]tools.Property{
				"query": {Type: "string", Description: "Search query"},
				"top_k": {Type: "integer", Description: "Number of documents to return", Default: defaultTopK},
			}, "query"),
		},
		Handler: tools.HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			query, err := api.StringParam(params, "query", "")
			if err != nil {
				return nil, err
			}
			k, err := api.IntParam(params, "top_k", defaultTopK)
			if err != nil {
				return nil, err
			}
			matches, err := store.Retrieve(ctx, query, k)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"query":      query,
				"results":    retrieval.Sources(matches),
				"confidence": retrieval.Confidence(matches),
			}, nil
		}),
	}
}
