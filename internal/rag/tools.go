package rag

import (
	"context"

	"github.com/Neruzzz/toolchat/internal/tools"
)

const (
	RetrievalToolName = "machine_learning_faq_retrieval_tool"

	NotInitialized = "Error: RAG system is not initialized. Please check server logs."
)

type queryArgs struct {
	Query string `json:"query" jsonschema:"The user query"`
}

// RetrievalTool exposes r as the FAQ retrieval tool. A nil r yields a stub
// that reports the system as not initialized.
func RetrievalTool(r *Retriever) tools.Tool {
	t := tools.Define(RetrievalToolName,
		"Retrieves relevant documents from ML FAQ. Use when user asks about Machine Learning.",
		func(ctx context.Context, in queryArgs) (any, error) {
			return r.Search(ctx, in.Query)
		})
	if r == nil {
		return tools.Unavailable(t, NotInitialized)
	}
	return t
}
