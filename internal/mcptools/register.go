// Package mcptools exposes the retrieval engine over MCP.
package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// RegisterTools registers all retrieval tools on the given MCP server:
// retrieve, retrieve_batch.
func RegisterTools(server *mcp.Server) {
	registerRetrieve(server)
	registerRetrieveBatch(server)
}

func registerRetrieve(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Download the content at a URL as a multimodal sequence: text plus local file paths of downloaded images and videos. Supports X/Twitter, Reddit, Bluesky, and YouTube natively; any other webpage goes through scraping services. Returns retrieved=false when the URL is unsupported or all methods failed.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input retriever.RetrieveInput) (*mcp.CallToolResult, retriever.RetrieveOutput, error) {
		if input.URL == "" {
			return nil, retriever.RetrieveOutput{}, fmt.Errorf("url is required")
		}

		seq := retriever.Retrieve(ctx, input.URL, retriever.Options{
			Methods:   input.Methods,
			StripURLs: !input.KeepURLs,
		})
		return nil, retriever.ToOutput(input.URL, seq), nil
	})
}

func registerRetrieveBatch(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve_batch",
		Description: "Download the contents of many URLs concurrently. Results keep the input order; duplicate URLs are fetched once and their result repeated. Each position is independent: a failed URL yields retrieved=false there without affecting the rest.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input retriever.RetrieveBatchInput) (*mcp.CallToolResult, retriever.RetrieveBatchOutput, error) {
		if len(input.URLs) == 0 {
			return nil, retriever.RetrieveBatchOutput{}, fmt.Errorf("urls is required")
		}

		seqs := retriever.RetrieveAll(ctx, input.URLs, retriever.Options{
			Methods:      input.Methods,
			StripURLs:    !input.KeepURLs,
			ShowProgress: true,
			Limit:        input.Limit,
		})

		out := retriever.RetrieveBatchOutput{
			Results: make([]retriever.RetrieveOutput, len(seqs)),
		}
		for i, seq := range seqs {
			out.Results[i] = retriever.ToOutput(input.URLs[i], seq)
		}
		return nil, out, nil
	})
}
