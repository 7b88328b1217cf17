package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/chat"
)

const maxTopK = 20

// handleSearchAnonymizedRecords returns the researcher context block for a query.
func (s *Server) handleSearchAnonymizedRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	topK := request.GetInt("top_k", s.opts.TopK)
	if topK <= 0 {
		topK = s.opts.TopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	recs, err := s.retriever.RetrieveRecords(ctx, query, topK)
	if err != nil {
		s.log.WithError(err).Warn("record search failed")
		return mcp.NewToolResultError("record search is unavailable"), nil
	}
	if len(recs) > topK {
		recs = recs[:topK]
	}

	msg := s.assembler.Assemble(access.RoleResearcher, recs)
	return mcp.NewToolResultText(msg.Content), nil
}

// handleAskResearchQuestion runs one researcher turn in a fresh session.
func (s *Server) handleAskResearchQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	if s.provider == nil {
		return mcp.NewToolResultError("no language model is configured. Run `medicrypt init` to set one up."), nil
	}

	sess, err := chat.NewSession(s.opts, s.retriever, s.provider, s.sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("opening research session: %w", err)
	}
	defer sess.Close()

	reply, err := sess.HandleTurn(ctx, strings.TrimSpace(question))
	if errors.Is(err, chat.ErrCompletionFailed) {
		s.log.WithError(err).Warn("research question failed")
		return mcp.NewToolResultError("the assistant is unavailable, please try again"), nil
	}
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(reply), nil
}
