package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchAnonymizedRecordsTool defines the search_anonymized_records MCP tool.
var searchAnonymizedRecordsTool = mcp.NewTool("search_anonymized_records",
	mcp.WithDescription("Semantic search over the medical records. Returns anonymized records with patient identifiers and names redacted."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of records to return (default 3, max 20)"),
	),
)

// askResearchQuestionTool defines the ask_research_question MCP tool.
var askResearchQuestionTool = mcp.NewTool("ask_research_question",
	mcp.WithDescription("Ask a research question. The assistant answers from aggregated, anonymized records only."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The research question"),
	),
)
