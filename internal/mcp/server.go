// Package mcp serves anonymized research tools over the Model Context
// Protocol. Every tool runs with the researcher role, so nothing it returns
// can carry patient identifiers.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/chat"
	"github.com/ziadkadry99/medicrypt/internal/llm"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes researcher tools.
type Server struct {
	retriever   chat.RecordRetriever
	provider    llm.Provider
	opts        chat.Options
	sessionOpts []chat.Option
	assembler   chat.Assembler
	log         logrus.FieldLogger
	mcp         *server.MCPServer
}

// NewServer creates a new MCP server. The role in opts is forced to
// researcher. provider may be nil, in which case ask_research_question
// reports that no model is configured.
func NewServer(retriever chat.RecordRetriever, provider llm.Provider, opts chat.Options, log logrus.FieldLogger, sessionOpts ...chat.Option) *Server {
	opts.Role = access.RoleResearcher
	opts.PatientID = ""
	if opts.TopK <= 0 {
		opts.TopK = chat.DefaultTopK
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		retriever:   retriever,
		provider:    provider,
		opts:        opts,
		sessionOpts: append([]chat.Option{chat.WithLogger(log)}, sessionOpts...),
		assembler:   chat.NewAssembler(),
		log:         log.WithField("component", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		"medicrypt",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchAnonymizedRecordsTool, s.handleSearchAnonymizedRecords)
	s.mcp.AddTool(askResearchQuestionTool, s.handleAskResearchQuestion)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
