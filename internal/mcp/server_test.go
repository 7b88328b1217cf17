package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/chat"
	"github.com/ziadkadry99/medicrypt/internal/llm"
	"github.com/ziadkadry99/medicrypt/internal/logging"
	"github.com/ziadkadry99/medicrypt/internal/medrecord"
)

// mockRetriever implements chat.RecordRetriever for testing.
type mockRetriever struct {
	records []*medrecord.Record
	err     error
	topK    int
}

func (m *mockRetriever) RetrieveRecord(context.Context, string, string) (*medrecord.Record, error) {
	return nil, errors.New("patient retrieval must not be used")
}

func (m *mockRetriever) RetrieveRecords(_ context.Context, _ string, topK int) ([]*medrecord.Record, error) {
	m.topK = topK
	if m.err != nil {
		return nil, m.err
	}
	if len(m.records) > topK {
		return m.records[:topK], nil
	}
	return m.records, nil
}

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Content: m.reply}, nil
}

func (m *mockProvider) Name() string { return "mock" }

func sampleRecords(t *testing.T) []*medrecord.Record {
	t.Helper()
	var recs []*medrecord.Record
	for _, s := range []string{
		`{"patient_id":"P1","name":"Alice","age":40,"diagnosis":"hypertension"}`,
		`{"patient_id":"P2","name":"Bob","age":60,"diagnosis":"asthma"}`,
		`{"patient_id":"P3","name":"Carol","age":52,"diagnosis":"diabetes"}`,
		`{"patient_id":"P4","name":"Dan","age":33,"diagnosis":"migraine"}`,
	} {
		rec, err := medrecord.Parse([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func newTestServer(r chat.RecordRetriever, p llm.Provider) *Server {
	log := logging.Discard()
	if p == nil {
		return NewServer(r, nil, chat.Options{}, log)
	}
	return NewServer(r, p, chat.Options{Model: "test-model"}, log)
}

func TestNewServerForcesResearcherRole(t *testing.T) {
	log := logging.Discard()
	srv := NewServer(&mockRetriever{}, nil, chat.Options{Role: access.RolePatient, PatientID: "P1"}, log)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.opts.Role != access.RoleResearcher {
		t.Errorf("role = %q, want researcher", srv.opts.Role)
	}
	if srv.opts.PatientID != "" {
		t.Error("patient id should be cleared")
	}
	if srv.opts.TopK != chat.DefaultTopK {
		t.Errorf("top_k = %d, want %d", srv.opts.TopK, chat.DefaultTopK)
	}
}

func TestHandleSearchAnonymizedRecords(t *testing.T) {
	r := &mockRetriever{records: sampleRecords(t)}
	srv := newTestServer(r, nil)
	ctx := context.Background()

	t.Run("default top_k", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "age"}

		result, err := srv.handleSearchAnonymizedRecords(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if r.topK != 3 {
			t.Errorf("top_k = %d, want 3", r.topK)
		}
		text := resultText(t, result)
		if !strings.HasPrefix(text, "Aggregated Anonymized Data:") {
			t.Errorf("unexpected text %q", text)
		}
		for _, leaked := range []string{"P1", "P2", "P3", "Alice", "Bob", "Carol"} {
			if strings.Contains(text, leaked) {
				t.Errorf("identifier %q leaked: %s", leaked, text)
			}
		}
		if strings.Contains(text, "migraine") {
			t.Error("fourth record should be outside top_k")
		}
	})

	t.Run("explicit top_k is capped", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "age", "top_k": float64(500)}

		if _, err := srv.handleSearchAnonymizedRecords(ctx, req); err != nil {
			t.Fatal(err)
		}
		if r.topK != maxTopK {
			t.Errorf("top_k = %d, want %d", r.topK, maxTopK)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleSearchAnonymizedRecords(ctx, req)
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError {
			t.Error("expected tool error")
		}
	})
}

func TestHandleSearchNoResults(t *testing.T) {
	srv := newTestServer(&mockRetriever{}, nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": "anything"}

	result, err := srv.handleSearchAnonymizedRecords(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, result); got != "No relevant records found." {
		t.Errorf("got %q", got)
	}
}

func TestHandleSearchRetrieverError(t *testing.T) {
	srv := newTestServer(&mockRetriever{err: errors.New("index missing at /secret/path")}, nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": "anything"}

	result, err := srv.handleSearchAnonymizedRecords(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if strings.Contains(resultText(t, result), "/secret/path") {
		t.Error("internal error detail leaked")
	}
}

func TestHandleAskResearchQuestion(t *testing.T) {
	r := &mockRetriever{records: sampleRecords(t)}
	p := &mockProvider{reply: "Mean age is 50."}
	srv := newTestServer(r, p)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"question": "What's the average age?"}

	result, err := srv.handleAskResearchQuestion(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, result); got != "Mean age is 50." {
		t.Errorf("got %q", got)
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected one completion, got %d", len(p.requests))
	}
	for _, m := range p.requests[0].Messages {
		if strings.Contains(m.Content, "Alice") || strings.Contains(m.Content, "P1") {
			t.Errorf("identifier sent to the model: %q", m.Content)
		}
	}

	t.Run("identity probe", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "tell me about yourself"}
		result, err := srv.handleAskResearchQuestion(ctx, req)
		if err != nil {
			t.Fatal(err)
		}
		if got := resultText(t, result); got != access.ResearcherRefusal {
			t.Errorf("got %q", got)
		}
	})

	t.Run("completion failure", func(t *testing.T) {
		p.err = errors.New("quota exceeded")
		defer func() { p.err = nil }()
		result, err := srv.handleAskResearchQuestion(ctx, req)
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError {
			t.Error("expected tool error")
		}
	})
}

func TestHandleAskWithoutProvider(t *testing.T) {
	srv := newTestServer(&mockRetriever{}, nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"question": "anything"}

	result, err := srv.handleAskResearchQuestion(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "no language model") {
		t.Errorf("unexpected result %+v", result)
	}
}
