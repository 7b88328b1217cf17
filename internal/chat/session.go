// Package chat runs role-aware conversations over the record store: it
// retrieves records, redacts them for the caller's role, folds them into a
// per-turn context and asks the language model for a reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/audit"
	"github.com/ziadkadry99/medicrypt/internal/llm"
	"github.com/ziadkadry99/medicrypt/internal/medrecord"
	"github.com/ziadkadry99/medicrypt/internal/metrics"
)

// DefaultTopK is the number of records a researcher turn retrieves.
const DefaultTopK = 3

// RecordRetriever finds the records relevant to a query.
type RecordRetriever interface {
	// RetrieveRecord returns the patient's best matching record, or nil.
	RetrieveRecord(ctx context.Context, query, patientID string) (*medrecord.Record, error)
	// RetrieveRecords returns up to topK records across all patients.
	RetrieveRecords(ctx context.Context, query string, topK int) ([]*medrecord.Record, error)
}

// AccessRecorder stores access log entries. *audit.Store implements it.
type AccessRecorder interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Options configures a Session.
type Options struct {
	Role      access.Role
	PatientID string

	Model       string
	MaxTokens   int
	Temperature float64
	TopK        int

	RetrievalTimeout  time.Duration
	CompletionTimeout time.Duration

	// Probe defaults to access.DefaultIdentityProbe.
	Probe *access.IdentityProbe
}

// Option sets an optional Session collaborator.
type Option func(*Session)

// WithRecorder writes an access log entry for every turn.
func WithRecorder(r AccessRecorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithMetrics records turn metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the session logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithAssembler replaces the default assembler.
func WithAssembler(a Assembler) Option {
	return func(s *Session) { s.assembler = a }
}

// Session is one role-bound conversation. It is not safe for concurrent use.
type Session struct {
	id        string
	opts      Options
	history   *History
	retriever RecordRetriever
	provider  llm.Provider
	assembler Assembler
	probe     *access.IdentityProbe

	recorder AccessRecorder
	metrics  *metrics.Metrics
	log      logrus.FieldLogger

	usage Usage
}

// NewSession creates a session for opts.Role.
func NewSession(opts Options, retriever RecordRetriever, provider llm.Provider, options ...Option) (*Session, error) {
	if !opts.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", opts.Role)
	}
	opts.PatientID = strings.TrimSpace(opts.PatientID)
	if opts.Role == access.RolePatient && opts.PatientID == "" {
		return nil, ErrPatientIdentityRequired
	}
	if retriever == nil || provider == nil {
		return nil, errors.New("session needs a retriever and a completion provider")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	s := &Session{
		id:        uuid.New().String(),
		opts:      opts,
		history:   NewHistory(SystemPrompt(opts.Role)),
		retriever: retriever,
		provider:  provider,
		assembler: NewAssembler(),
		probe:     opts.Probe,
		usage:     Usage{Model: opts.Model},
	}
	if s.probe == nil {
		s.probe = access.DefaultIdentityProbe()
	}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	s.log = s.log.WithFields(logrus.Fields{
		"component":  "chat",
		"session_id": s.id,
		"role":       string(opts.Role),
	})
	s.metrics.SessionOpened()
	return s, nil
}

// ID returns the session id written to the access log.
func (s *Session) ID() string { return s.id }

// Role returns the session role.
func (s *Session) Role() access.Role { return s.opts.Role }

// History returns a copy of the persisted conversation.
func (s *Session) History() []llm.Message { return s.history.Messages() }

// Usage returns the accumulated token usage.
func (s *Session) Usage() Usage { return s.usage }

// Close releases the session's metrics slot.
func (s *Session) Close() { s.metrics.SessionClosed() }

// HandleTurn answers one user input and appends the exchange to history.
// A completion failure is returned wrapped in ErrCompletionFailed and
// leaves history unchanged. Retrieval failures are not returned.
func (s *Session) HandleTurn(ctx context.Context, text string) (string, error) {
	role := s.opts.Role

	if role == access.RoleResearcher && s.probe.Match(text) {
		s.history.appendTurn(text, access.ResearcherRefusal)
		s.record(ctx, audit.ActionProbeRefused, nil, "")
		s.metrics.Turn(string(role), metrics.OutcomeRefused)
		s.log.Debug("identity probe refused")
		return access.ResearcherRefusal, nil
	}

	records, retrievalErr := s.retrieve(ctx, text)
	if retrievalErr != nil {
		s.metrics.RetrievalFailed(string(role))
		s.log.WithError(retrievalErr).Warn("retrieval failed, continuing without records")
	}
	if role == access.RolePatient {
		records = s.scopeToPatient(ctx, records)
	}
	s.metrics.Injected(string(role), len(records))

	contextMsg := s.assembler.Assemble(role, records)
	msgs := s.history.outbound(contextMsg, text)
	resp, err := s.complete(ctx, msgs)
	if err != nil {
		s.record(ctx, audit.ActionCompletionFailed, recordIDs(records), err.Error())
		s.metrics.Turn(string(role), metrics.OutcomeCompletionFailed)
		return "", err
	}

	reply := strings.TrimSpace(resp.Content)
	s.history.appendTurn(text, reply)
	s.usage.add(resp, msgs)

	switch {
	case len(records) > 0:
		s.record(ctx, audit.ActionRecordsDisclosed, recordIDs(records), "")
	case retrievalErr != nil:
		s.record(ctx, audit.ActionRetrievalUnavailable, nil, retrievalErr.Error())
	default:
		s.record(ctx, audit.ActionNoRecords, nil, "")
	}
	s.metrics.Turn(string(role), metrics.OutcomeAnswered)
	s.log.WithField("records", len(records)).Debug("turn answered")
	return reply, nil
}

// retrieve runs the role's retrieval under the retrieval timeout.
func (s *Session) retrieve(ctx context.Context, query string) ([]*medrecord.Record, error) {
	ctx, cancel := withTimeout(ctx, s.opts.RetrievalTimeout)
	defer cancel()

	if s.opts.Role == access.RolePatient {
		rec, err := s.retriever.RetrieveRecord(ctx, query, s.opts.PatientID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
		}
		if rec == nil {
			return nil, nil
		}
		return []*medrecord.Record{rec}, nil
	}

	recs, err := s.retriever.RetrieveRecords(ctx, query, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}
	if len(recs) > s.opts.TopK {
		recs = recs[:s.opts.TopK]
	}
	return recs, nil
}

// scopeToPatient drops records that belong to someone else.
func (s *Session) scopeToPatient(ctx context.Context, records []*medrecord.Record) []*medrecord.Record {
	kept := records[:0:0]
	var dropped []string
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if pid, ok := rec.PatientID(); ok && pid == s.opts.PatientID {
			kept = append(kept, rec)
			continue
		}
		dropped = append(dropped, rec.ID)
	}
	if len(dropped) > 0 {
		s.log.WithField("dropped", len(dropped)).Warn("retriever returned records for another patient")
		s.record(ctx, audit.ActionPatientMismatch, dropped, "")
	}
	return kept
}

func (s *Session) complete(ctx context.Context, msgs []llm.Message) (*llm.CompletionResponse, error) {
	ctx, cancel := withTimeout(ctx, s.opts.CompletionTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    msgs,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	s.metrics.ObserveCompletion(s.provider.Name(), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response from %s", ErrCompletionFailed, s.provider.Name())
	}
	return resp, nil
}

// record writes an access log entry. Failures are logged, never returned.
func (s *Session) record(ctx context.Context, action audit.Action, ids []string, detail string) {
	if s.recorder == nil {
		return
	}
	actor := audit.ResearcherActor
	if s.opts.Role == access.RolePatient {
		actor = s.opts.PatientID
	}
	err := s.recorder.Log(context.WithoutCancel(ctx), audit.Entry{
		SessionID: s.id,
		Role:      s.opts.Role,
		ActorID:   actor,
		Action:    action,
		RecordIDs: ids,
		Detail:    detail,
	})
	if err != nil {
		s.log.WithError(err).WithField("action", string(action)).Warn("writing access log")
	}
}

func recordIDs(records []*medrecord.Record) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec != nil && rec.ID != "" {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
