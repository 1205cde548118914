package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atlas-insights/sibyl/internal/audit"
	"github.com/atlas-insights/sibyl/internal/executor"
	"github.com/atlas-insights/sibyl/internal/intent"
	"github.com/atlas-insights/sibyl/internal/llm"
	"github.com/atlas-insights/sibyl/internal/memory"
	"github.com/atlas-insights/sibyl/internal/observability"
	"github.com/atlas-insights/sibyl/internal/safety"
	"github.com/atlas-insights/sibyl/internal/schema"
	"github.com/atlas-insights/sibyl/internal/sqlgen"
)

// ClarificationReply is the user-visible text for the generator's
// cannot-generate sentinel. Terminal for the current question.
const ClarificationReply = "I couldn't generate a reliable query for that question. " +
	"Could you rephrase it or add more detail, such as the year, state, or program you mean?"

// contextLimit bounds how much history is loaded per question; the generator
// and responder apply their own tighter windows on top.
const contextLimit = 10

// Answer is the structured result of one processed question. Constructed
// once, never mutated.
type Answer struct {
	Explanation string
	SQL         string
	Columns     []string
	Rows        [][]any
	Truncated   bool
}

type Classifier interface {
	Classify(ctx context.Context, question string) string
}

type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) []string
}

type Generator interface {
	Generate(ctx context.Context, question, schemaText string, history []llm.Message) (string, error)
}

type Runner interface {
	Execute(ctx context.Context, sqlText, originalQuestion string) (executor.Result, error)
}

type Formatter interface {
	Format(ctx context.Context, result executor.Result, question string) (string, error)
}

type Responder interface {
	Respond(ctx context.Context, message string, history []llm.Message) string
}

type Memory interface {
	Append(ctx context.Context, sessionID, role, content string)
	Recent(ctx context.Context, sessionID string, limit int) []memory.Turn
}

// Pipeline threads a question through classification, generation, validation,
// execution and explanation. One synchronous call chain per question; no
// retries anywhere.
type Pipeline struct {
	classifier Classifier
	retriever  Retriever
	generator  Generator
	runner     Runner
	formatter  Formatter
	responder  Responder
	memory     Memory
	audit      *audit.Publisher
	topK       int
	logger     *slog.Logger
}

func New(
	classifier Classifier,
	retriever Retriever,
	generator Generator,
	runner Runner,
	formatter Formatter,
	responder Responder,
	mem Memory,
	auditor *audit.Publisher,
	topK int,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		runner:     runner,
		formatter:  formatter,
		responder:  responder,
		memory:     mem,
		audit:      auditor,
		topK:       topK,
		logger:     logger,
	}
}

// Process answers one question for one session. Typed errors from
// generation, validation and execution propagate to the caller; memory and
// schema failures never abort the reply.
func (p *Pipeline) Process(ctx context.Context, question, sessionID string) (Answer, error) {
	p.memory.Append(ctx, sessionID, memory.RoleUser, question)
	history := toMessages(p.memory.Recent(ctx, sessionID, contextLimit))

	routed := p.classifier.Classify(ctx, question)
	observability.ObserveQuestion(routed)
	p.logger.Info("question routed", "session_id", sessionID, "intent", routed)

	if routed == intent.Conversation {
		reply := p.responder.Respond(ctx, question, history)
		p.memory.Append(ctx, sessionID, memory.RoleAssistant, reply)
		p.audit.Publish(audit.SubjectQuestionAnswered, audit.Event{SessionID: sessionID, Intent: routed})
		return Answer{Explanation: reply}, nil
	}

	schemaText := schema.Build(p.retriever.Retrieve(ctx, question, p.topK))

	sqlText, err := p.generator.Generate(ctx, question, schemaText, history)
	if err != nil {
		p.recordRejection(sessionID, err)
		return Answer{}, err
	}

	if sqlText == sqlgen.Sentinel {
		p.memory.Append(ctx, sessionID, memory.RoleAssistant, ClarificationReply)
		return Answer{Explanation: ClarificationReply}, nil
	}

	if err := safety.Validate(sqlText); err != nil {
		p.recordRejection(sessionID, err)
		return Answer{}, err
	}

	start := time.Now()
	result, err := p.runner.Execute(ctx, sqlText, question)
	observability.ObserveQueryDuration(time.Since(start))
	if err != nil {
		return Answer{}, err
	}

	explanation, err := p.formatter.Format(ctx, result, question)
	if err != nil {
		return Answer{}, err
	}

	p.memory.Append(ctx, sessionID, memory.RoleAssistant, explanation)
	p.audit.Publish(audit.SubjectQuestionAnswered, audit.Event{SessionID: sessionID, Intent: routed, SQL: sqlText})

	return Answer{
		Explanation: explanation,
		SQL:         sqlText,
		Columns:     result.Columns,
		Rows:        result.Rows,
		Truncated:   result.Truncated,
	}, nil
}

func (p *Pipeline) recordRejection(sessionID string, err error) {
	var verr *safety.ValidationError
	switch {
	case errors.Is(err, sqlgen.ErrPromptInjection):
		observability.ObserveBlocked("injection")
		p.audit.Publish(audit.SubjectInjectionBlocked, audit.Event{SessionID: sessionID, Reason: err.Error()})
	case errors.As(err, &verr):
		observability.ObserveBlocked("validation")
		p.audit.Publish(audit.SubjectSQLBlocked, audit.Event{SessionID: sessionID, Reason: verr.Reason})
	}
}

func toMessages(turns []memory.Turn) []llm.Message {
	if len(turns) == 0 {
		return nil
	}
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
