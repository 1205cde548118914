package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlas-insights/sibyl/internal/llm"
)

const (
	Conversation = "conversation"
	Database     = "database"
)

// greetings and other phrases that always resolve to small talk, checked first
// so that "thanks, show me around" never reaches the query pipeline.
var greetings = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"thanks", "thank you", "bye", "goodbye", "see you", "how are you",
	"what can you do", "help", "who are you", "what are you",
}

var dbKeywords = []string{
	"show", "list", "get", "find", "select", "query", "count", "sum",
	"average", "max", "min", "table", "data", "record", "row", "column",
	"where", "from", "join", "group by", "order by", "all", "top", "first",
	"last", "between", "like", "contains", "state", "district", "project",
	"budget", "expenditure", "beneficiar", "year", "kpi", "program",
}

// Router classifies a question as conversation or database. The cheap textual
// checks settle most questions; the model is only consulted for the ambiguous
// remainder.
type Router struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewRouter(client llm.Client, logger *slog.Logger) *Router {
	return &Router{llm: client, logger: logger}
}

func (r *Router) Classify(ctx context.Context, question string) string {
	q := strings.ToLower(strings.TrimSpace(question))

	if isGreeting(q) {
		return Conversation
	}

	if containsAny(q, dbKeywords) {
		return Database
	}

	if len(strings.Fields(q)) <= 3 {
		return Conversation
	}

	return r.classifyWithModel(ctx, question)
}

func (r *Router) classifyWithModel(ctx context.Context, question string) string {
	prompt := fmt.Sprintf(`Analyze the following user message and determine if it's:
1. A database query (asking to retrieve, search, or analyze data from a database)
2. A normal conversation (greeting, question about the assistant, general chat)

User message: %q

Respond with ONLY one word: "database" or "conversation"`, question)

	resp, err := r.llm.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an intent classifier. Respond with only one word: 'database' or 'conversation'."},
		{Role: llm.RoleUser, Content: prompt},
	}, 0)
	if err != nil {
		// Fail toward the richer pipeline rather than refusing to answer.
		r.logger.Error("intent classification failed, defaulting to database", "error", err)
		return Database
	}

	result := strings.ToLower(strings.TrimSpace(resp))
	switch {
	case strings.Contains(result, Database):
		return Database
	case strings.Contains(result, Conversation):
		return Conversation
	default:
		r.logger.Warn("unclear intent classification, defaulting to database", "result", result)
		return Database
	}
}

func isGreeting(q string) bool {
	for _, g := range greetings {
		if q == g {
			return true
		}
	}
	if len(q) < 50 {
		return containsAny(q, greetings)
	}
	return false
}

func containsAny(q string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}
