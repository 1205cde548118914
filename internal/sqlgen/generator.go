package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlas-insights/sibyl/internal/llm"
	"github.com/atlas-insights/sibyl/internal/safety"
)

// ErrPromptInjection is returned when the question tries to override the
// generation persona. No model call is made in that case.
var ErrPromptInjection = errors.New("prompt injection attempt blocked")

// blockedPhrases are instruction-override attempts scanned for before any
// generation happens.
var blockedPhrases = []string{
	"ignore previous",
	"change your role",
	"act as",
	"system prompt",
	"developer message",
	"you are no longer",
	"override instructions",
}

const maxContextTurns = 5

// Generator produces exactly one read-only SELECT statement, or the sentinel.
// Intent preservation is a prompt contract and therefore best effort; the
// safety guard is the only hard guarantee, and every candidate passes through
// it before leaving this package.
type Generator struct {
	llm    llm.Client
	logger *slog.Logger
}

func New(client llm.Client, logger *slog.Logger) *Generator {
	return &Generator{llm: client, logger: logger}
}

// Generate converts the question into SQL using the retrieved schema text and
// up to the last five context turns. Returns the sentinel unchanged when the
// model signals ambiguity.
func (g *Generator) Generate(ctx context.Context, question, schemaText string, history []llm.Message) (string, error) {
	if isPromptInjection(question) {
		g.logger.Warn("prompt injection attempt detected", "question", question)
		return "", ErrPromptInjection
	}

	prompt := fmt.Sprintf(userPromptTemplate, schemaText, renderContext(history), question)

	raw, err := g.llm.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, 0) // deterministic, no creativity
	if err != nil {
		return "", fmt.Errorf("sql generation: %w", err)
	}

	sql := stripFences(raw)
	if sql == "" {
		return "", fmt.Errorf("sql generation: %w", llm.ErrEmptyResponse)
	}

	if sql == Sentinel {
		return Sentinel, nil
	}

	if !strings.HasPrefix(strings.ToLower(sql), "select") {
		g.logger.Error("generator produced non-SELECT statement", "sql", sql)
		return "", &safety.ValidationError{Reason: "statement must start with SELECT"}
	}
	if err := safety.Validate(sql); err != nil {
		g.logger.Error("unsafe SQL generated", "sql", sql, "error", err)
		return "", err
	}

	g.logger.Info("generated SQL", "sql", sql)
	return sql, nil
}

func isPromptInjection(question string) bool {
	q := strings.ToLower(question)
	for _, phrase := range blockedPhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// renderContext flattens recent turns into "ROLE: content" lines. The model
// is told to use them only when the question explicitly refers back.
func renderContext(history []llm.Message) string {
	if len(history) == 0 {
		return "No previous conversation."
	}
	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// stripFences removes surrounding whitespace and markdown code fencing that
// models wrap SQL in despite instructions.
func stripFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(trimmed), "`"))
}
