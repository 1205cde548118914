package format

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlas-insights/sibyl/internal/executor"
	"github.com/atlas-insights/sibyl/internal/llm"
)

// NoDataExplanation is returned verbatim for empty results; the model is not
// consulted.
const NoDataExplanation = "INSIGHTS:\n" +
	"No data was found for the selected criteria.\n\n" +
	"DOWNLOAD:\n" +
	"There is no data available to download."

const previewRows = 20

const systemPrompt = `You are a locked data presentation assistant. Follow instructions strictly.`

const userPromptTemplate = `SYSTEM INSTRUCTIONS (HIGHEST PRIORITY)

You are a data presentation assistant.
Your role is to explain data results in a clear, professional,
non-technical manner suitable for managers and leadership.

=====================
STRICT RULES
=====================
1. DO NOT MENTION TECHNICAL DETAILS
   - Never mention SQL, queries, databases, tables, joins, filters, or schemas
   - Assume the audience is non-technical

2. DO NOT CHANGE DATA
   - Never alter values
   - Never infer missing data
   - Never fabricate trends or conclusions

3. TABLE IS ALREADY SHOWN
   - The data table is already visible to the user
   - DO NOT repeat or recreate the table
   - Refer to the data descriptively only

4. EXPLANATION RULES
   - Provide a short explanation (2-4 sentences)
   - Focus on what the data represents
   - Mention totals, breakdowns, or clear patterns only
   - Do NOT speculate or recommend actions

5. DOWNLOAD OPTION
   - Mention that the data can be downloaded as a file
   - Do NOT explain how the file is generated

6. BUSINESS-FRIENDLY LANGUAGE
   - Use terms such as beneficiaries, coverage, districts, programs, projects
   - Avoid technical jargon entirely

=====================
INPUT DATA
=====================
%s

Original User Question:
%s

=====================
OUTPUT FORMAT (MANDATORY)
=====================

INSIGHTS:
<2-4 sentence business-friendly explanation>

DOWNLOAD:
You can download this data as a file for reporting or sharing.`

// Formatter turns a tabular result into a short business-language
// explanation. Stylistic variation only: the temperature is low but nonzero,
// and the prompt forbids factual liberty.
type Formatter struct {
	llm    llm.Client
	logger *slog.Logger
}

func New(client llm.Client, logger *slog.Logger) *Formatter {
	return &Formatter{llm: client, logger: logger}
}

func (f *Formatter) Format(ctx context.Context, result executor.Result, question string) (string, error) {
	if len(result.Rows) == 0 {
		return NoDataExplanation, nil
	}

	if question == "" {
		question = "Not provided"
	}
	prompt := fmt.Sprintf(userPromptTemplate, buildPreview(result), question)

	explanation, err := f.llm.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, 0.3)
	if err != nil {
		return "", fmt.Errorf("format result: %w", err)
	}

	f.logger.Info("result explanation generated", "rows", len(result.Rows))
	return explanation, nil
}

// buildPreview renders a bounded sample of the result so large results never
// blow up the prompt.
func buildPreview(result executor.Result) string {
	sampleSize := len(result.Rows)
	if sampleSize > previewRows {
		sampleSize = previewRows
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DATA OVERVIEW\n-------------\n")
	fmt.Fprintf(&b, "Total records   : %d\n", len(result.Rows))
	fmt.Fprintf(&b, "Total fields    : %d\n", len(result.Columns))
	fmt.Fprintf(&b, "Fields included : %s\n\n", strings.Join(result.Columns, ", "))
	fmt.Fprintf(&b, "Sample data (first %d records):\n", sampleSize)

	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteByte('\n')
	for _, row := range result.Rows[:sampleSize] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}

	if len(result.Rows) > sampleSize {
		b.WriteString("\nNote: Only a sample of the data is shown above.\n")
	}
	return b.String()
}
