package safety

import (
	"fmt"
	"strings"
)

// forbiddenKeywords are rejected as substrings anywhere in the statement.
// This over-approximates on purpose: a keyword inside an identifier or string
// literal still rejects. False positives are acceptable, false negatives are
// not.
var forbiddenKeywords = []string{
	"drop", "delete", "update", "insert",
	"truncate", "alter", "grant", "revoke",
}

// ValidationError reports why a candidate statement was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "unsafe SQL: " + e.Reason
}

// Validate accepts only a single read-only statement. It is a textual guard,
// not a parser; it may reject well-formed SQL and accept malformed SQL, but
// it never passes a statement containing a destructive keyword or a stacked
// second statement.
func Validate(sql string) error {
	lower := strings.ToLower(sql)

	for _, word := range forbiddenKeywords {
		if strings.Contains(lower, word) {
			return &ValidationError{Reason: fmt.Sprintf("forbidden SQL keyword: %s", word)}
		}
	}

	if len(sql) > 0 && strings.Contains(sql[:len(sql)-1], ";") {
		return &ValidationError{Reason: "multiple SQL statements not allowed"}
	}

	return nil
}
