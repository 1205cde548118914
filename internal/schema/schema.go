package schema

import (
	"fmt"
	"strings"
)

// Entry is one documented unit of the data catalog, a table or a view. The
// content text is what gets embedded and what the SQL generator eventually
// sees; the embedding itself lives in the catalog table.
type Entry struct {
	Name        string
	Kind        string // "table" or "view"
	Description string
	Grain       string
	Columns     string
}

// Text renders the entry into the block that is embedded and retrieved.
func (e Entry) Text() string {
	return fmt.Sprintf("Object: %s\nDescription: %s\nGrain: %s\nColumns:\n%s",
		e.Name, e.Description, e.Grain, strings.TrimSpace(e.Columns))
}

// Build joins retrieved schema blocks into the prompt section handed to the
// SQL generator. An empty retrieval yields a fixed marker rather than an
// empty string so the generator prompt stays well-formed.
func Build(blocks []string) string {
	if len(blocks) == 0 {
		return "No schema information available."
	}
	return strings.Join(blocks, "\n\n")
}
