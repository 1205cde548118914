package format

import (
	"encoding/json"
	"strings"
)

// Markers carries the optional structured payloads a model may embed in its
// explanation. The convention is best effort: the model is asked to use the
// GRAPH_DATA: and HINT: markers but nothing enforces it, so absent or
// unparseable payloads are simply dropped.
type Markers struct {
	Explanation string
	Hint        string
	GraphData   json.RawMessage
}

// ParseMarkers splits GRAPH_DATA: and HINT: sections out of an explanation.
func ParseMarkers(text string) Markers {
	m := Markers{Explanation: text}

	if idx := strings.Index(m.Explanation, "GRAPH_DATA:"); idx >= 0 {
		payload := strings.TrimSpace(m.Explanation[idx+len("GRAPH_DATA:"):])
		m.Explanation = strings.TrimSpace(m.Explanation[:idx])
		if json.Valid([]byte(payload)) {
			m.GraphData = json.RawMessage(payload)
		}
	}

	if idx := strings.Index(m.Explanation, "HINT:"); idx >= 0 {
		m.Hint = strings.TrimSpace(m.Explanation[idx+len("HINT:"):])
		m.Explanation = strings.TrimSpace(m.Explanation[:idx])
	}

	return m
}
