package suggest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// wireDraft is the loose shape generators reply with. Type and status are ignored or
// checked later, so a bad value in one draft cannot fail the whole reply.
type wireDraft struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	QualityScore *int              `json:"quality_score,omitempty"`
	UsageCount   *int              `json:"usage_count,omitempty"`
	Targeting    content.Targeting `json:"targeting"`
	Owner        string            `json:"owner,omitempty"`
}

// resultEnvelope covers both the single JSON object of --output-format json and the
// final "result" line of a stream-json transcript.
type resultEnvelope struct {
	Type    string      `json:"type"`
	Result  string      `json:"result"`
	IsError bool        `json:"is_error"`
	Drafts  []wireDraft `json:"drafts"`
}

// parseDrafts accepts a JSON array of drafts, an object with a "drafts" array, a CLI
// result object whose "result" text holds one of those, or a stream-json transcript
// whose last "result" event does.
func parseDrafts(out []byte) ([]content.Draft, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrProvider)
	}

	switch out[0] {
	case '[':
		var ws []wireDraft
		if err := json.Unmarshal(out, &ws); err == nil {
			return toDrafts(ws), nil
		}
	case '{':
		var env resultEnvelope
		if err := json.Unmarshal(out, &env); err == nil {
			return fromEnvelope(env)
		}
	}

	if env, ok := lastResultEvent(out); ok {
		return fromEnvelope(env)
	}
	if inner := extractJSON(string(out)); inner != "" && inner != string(out) {
		return parseDrafts([]byte(inner))
	}
	return nil, fmt.Errorf("%w: no drafts in output", ErrProvider)
}

func fromEnvelope(env resultEnvelope) ([]content.Draft, error) {
	if env.IsError {
		return nil, fmt.Errorf("%w: %s", ErrProvider, truncate(env.Result, 200))
	}
	if env.Drafts != nil {
		return toDrafts(env.Drafts), nil
	}
	inner := extractJSON(env.Result)
	if inner == "" {
		return nil, fmt.Errorf("%w: result holds no JSON", ErrProvider)
	}
	var ws []wireDraft
	if err := json.Unmarshal([]byte(inner), &ws); err == nil {
		return toDrafts(ws), nil
	}
	var nested resultEnvelope
	if err := json.Unmarshal([]byte(inner), &nested); err == nil && nested.Drafts != nil {
		return toDrafts(nested.Drafts), nil
	}
	return nil, fmt.Errorf("%w: result is not a draft list", ErrProvider)
}

// lastResultEvent scans stream-json lines for the final "result" event.
func lastResultEvent(out []byte) (resultEnvelope, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var last resultEnvelope
	found := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] != '{' {
			continue
		}
		var ev resultEnvelope
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue // skip malformed lines
		}
		if ev.Type == "result" {
			last, found = ev, true
		}
	}
	return last, found
}

// extractJSON returns the outermost JSON array or object in s, looking inside a fenced
// code block first.
func extractJSON(s string) string {
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		}
	}
	s = strings.TrimSpace(s)
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return ""
}

func toDrafts(ws []wireDraft) []content.Draft {
	out := make([]content.Draft, len(ws))
	for i, w := range ws {
		out[i] = content.Draft{
			Name:         w.Name,
			Description:  w.Description,
			QualityScore: w.QualityScore,
			UsageCount:   w.UsageCount,
			Targeting:    w.Targeting,
			Owner:        w.Owner,
		}
	}
	return out
}
