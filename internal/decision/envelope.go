package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action is the model's classification of an inbound message.
type Action string

const (
	ActionAnswer            Action = "answer"
	ActionEscalate          Action = "escalate"
	ActionOnboardName       Action = "onboard_name"
	ActionCheckAvailability Action = "check_availability"
	ActionStartScheduling   Action = "start_interactive_scheduling"
	// ActionScheduleMeeting is an alias some model outputs use for
	// ActionStartScheduling.
	ActionScheduleMeeting      Action = "schedule_meeting"
	ActionProcessTimeSelection Action = "process_time_selection"
)

// ErrEmptyOutput indicates the model returned nothing usable.
var ErrEmptyOutput = errors.New("decision: empty model output")

// ActionEnvelope is the structured verdict the model is instructed to
// return as a single JSON object.
type ActionEnvelope struct {
	Action          Action `json:"action"`
	Answer          string `json:"answer,omitempty"`
	EscalateSummary string `json:"escalate_summary,omitempty"`
	Name            string `json:"name,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	PreferredTime   string `json:"preferred_time,omitempty"`
	Reason          string `json:"reason,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
}

func validAction(a Action) bool {
	switch a {
	case ActionAnswer, ActionEscalate, ActionOnboardName, ActionCheckAvailability,
		ActionStartScheduling, ActionScheduleMeeting, ActionProcessTimeSelection:
		return true
	}
	return false
}

// ParseEnvelope decodes the model's output into an envelope. Models are
// told to emit one JSON object only, but in practice the output arrives in
// four shapes: clean JSON, JSON wrapped in code fences, plain prose, or
// nothing. Prose is folded into an answer envelope; broken JSON is an
// error so the caller never echoes it to the user.
func ParseEnvelope(raw string) (*ActionEnvelope, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyOutput
	}

	text = stripCodeFences(text)

	obj := extractJSONObject(text)
	if obj == "" {
		// Plain prose with no JSON object in sight.
		return &ActionEnvelope{Action: ActionAnswer, Answer: text}, nil
	}

	var env ActionEnvelope
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return nil, fmt.Errorf("decision: malformed model JSON: %w", err)
	}
	if env.Action == "" {
		return nil, errors.New("decision: model JSON missing action")
	}
	if !validAction(env.Action) {
		return nil, fmt.Errorf("decision: unknown action %q", env.Action)
	}
	return &env, nil
}

// stripCodeFences removes a surrounding markdown fence, with or without a
// language tag.
func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		first := strings.TrimSpace(text[:idx])
		// Drop a language tag like "json" on the fence line.
		if first == "" || !strings.ContainsAny(first, "{}") {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the first balanced {...} span, or "".
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	// Unbalanced braces; let the caller treat it as malformed JSON.
	return text[start:]
}
