package classifier

import (
	"encoding/json"
	"strings"
)

// Response is the model output after an attempt to parse it as JSON.
// It is either Parsed or Unparsed.
type Response interface {
	// Result normalizes the response, applying defaults for absent fields.
	Result() Result
	isResponse()
}

// Parsed holds the fields found in a JSON response. Absent fields are nil.
type Parsed struct {
	Summary        *string
	Department     *string
	Priority       *string
	ActionRequired *string
	Raw            string
}

// Unparsed holds a response that was not a JSON object.
type Unparsed struct {
	Raw string
}

func (Parsed) isResponse()   {}
func (Unparsed) isResponse() {}

// Result applies defaults to absent fields. A missing summary falls back to
// the raw response text.
func (p Parsed) Result() Result {
	return Result{
		Summary:        valueOr(p.Summary, p.Raw),
		Department:     valueOr(p.Department, DefaultDepartment),
		Priority:       valueOr(p.Priority, DefaultPriority),
		ActionRequired: valueOr(p.ActionRequired, DefaultActionRequired),
	}
}

// Result runs the keyword fallback over the raw text.
func (u Unparsed) Result() Result {
	return u.Fallback()
}

// Fallback scans the raw text for the department and priority vocabularies.
// The first case-insensitive substring match in vocabulary order wins.
func (u Unparsed) Fallback() Result {
	lower := strings.ToLower(u.Raw)
	return Result{
		Summary:        u.Raw,
		Department:     firstMatch(lower, Departments, DefaultDepartment),
		Priority:       firstMatch(lower, Priorities, DefaultPriority),
		ActionRequired: ManualReviewAction,
	}
}

func firstMatch(lowerText string, vocabulary []string, fallback string) string {
	for _, word := range vocabulary {
		if strings.Contains(lowerText, strings.ToLower(word)) {
			return word
		}
	}
	return fallback
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

// ParseResponse strips Markdown code fences from text and decodes the JSON
// object it contains. Anything that is not a JSON object yields Unparsed.
func ParseResponse(text string) Response {
	clean := StripCodeFences(text)

	fields, ok := decodeObject(clean)
	if !ok {
		return Unparsed{Raw: text}
	}

	return Parsed{
		Summary:        field(fields, "summary"),
		Department:     field(fields, "department"),
		Priority:       field(fields, "priority"),
		ActionRequired: field(fields, "action_required"),
		Raw:            text,
	}
}

// StripCodeFences removes ```json and ``` markers and surrounding whitespace.
func StripCodeFences(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```JSON", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}

func decodeObject(s string) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// field returns the value for key. Non-string values are kept as their JSON
// text; null counts as absent.
func field(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	return &trimmed
}
