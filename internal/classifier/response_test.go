package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		parsed bool
		want   Result
	}{
		{
			name:   "plain json",
			text:   `{"summary":"Fire drill notice","department":"Safety & Security","priority":"High","action_required":"Schedule drill"}`,
			parsed: true,
			want:   Result{Summary: "Fire drill notice", Department: "Safety & Security", Priority: "High", ActionRequired: "Schedule drill"},
		},
		{
			name:   "fenced json",
			text:   "```json\n{\"summary\":\"Tender\",\"department\":\"Procurement\",\"priority\":\"Low\",\"action_required\":\"File\"}\n```",
			parsed: true,
			want:   Result{Summary: "Tender", Department: "Procurement", Priority: "Low", ActionRequired: "File"},
		},
		{
			name:   "bare fence",
			text:   "```\n{\"summary\":\"Leave request\",\"department\":\"HR\"}\n```",
			parsed: true,
			want:   Result{Summary: "Leave request", Department: "HR", Priority: DefaultPriority, ActionRequired: DefaultActionRequired},
		},
		{
			name:   "missing summary falls back to raw text",
			text:   `{"department":"Legal"}`,
			parsed: true,
			want:   Result{Summary: `{"department":"Legal"}`, Department: "Legal", Priority: DefaultPriority, ActionRequired: DefaultActionRequired},
		},
		{
			name:   "null counts as absent",
			text:   `{"summary":"Memo","department":null}`,
			parsed: true,
			want:   Result{Summary: "Memo", Department: DefaultDepartment, Priority: DefaultPriority, ActionRequired: DefaultActionRequired},
		},
		{
			name:   "non-string value kept as json",
			text:   `{"summary":"Memo","action_required":["call","email"]}`,
			parsed: true,
			want:   Result{Summary: "Memo", Department: DefaultDepartment, Priority: DefaultPriority, ActionRequired: `["call","email"]`},
		},
		{
			name:   "object wrapped in prose falls back to keywords",
			text:   `Sure: {"department":"Finance"} done`,
			parsed: false,
			want:   Result{Summary: `Sure: {"department":"Finance"} done`, Department: "Finance", Priority: DefaultPriority, ActionRequired: ManualReviewAction},
		},
		{
			name:   "top-level array is unparsed",
			text:   `["Finance"]`,
			parsed: false,
			want:   Result{Summary: `["Finance"]`, Department: "Finance", Priority: DefaultPriority, ActionRequired: ManualReviewAction},
		},
		{
			name:   "no json at all",
			text:   "Operations team, Low urgency",
			parsed: false,
			want:   Result{Summary: "Operations team, Low urgency", Department: "Operations", Priority: "Low", ActionRequired: ManualReviewAction},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseResponse(tt.text)
			if tt.parsed {
				require.IsType(t, Parsed{}, resp)
			} else {
				require.IsType(t, Unparsed{}, resp)
			}
			assert.Equal(t, tt.want, resp.Result())
		})
	}
}

func TestUnparsedFallback(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantDepartment string
		wantPriority   string
	}{
		{name: "finance and high", raw: "Finance, HIGH", wantDepartment: "Finance", wantPriority: "High"},
		{name: "case insensitive", raw: "legal counsel, medium", wantDepartment: "Legal", wantPriority: "Medium"},
		{name: "vocabulary order breaks ties", raw: "Procurement and HR", wantDepartment: "HR", wantPriority: DefaultPriority},
		{name: "nothing matches", raw: "zzz", wantDepartment: DefaultDepartment, wantPriority: DefaultPriority},
		{name: "substring match", raw: "submitted", wantDepartment: "IT", wantPriority: DefaultPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Unparsed{Raw: tt.raw}.Fallback()
			assert.Equal(t, tt.raw, res.Summary)
			assert.Equal(t, tt.wantDepartment, res.Department)
			assert.Equal(t, tt.wantPriority, res.Priority)
			assert.Equal(t, ManualReviewAction, res.ActionRequired)
			assert.False(t, res.Failed())
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("  ```json\n{\"a\":1}\n```  "))
	assert.Equal(t, `{"a":1}`, StripCodeFences(`{"a":1}`))
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, basePrompt, Prompt(""))
	assert.Equal(t, basePrompt, Prompt("   "))
	assert.Contains(t, Prompt("Be brief"), "Additional instructions from user: Be brief")
	assert.Contains(t, Prompt(""), "Safety & Security")
	assert.Contains(t, Prompt(""), "action_required")
}
