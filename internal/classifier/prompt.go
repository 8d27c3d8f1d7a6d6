package classifier

import "strings"

// basePrompt carries the department list and the priority policy. The policy
// is enforced by the model only; the local fallback does keyword presence
// matching and nothing more.
const basePrompt = "You are an AI assistant for Kochi Metro Rail Limited (KMRL). Analyze the provided document/image. " +
	"Your tasks are to: " +
	"1. Provide a concise summary of the document's content. " +
	"2. Detect the most relevant department (HR, IT, Finance, Operations, Legal, Safety & Security, Procurement). " +
	"3. Assign a priority level (High, Medium, Low). " +
	"4. Suggest a clear, actionable next step as 'action_required'.\n\n" +
	"**Priority Rules:**\n" +
	"- **High Priority:** MUST be assigned for documents containing keywords related to: " +
	"  - **Safety/Security:** 'accident', 'derailment', 'collision', 'fire', 'safety audit', 'security breach', 'unavoidable delays', 'service disruption'. " +
	"  - **Legal:** 'legal notice', 'lawsuit', 'court order', 'compliance violation'. " +
	"  - **Financial:** 'audit objection', 'financial loss', 'fraud', 'tender irregularity'. " +
	"  - **Urgent Operations:** 'emergency maintenance', 'system failure', 'power outage', 'signal failure'.\n" +
	"- **Medium Priority:** Assign for standard operational, financial, or HR reports.\n" +
	"- **Low Priority:** Assign for general correspondence, newsletters, or non-critical updates.\n\n" +
	"Return the response ONLY in JSON format with 'summary', 'department', 'priority', and 'action_required' fields."

// Prompt returns the model instructions, with the user's custom
// instructions appended when present.
func Prompt(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return basePrompt
	}
	return basePrompt + "\n\nAdditional instructions from user: " + custom
}
