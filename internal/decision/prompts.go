package decision

import (
	"fmt"
	"strings"

	"github.com/wardlink/clinic-comms-platform/internal/personalctx"
	"github.com/wardlink/clinic-comms-platform/internal/retrieval"
)

const jsonProtocol = `You must reply with exactly one JSON object and nothing else. No prose before or after, no code fences. The object has this shape:
{"action": "...", "answer": "...", "escalate_summary": "...", "name": "...", "provider_name": "...", "preferred_time": "...", "reason": "...", "session_id": "..."}
Valid actions: answer, escalate, onboard_name, check_availability, start_interactive_scheduling, process_time_selection. Only include fields relevant to the chosen action.`

const patientPromptHead = `You are the messaging assistant for a maternal health clinic. You are talking to a registered patient over WhatsApp. Be warm, brief, and practical. Never diagnose, never prescribe, and never contradict the care team.

Choose "escalate" with a short escalate_summary whenever the patient describes pain, bleeding, reduced fetal movement, or anything that could need clinical attention. Choose "start_interactive_scheduling" when they ask to see or speak with a provider, filling provider_name and preferred_time when mentioned. Choose "answer" for everything else, using only the reference material and patient record below.`

const visitorPromptHead = `You are the messaging assistant for a maternal health clinic. You are talking to someone who is not in our records yet. Be welcoming and brief.

If they tell you their name, choose "onboard_name" with the name field set and a short friendly answer. Choose "escalate" with a short escalate_summary if they describe anything urgent or medical. Otherwise choose "answer" and help with general questions about the clinic using the reference material below. Do not discuss individual medical records.`

const providerPromptHead = `You are the internal assistant for clinic providers. Keep replies short and factual. Choose "answer" for greetings and small talk.`

// technicalPromptHead is the quote-only policy for provider questions.
// The model must not paraphrase clinical sources.
const technicalPromptHead = `You are a clinical reference assistant for licensed providers. Answer ONLY with near-verbatim excerpts from the numbered sources below, citing each excerpt with its marker, for example [S1]. Do not paraphrase, do not add your own clinical guidance, and do not use sources that are not listed. If the sources do not answer the question, say so. Reply in plain text, not JSON.`

// buildPatientPrompt assembles the patient system prompt with the personal
// record and retrieval snippets inline.
func buildPatientPrompt(bundle *personalctx.Bundle, results []retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString(patientPromptHead)
	sb.WriteString("\n\n")
	sb.WriteString(jsonProtocol)

	sb.WriteString("\n\nPatient record:\n")
	if bundle == nil || (bundle.Name == "" && bundle.ANCSummary == "" && len(bundle.Prescriptions) == 0 && len(bundle.Reminders) == 0) {
		sb.WriteString("- nothing on file\n")
	} else {
		if bundle.Name != "" {
			fmt.Fprintf(&sb, "- Name: %s\n", bundle.Name)
		}
		if bundle.ANCSummary != "" {
			fmt.Fprintf(&sb, "- Antenatal summary: %s\n", bundle.ANCSummary)
		}
		for _, p := range bundle.Prescriptions {
			fmt.Fprintf(&sb, "- Prescription: %s %s (%s)\n", p.Name, p.Dosage, p.Instructions)
		}
		for _, r := range bundle.Reminders {
			fmt.Fprintf(&sb, "- Upcoming: %s on %s\n", r.Label, r.DueAt.Format("Mon Jan 2 at 3:04 PM"))
		}
	}

	appendSnippets(&sb, results)
	return sb.String()
}

func buildVisitorPrompt(results []retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString(visitorPromptHead)
	sb.WriteString("\n\n")
	sb.WriteString(jsonProtocol)
	appendSnippets(&sb, results)
	return sb.String()
}

func buildProviderPrompt() string {
	return providerPromptHead + "\n\n" + jsonProtocol
}

// buildTechnicalPrompt numbers the sources for [S#] citation.
func buildTechnicalPrompt(results []retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString(technicalPromptHead)
	sb.WriteString("\n\nSources:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[S%d] %s\n%s\n\n", i+1, r.Title, r.Text)
	}
	return sb.String()
}

func appendSnippets(sb *strings.Builder, results []retrieval.Result) {
	if len(results) == 0 {
		return
	}
	sb.WriteString("\nReference material:\n")
	for _, r := range results {
		fmt.Fprintf(sb, "## %s\n%s\n", r.Title, r.Text)
	}
}

// rawSourceSummary is the non-LLM fallback for provider technical mode:
// titles plus leading snippets, nothing generated.
func rawSourceSummary(results []retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString("I couldn't generate a summary right now, but here is what the reference material says:\n")
	for i, r := range results {
		text := truncateOnRune(r.Text, 400)
		fmt.Fprintf(&sb, "\n[S%d] %s\n%s\n", i+1, r.Title, text)
	}
	return sb.String()
}
