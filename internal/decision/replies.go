package decision

import "unicode/utf8"

// Pre-written replies. Every failure or safety path resolves to one of
// these so the user never sees raw model output or error text.
const (
	// replyReassurance is always used after an escalation, regardless of
	// what the model wrote, to keep the tone safe and consistent.
	replyReassurance = "Thank you for letting us know. A member of our care team has been alerted and will reach out to you shortly. If this is a medical emergency, please call your local emergency number right away."

	// replyRequestNoted covers model output that looked like JSON but
	// could not be parsed.
	replyRequestNoted = "Thanks, your request has been noted. A member of our team will follow up if anything else is needed."

	// replyGenericFallback covers an LLM outage on a conversational turn.
	replyGenericFallback = "Sorry, I'm having trouble responding right now. Please try again in a little while, or call the clinic directly."

	// replyVisitorGreeting is the fallback after onboarding a visitor's
	// name when the model supplied no text of its own.
	replyVisitorGreeting = "Nice to meet you! How can I help you today?"

	// replyCheckAvailability nudges the user toward a concrete time; the
	// system never blocks on a calendar lookup.
	replyCheckAvailability = "I can't look up the calendar directly, but if you tell me a day and time that works for you (for example \"tomorrow at 2 PM\"), I'll send the request straight to the provider to confirm."

	// replyAskForTime is sent when a scheduling session starts without a
	// preferred time.
	replyAskForTime = "Sure, I can set that up. What day and time works best for you?"

	// replySchedulingUnavailable covers scheduling failures, including
	// an empty provider directory.
	replySchedulingUnavailable = "Sorry, I couldn't start scheduling just now. Please try again shortly or call the clinic to book directly."

	// replyVisitorScheduling is sent when someone not in the patient
	// records asks to book.
	replyVisitorScheduling = "I'd love to help you book. Since I don't have you in our records yet, please call the clinic so we can register you first."

	// replyNothingPending answers a bare provider yes/no with no open
	// request behind it.
	replyNothingPending = "There's nothing waiting for your approval right now."

	// replyRequestExpired answers a provider decision that arrived too
	// late.
	replyRequestExpired = "That meeting request has expired. The patient will need to send a new one."

	// replyApprovalFailed covers storage trouble while resolving.
	replyApprovalFailed = "Sorry, I couldn't process that decision. Please try again in a moment."

	// replyDeclineAck acknowledges a provider decline; the patient is
	// notified separately by the approval workflow.
	replyDeclineAck = "Noted. I've let the patient know that time doesn't work."

	// replyNoSources answers a provider technical question with no
	// matching reference material.
	replyNoSources = "I couldn't find any reference material matching that question. Try rephrasing, or check the clinical handbook directly."
)

// escalateSummaryMax bounds the stored escalation summary.
const escalateSummaryMax = 180

func truncateSummary(s string) string {
	return truncateOnRune(s, escalateSummaryMax)
}

// truncateOnRune caps s at max bytes without splitting a multi-byte rune,
// backing off to the preceding rune start when the cut lands mid-sequence.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
