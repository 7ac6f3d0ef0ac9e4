package decision

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wardlink/clinic-comms-platform/internal/approval"
	"github.com/wardlink/clinic-comms-platform/internal/escalation"
	"github.com/wardlink/clinic-comms-platform/internal/identity"
	"github.com/wardlink/clinic-comms-platform/internal/llm"
	"github.com/wardlink/clinic-comms-platform/internal/personalctx"
	"github.com/wardlink/clinic-comms-platform/internal/retrieval"
	"github.com/wardlink/clinic-comms-platform/internal/scheduling"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

const (
	// llmTimeout bounds each model call; a hung backend must not hang
	// inbound message handling.
	llmTimeout = 30 * time.Second

	topKSnippets = 4

	// namespaceEducation holds patient-facing material, namespaceClinical
	// holds provider reference documents.
	namespaceEducation = "education"
	namespaceClinical  = "clinical"
)

// bareDecisionRe matches provider shortcuts that bypass the model verdict
// entirely. Providers must be able to approve even when the model
// misclassifies their reply.
var bareDecisionRe = regexp.MustCompile(`(?i)^\s*(yes|no|confirm|decline|pending)\s*[.!]*\s*$`)

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank": true,
	"good": true, "morning": true, "afternoon": true, "evening": true, "ok": true, "okay": true,
}

type searcher interface {
	Search(ctx context.Context, query string, filter retrieval.ScopeFilter, topK int) []retrieval.Result
}

type personalFetcher interface {
	Fetch(ctx context.Context, patientID string) *personalctx.Bundle
}

type escalationCreator interface {
	Create(ctx context.Context, esc *escalation.Escalation) (string, error)
}

type visitorRegistry interface {
	UpdateVisitorName(ctx context.Context, id, name string) error
}

type scheduler interface {
	Start(ctx context.Context, in scheduling.StartInput) (*scheduling.Session, error)
	SubmitTime(ctx context.Context, sessionID, rawTime, reason string) (*approval.Request, error)
}

type approvalResolver interface {
	ResolveLatest(ctx context.Context, providerPhone string, decision approval.Decision) (*approval.Outcome, error)
	LatestPending(ctx context.Context, providerPhone string) (*approval.Request, error)
}

// Turn is one inbound message with everything the engine needs resolved
// up front. No ambient state survives between turns.
type Turn struct {
	Identity identity.Identity
	Message  string
	Media    *escalation.Media
	History  []llm.ChatMessage
}

// Reply is the engine's verdict for one turn. An empty Text means the
// side effects already notified the sender and nothing more should go out.
type Reply struct {
	Text   string
	Action Action
}

// Engine classifies each inbound message with one LLM call (or zero on
// provider shortcuts) and dispatches the resulting action. Every failure
// path resolves to a pre-written reply; Handle never surfaces raw errors
// or model JSON to the user.
type Engine struct {
	llm         llm.Client
	search      searcher
	personal    personalFetcher
	escalations escalationCreator
	visitors    visitorRegistry
	scheduler   scheduler
	approvals   approvalResolver
	model       string
	logger      *logging.Logger
}

// NewEngine wires the decision engine. All dependencies are required.
func NewEngine(client llm.Client, search searcher, personal personalFetcher, escalations escalationCreator, visitors visitorRegistry, sched scheduler, approvals approvalResolver, model string, logger *logging.Logger) *Engine {
	if client == nil {
		panic("decision: llm client cannot be nil")
	}
	if search == nil {
		panic("decision: searcher cannot be nil")
	}
	if personal == nil {
		panic("decision: personal context fetcher cannot be nil")
	}
	if escalations == nil {
		panic("decision: escalation creator cannot be nil")
	}
	if visitors == nil {
		panic("decision: visitor registry cannot be nil")
	}
	if sched == nil {
		panic("decision: scheduler cannot be nil")
	}
	if approvals == nil {
		panic("decision: approval resolver cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		llm:         client,
		search:      search,
		personal:    personal,
		escalations: escalations,
		visitors:    visitors,
		scheduler:   sched,
		approvals:   approvals,
		model:       model,
		logger:      logger,
	}
}

// Handle processes one inbound turn and returns the reply to send back.
func (e *Engine) Handle(ctx context.Context, turn Turn) Reply {
	ident := turn.Identity

	// Provider shortcuts outrank everything else.
	if ident.Scope == identity.ScopeProvider {
		if m := bareDecisionRe.FindStringSubmatch(turn.Message); m != nil {
			return e.handleProviderShortcut(ctx, ident, strings.ToLower(m[1]))
		}
		if !isGreeting(turn.Message) {
			return e.handleTechnical(ctx, turn)
		}
	}

	env := e.classify(ctx, turn)
	reply := e.dispatch(ctx, turn, env)

	// Media the model did not classify still needs human eyes.
	if turn.Media != nil && reply.Action != ActionEscalate {
		e.escalateMedia(ctx, turn)
	}
	return reply
}

// classify runs the single LLM call for this turn and decodes the verdict.
// Any model failure degrades to a safe envelope, never an error.
func (e *Engine) classify(ctx context.Context, turn Turn) *ActionEnvelope {
	ident := turn.Identity

	var system string
	switch ident.Scope {
	case identity.ScopePatient:
		bundle := e.personal.Fetch(ctx, ident.SubjectID)
		results := e.search.Search(ctx, turn.Message, retrieval.ScopeFilter{
			Namespace:    namespaceEducation,
			PatientPhone: ident.PhoneE164,
		}, topKSnippets)
		system = buildPatientPrompt(bundle, results)
	case identity.ScopeProvider:
		system = buildProviderPrompt()
	default:
		results := e.search.Search(ctx, turn.Message, retrieval.ScopeFilter{Namespace: namespaceEducation}, topKSnippets)
		system = buildVisitorPrompt(results)
	}

	messages := append(append([]llm.ChatMessage{}, turn.History...), llm.ChatMessage{
		Role:    llm.ChatRoleUser,
		Content: turn.Message,
	})

	callCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()
	resp, err := e.llm.Complete(callCtx, llm.Request{
		Model:    e.model,
		System:   []string{system},
		Messages: messages,
	})
	if err != nil {
		e.logger.Error("llm call failed", "scope", string(ident.Scope), "error", err)
		return &ActionEnvelope{Action: ActionAnswer, Answer: replyGenericFallback}
	}

	env, err := ParseEnvelope(resp.Text)
	if err != nil {
		if errors.Is(err, ErrEmptyOutput) {
			e.logger.Warn("llm returned empty output", "scope", string(ident.Scope))
			return &ActionEnvelope{Action: ActionAnswer, Answer: replyGenericFallback}
		}
		// Broken JSON must never be echoed back.
		e.logger.Warn("unparseable llm verdict", "scope", string(ident.Scope), "error", err)
		return &ActionEnvelope{Action: ActionAnswer, Answer: replyRequestNoted}
	}
	return env
}

func (e *Engine) dispatch(ctx context.Context, turn Turn, env *ActionEnvelope) Reply {
	switch env.Action {
	case ActionEscalate:
		return e.handleEscalate(ctx, turn, env)
	case ActionOnboardName:
		return e.handleOnboardName(ctx, turn, env)
	case ActionStartScheduling, ActionScheduleMeeting:
		return e.handleScheduling(ctx, turn, env)
	case ActionProcessTimeSelection:
		return e.handleTimeSelection(ctx, turn, env)
	case ActionCheckAvailability:
		return Reply{Text: replyCheckAvailability, Action: ActionCheckAvailability}
	default:
		text := strings.TrimSpace(env.Answer)
		if text == "" {
			text = replyGenericFallback
		}
		return Reply{Text: text, Action: ActionAnswer}
	}
}

func (e *Engine) handleEscalate(ctx context.Context, turn Turn, env *ActionEnvelope) Reply {
	ident := turn.Identity
	if ident.Scope == identity.ScopeProvider {
		// Providers are never escalation subjects; fall back to answer.
		text := strings.TrimSpace(env.Answer)
		if text == "" {
			text = replyGenericFallback
		}
		return Reply{Text: text, Action: ActionAnswer}
	}

	subjectType := escalation.SubjectPatient
	if ident.Scope == identity.ScopeVisitor {
		subjectType = escalation.SubjectVisitor
	}
	summary := env.EscalateSummary
	if summary == "" {
		summary = turn.Message
	}

	_, err := e.escalations.Create(ctx, &escalation.Escalation{
		PhoneE164:   ident.PhoneE164,
		Summary:     truncateSummary(summary),
		SubjectType: subjectType,
		SubjectID:   ident.SubjectID,
		Media:       turn.Media,
	})
	if err != nil {
		e.logger.Error("escalation creation failed", "phone", ident.PhoneE164, "error", err)
	}
	// Always the fixed reassurance, never the model's wording.
	return Reply{Text: replyReassurance, Action: ActionEscalate}
}

func (e *Engine) handleOnboardName(ctx context.Context, turn Turn, env *ActionEnvelope) Reply {
	ident := turn.Identity
	name := strings.TrimSpace(env.Name)
	if ident.Scope != identity.ScopeVisitor || name == "" {
		text := strings.TrimSpace(env.Answer)
		if text == "" {
			text = replyGenericFallback
		}
		return Reply{Text: text, Action: ActionAnswer}
	}

	if err := e.visitors.UpdateVisitorName(ctx, ident.SubjectID, name); err != nil {
		e.logger.Warn("failed to persist visitor name", "visitor_id", ident.SubjectID, "error", err)
	}
	text := strings.TrimSpace(env.Answer)
	if text == "" {
		text = replyVisitorGreeting
	}
	return Reply{Text: text, Action: ActionOnboardName}
}

func (e *Engine) handleScheduling(ctx context.Context, turn Turn, env *ActionEnvelope) Reply {
	ident := turn.Identity
	if ident.Scope != identity.ScopePatient {
		return Reply{Text: replyVisitorScheduling, Action: ActionAnswer}
	}

	sess, err := e.scheduler.Start(ctx, scheduling.StartInput{
		PatientID:    ident.SubjectID,
		PatientPhone: ident.PhoneE164,
		PatientName:  ident.DisplayName,
		ProviderRef:  env.ProviderName,
	})
	if err != nil {
		e.logger.Error("scheduling start failed", "phone", ident.PhoneE164, "error", err)
		return Reply{Text: replySchedulingUnavailable, Action: ActionAnswer}
	}

	// With a preferred time the session advances immediately; the
	// provider is the source of truth for availability, so nothing
	// blocks on a calendar lookup here.
	if strings.TrimSpace(env.PreferredTime) != "" {
		reply, _ := e.submitTime(ctx, sess.ID, env)
		return reply
	}
	return Reply{Text: replyAskForTime, Action: ActionStartScheduling}
}

func (e *Engine) handleTimeSelection(ctx context.Context, turn Turn, env *ActionEnvelope) Reply {
	reply, stale := e.submitTime(ctx, env.SessionID, env)
	if !stale {
		return reply
	}
	// Missing or expired session: restart as a fresh scheduling request.
	if env.PreferredTime == "" {
		env.PreferredTime = turn.Message
	}
	return e.handleScheduling(ctx, turn, env)
}

// submitTime advances a session to a meeting request. The second return
// is true when the session was missing, expired, or already consumed and
// the caller should restart scheduling from scratch.
func (e *Engine) submitTime(ctx context.Context, sessionID string, env *ActionEnvelope) (Reply, bool) {
	req, err := e.scheduler.SubmitTime(ctx, sessionID, env.PreferredTime, env.Reason)
	if err != nil {
		if errors.Is(err, scheduling.ErrSessionNotFound) ||
			errors.Is(err, scheduling.ErrSessionExpired) ||
			errors.Is(err, scheduling.ErrSessionConsumed) {
			return Reply{Text: replySchedulingUnavailable, Action: ActionAnswer}, true
		}
		e.logger.Error("time submission failed", "session_id", sessionID, "error", err)
		return Reply{Text: replySchedulingUnavailable, Action: ActionAnswer}, false
	}

	when := req.RequestedTime
	if t, perr := req.RequestedTimeAsTime(); perr == nil {
		when = t.Format("Mon Jan 2 at 3:04 PM")
	}
	text := fmt.Sprintf("Got it. I've asked %s to confirm %s. I'll message you as soon as they reply.",
		providerDisplay(req.ProviderName), when)
	return Reply{Text: text, Action: ActionProcessTimeSelection}, false
}

// handleProviderShortcut routes a bare yes/no/pending straight to the
// approval workflow, skipping the model entirely.
func (e *Engine) handleProviderShortcut(ctx context.Context, ident identity.Identity, word string) Reply {
	if word == "pending" {
		req, err := e.approvals.LatestPending(ctx, ident.PhoneE164)
		if err != nil {
			if errors.Is(err, approval.ErrNothingPending) {
				return Reply{Text: replyNothingPending, Action: ActionAnswer}
			}
			e.logger.Error("pending lookup failed", "phone", ident.PhoneE164, "error", err)
			return Reply{Text: replyApprovalFailed, Action: ActionAnswer}
		}
		text := fmt.Sprintf("Pending: meeting request from %s for %s.%s Reply \"yes\" to approve or \"no\" to decline.",
			patientDisplay(req), requestedDisplay(req), reasonSuffix(req.Reason))
		return Reply{Text: text, Action: ActionAnswer}
	}

	decision := approval.DecisionConfirm
	if word == "no" || word == "decline" {
		decision = approval.DecisionDecline
	}

	outcome, err := e.approvals.ResolveLatest(ctx, ident.PhoneE164, decision)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrNothingPending):
			return Reply{Text: replyNothingPending, Action: ActionAnswer}
		case errors.Is(err, approval.ErrExpired):
			return Reply{Text: replyRequestExpired, Action: ActionAnswer}
		case errors.Is(err, approval.ErrAlreadyResolved):
			return Reply{Text: replyNothingPending, Action: ActionAnswer}
		default:
			e.logger.Error("approval resolution failed", "phone", ident.PhoneE164, "error", err)
			return Reply{Text: replyApprovalFailed, Action: ActionAnswer}
		}
	}

	if outcome.Status == approval.StatusDeclined {
		return Reply{Text: replyDeclineAck, Action: ActionAnswer}
	}
	// The workflow already sent the confirmation with the meeting link to
	// both parties; an empty reply avoids texting the provider twice.
	return Reply{Action: ActionAnswer}
}

// handleTechnical answers a provider question in quote-only mode. Zero
// matching sources means zero LLM calls.
func (e *Engine) handleTechnical(ctx context.Context, turn Turn) Reply {
	results := e.search.Search(ctx, turn.Message, retrieval.ScopeFilter{Namespace: namespaceClinical}, topKSnippets)
	if len(results) == 0 {
		return Reply{Text: replyNoSources, Action: ActionAnswer}
	}

	callCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()
	resp, err := e.llm.Complete(callCtx, llm.Request{
		Model:  e.model,
		System: []string{buildTechnicalPrompt(results)},
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: turn.Message},
		},
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			e.logger.Warn("technical mode llm failed, using raw sources", "error", err)
		}
		return Reply{Text: rawSourceSummary(results), Action: ActionAnswer}
	}
	return Reply{Text: strings.TrimSpace(resp.Text), Action: ActionAnswer}
}

func (e *Engine) escalateMedia(ctx context.Context, turn Turn) {
	ident := turn.Identity
	subjectType := escalation.SubjectPatient
	if ident.Scope == identity.ScopeVisitor {
		subjectType = escalation.SubjectVisitor
	}
	summary := "Media attachment received"
	if strings.TrimSpace(turn.Message) != "" {
		summary = truncateSummary("Media attachment with message: " + turn.Message)
	}
	if _, err := e.escalations.Create(ctx, &escalation.Escalation{
		PhoneE164:   ident.PhoneE164,
		Summary:     summary,
		SubjectType: subjectType,
		SubjectID:   ident.SubjectID,
		Media:       turn.Media,
	}); err != nil {
		e.logger.Error("media escalation failed", "phone", ident.PhoneE164, "error", err)
	}
}

// isGreeting reports whether a short provider message is small talk
// rather than a technical question.
func isGreeting(message string) bool {
	fields := strings.Fields(strings.ToLower(message))
	if len(fields) == 0 || len(fields) > 4 {
		return false
	}
	for _, f := range fields {
		if !greetingWords[strings.Trim(f, ".,!?")] {
			return false
		}
	}
	return true
}

func providerDisplay(name string) string {
	if name == "" {
		return "the provider"
	}
	return name
}

func patientDisplay(req *approval.Request) string {
	if req.PatientName != "" {
		return req.PatientName
	}
	return req.PatientPhone
}

func requestedDisplay(req *approval.Request) string {
	if t, err := req.RequestedTimeAsTime(); err == nil {
		return t.Format("Mon Jan 2 at 3:04 PM")
	}
	return req.RequestedTime
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf(" Reason: %s.", reason)
}
