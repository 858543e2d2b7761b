package supportbot

import (
	"context"
	"log/slog"

	"github.com/usememos/supportbot/plugin/advisor"
)

const (
	blockedResponse = "I'm here to help with TaskFlow-related questions. If you have a specific issue or question about our product, I'd be happy to assist you. For sensitive matters, please contact our support team directly at support@taskflow.com."
	abusiveResponse = "I understand you may be frustrated, and I genuinely want to help. However, I'm not able to continue if the conversation becomes disrespectful. Let's try again - what specific issue can I help you with today?"
)

var (
	blockedTopics  = []string{"competitor", "hack", "exploit", "lawsuit", "internal", "confidential", "admin access"}
	abusivePhrases = []string{"you idiot", "stupid bot", "worthless", "useless piece"}
)

// SafetyAdvisor deflects abusive messages and blocked topics before they
// reach the model.
type SafetyAdvisor struct{}

func NewSafetyAdvisor() *SafetyAdvisor {
	return &SafetyAdvisor{}
}

func (*SafetyAdvisor) Name() string { return "SafetyAdvisor" }
func (*SafetyAdvisor) Order() int   { return 0 }

func (*SafetyAdvisor) Advise(ctx context.Context, req *advisor.Request, next advisor.Handler) advisor.Stream {
	folded := fold(req.UserText)
	// Abusive language wins over a blocked topic.
	if phrase, ok := firstMatch(folded, abusivePhrases); ok {
		slog.Warn("[ADVISOR SAFETY] abusive message deflected", "conversation", req.ConversationID, "phrase", phrase)
		req.Params.Set(paramSafetyViolation, "abusive")
		return advisor.Just(&advisor.Result{Text: abusiveResponse, ShortCircuited: true})
	}
	if topic, ok := firstMatch(folded, blockedTopics); ok {
		slog.Warn("[ADVISOR SAFETY] blocked topic deflected", "conversation", req.ConversationID, "topic", topic)
		req.Params.Set(paramSafetyViolation, "blocked")
		return advisor.Just(&advisor.Result{Text: blockedResponse, ShortCircuited: true})
	}
	return next(ctx, req)
}
