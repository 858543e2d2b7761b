package supportbot

import (
	"context"
	"log/slog"

	"github.com/usememos/supportbot/plugin/advisor"
)

type Sentiment string

const (
	SentimentPositive   Sentiment = "POSITIVE"
	SentimentNeutral    Sentiment = "NEUTRAL"
	SentimentFrustrated Sentiment = "FRUSTRATED"
	SentimentAngry      Sentiment = "ANGRY"
)

// RequiresAttention reports whether a human should look at the conversation.
func (s Sentiment) RequiresAttention() bool {
	return s == SentimentFrustrated || s == SentimentAngry
}

var sentimentRules = []struct {
	sentiment Sentiment
	keywords  []string
}{
	{SentimentAngry, []string{"angry", "furious", "outraged", "hate", "worst", "horrible", "disgusting", "fed up", "sick of", "never again", "demand"}},
	{SentimentFrustrated, []string{"frustrated", "annoying", "disappointed", "unhappy", "waste of time", "not happy", "terrible", "awful", "ridiculous", "unacceptable"}},
	{SentimentPositive, []string{"thanks", "thank you", "great", "awesome", "excellent", "perfect", "love", "amazing", "helpful", "appreciate", "wonderful", "fantastic"}},
}

// ClassifySentiment returns the first sentiment, angry before frustrated
// before positive, whose keywords occur in text.
func ClassifySentiment(text string) Sentiment {
	folded := fold(text)
	for _, rule := range sentimentRules {
		if containsAny(folded, rule.keywords...) {
			return rule.sentiment
		}
	}
	return SentimentNeutral
}

// SentimentAdvisor records the sentiment of the user message in the call
// parameters.
type SentimentAdvisor struct{}

func NewSentimentAdvisor() *SentimentAdvisor {
	return &SentimentAdvisor{}
}

func (*SentimentAdvisor) Name() string { return "SentimentAdvisor" }
func (*SentimentAdvisor) Order() int   { return 20 }

func (*SentimentAdvisor) Advise(ctx context.Context, req *advisor.Request, next advisor.Handler) advisor.Stream {
	sentiment := ClassifySentiment(req.UserText)
	req.Params.Set(paramSentiment, sentiment)
	if sentiment.RequiresAttention() {
		slog.Warn("[ADVISOR SENTIMENT] customer needs attention", "conversation", req.ConversationID, "sentiment", sentiment)
	} else {
		slog.Debug("[ADVISOR SENTIMENT]", "conversation", req.ConversationID, "sentiment", sentiment)
	}
	return next(ctx, req)
}
