package supportbot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/usememos/supportbot/plugin/advisor"
)

// ResponseFormattingAdvisor sits next to the model and logs the size of
// every result, or of every fragment of a streamed result. The observed
// text is recorded in the call parameters; content is never changed.
type ResponseFormattingAdvisor struct{}

func NewResponseFormattingAdvisor() *ResponseFormattingAdvisor {
	return &ResponseFormattingAdvisor{}
}

func (*ResponseFormattingAdvisor) Name() string { return "ResponseFormattingAdvisor" }
func (*ResponseFormattingAdvisor) Order() int   { return 1000 }

func (*ResponseFormattingAdvisor) Advise(ctx context.Context, req *advisor.Request, next advisor.Handler) advisor.Stream {
	var (
		mu       sync.Mutex
		observed strings.Builder
		length   int
	)
	return advisor.Observe(next(ctx, req), func(r *advisor.Result) {
		mu.Lock()
		defer mu.Unlock()
		n := utf8.RuneCountInString(r.Text)
		observed.WriteString(r.Text)
		length += n
		req.Params.Set(paramResponseText, observed.String())
		req.Params.Set(paramResponseLength, length)
		if req.Streaming {
			slog.Debug("[ADVISOR FORMATTING] fragment", "conversation", req.ConversationID, "length", n)
			return
		}
		slog.Info("[ADVISOR FORMATTING] response formatted", "conversation", req.ConversationID, "length", n)
	})
}
