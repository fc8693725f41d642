package chat

import (
	"context"
	"log"
	"time"

	"github.com/atomcoach/atom/internal/ai"
)

// FallbackReply is the only failure text a user ever sees from the model
// service.
const FallbackReply = "Apologies, my systems are under a bit of strain right now. Please try your query again in a moment."

const defaultCompleteTimeout = 90 * time.Second

// Gateway makes a single completion attempt per user message. Any provider
// error degrades to FallbackReply; the detail goes to the log only. No retry:
// the user resends if the failure was transient.
type Gateway struct {
	provider ai.Provider
	timeout  time.Duration
}

func NewGateway(provider ai.Provider, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultCompleteTimeout
	}
	return &Gateway{provider: provider, timeout: timeout}
}

func (g *Gateway) Complete(ctx context.Context, messages []ai.Message) string {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.provider.Chat(cctx, messages)
	if err != nil {
		log.Printf("completion failed turns=%d err=%v", len(messages), err)
		return FallbackReply
	}
	return reply
}
