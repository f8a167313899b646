package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedGateway struct {
	err   error
	calls int
}

func (g *scriptedGateway) CreateIntent(context.Context, IntentParams) (*Intent, error) {
	g.calls++
	return nil, g.err
}

func (g *scriptedGateway) RetrieveIntent(context.Context, string) (*Intent, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &Intent{ID: "pi_1", Status: StatusSucceeded}, nil
}

func (g *scriptedGateway) VerifyWebhook([]byte, string, string) (*Event, error) { return nil, nil }
func (g *scriptedGateway) ParseEvent([]byte) (*Event, error)                    { return nil, nil }

func TestBreakerOpensOnUnreachable(t *testing.T) {
	inner := &scriptedGateway{err: newError(KindUnreachable, "down", nil)}
	g := WithBreaker(inner, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := g.RetrieveIntent(context.Background(), "pi_1")
		assert.Equal(t, KindUnreachable, KindOf(err))
	}
	assert.Equal(t, 2, inner.calls)

	_, err := g.RetrieveIntent(context.Background(), "pi_1")
	assert.Equal(t, KindUnreachable, KindOf(err))
	assert.Equal(t, 2, inner.calls, "open circuit must not call the gateway")
}

func TestBreakerIgnoresCardDeclines(t *testing.T) {
	inner := &scriptedGateway{err: newError(KindCardDeclined, "declined", nil)}
	g := WithBreaker(inner, BreakerSettings{ConsecutiveFailures: 2})

	for i := 0; i < 5; i++ {
		_, err := g.CreateIntent(context.Background(), IntentParams{Amount: 1, Currency: "usd"})
		assert.Equal(t, KindCardDeclined, KindOf(err))
	}
	assert.Equal(t, 5, inner.calls)
}
