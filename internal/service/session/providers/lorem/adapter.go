// Package lorem is the placeholder third provider. It needs no API access
// and replies with generated filler text, which makes it useful both as the
// stand-in backend and as the provider the test suites exercise.
package lorem

import (
	"context"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/service/session"
)

// Adapter implements session.Adapter without any network backend.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderLorem
}

// Connect validates the model id and hands out a local session. Any
// non-blank key is accepted; the router already rejected blank credentials.
func (a *Adapter) Connect(ctx context.Context, params session.InitParams, systemPrompt string) (session.Conn, error) {
	if !strings.HasPrefix(params.ModelID, "lorem-") {
		return nil, domain.Errorf(domain.KindInvalidModel, "model %q is not supported by the lorem provider", params.ModelID)
	}
	return &conn{
		gen:   loremgen.New(),
		delay: delayFor(params.ModelID),
	}, nil
}

// delayFor simulates backend latency based on the model name.
func delayFor(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	return 0
}

type conn struct {
	gen   *loremgen.Lorem
	delay time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *conn) reply(ctx context.Context) (string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return "", domain.NewError(domain.KindNotActive, "lorem session is closed")
	}

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", domain.WrapError(ctx.Err(), domain.KindNetwork, "lorem reply timed out")
		}
	}

	return c.gen.Paragraph(1, 2), nil
}

func (c *conn) SendText(ctx context.Context, text string) (string, error) {
	return c.reply(ctx)
}

func (c *conn) SendImage(ctx context.Context, imageB64 string) (string, error) {
	return c.reply(ctx)
}

func (c *conn) SendAudio(ctx context.Context, audioB64, mimeType string) (string, error) {
	return "", domain.NewError(domain.KindUnsupportedCapability, "Audio input is not supported by the lorem provider")
}

// Done returns nil: a local session has no connection to lose.
func (c *conn) Done() <-chan error { return nil }

func (c *conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
