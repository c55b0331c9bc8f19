package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antmikinka/cheating-daddy/internal/capabilities"
	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// fakeConn scripts one live session. Counters verify the side-effect-free
// error paths: a gated or inactive call must never reach the connection.
type fakeConn struct {
	mu         sync.Mutex
	textCalls  int
	imageCalls int
	audioCalls int

	reply string
	err   error
	block chan struct{} // non-nil: sends wait here first
	done  chan error
}

func newFakeConn(reply string) *fakeConn {
	return &fakeConn{reply: reply, done: make(chan error, 1)}
}

func (c *fakeConn) respond(ctx context.Context, counter *int) (string, error) {
	c.mu.Lock()
	*counter++
	block, reply, err := c.block, c.reply, c.err
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", domain.WrapError(ctx.Err(), domain.KindNetwork, "request timed out")
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *fakeConn) SendText(ctx context.Context, text string) (string, error) {
	return c.respond(ctx, &c.textCalls)
}

func (c *fakeConn) SendImage(ctx context.Context, imageB64 string) (string, error) {
	return c.respond(ctx, &c.imageCalls)
}

func (c *fakeConn) SendAudio(ctx context.Context, audioB64, mimeType string) (string, error) {
	return c.respond(ctx, &c.audioCalls)
}

func (c *fakeConn) Done() <-chan error { return c.done }
func (c *fakeConn) Close() error       { return nil }

func (c *fakeConn) calls() (text, image, audio int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textCalls, c.imageCalls, c.audioCalls
}

// fakeAdapter hands out scripted connections and records every connect.
type fakeAdapter struct {
	provider domain.Provider

	mu           sync.Mutex
	connectCalls int
	connectErrs  []error // consumed one per call; nil entry = success
	reply        string
	lastParams   InitParams
	conns        []*fakeConn
	blockConnect chan struct{} // non-nil: Connect waits here
	started      chan struct{} // signaled when Connect begins
}

func (a *fakeAdapter) Provider() domain.Provider { return a.provider }

func (a *fakeAdapter) Connect(ctx context.Context, params InitParams, systemPrompt string) (Conn, error) {
	a.mu.Lock()
	a.connectCalls++
	a.lastParams = params
	var err error
	if len(a.connectErrs) > 0 {
		err, a.connectErrs = a.connectErrs[0], a.connectErrs[1:]
	}
	block, started := a.blockConnect, a.started
	a.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, domain.WrapError(ctx.Err(), domain.KindNetwork, "connect timed out")
		}
	}
	if err != nil {
		return nil, err
	}

	conn := newFakeConn(a.reply)
	a.mu.Lock()
	a.conns = append(a.conns, conn)
	a.mu.Unlock()
	return conn, nil
}

func (a *fakeAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectCalls
}

func (a *fakeAdapter) conn(i int) *fakeConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 {
		i = len(a.conns) + i
	}
	return a.conns[i]
}

type fixture struct {
	router   *Router
	adapter  *fakeAdapter
	registry *Registry
	sup      *Supervisor
	selector *Selector
}

func newFixture(t *testing.T, provider domain.Provider, reply string) *fixture {
	t.Helper()

	caps, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("capabilities.NewRegistry() error: %v", err)
	}

	adapter := &fakeAdapter{provider: provider, reply: reply}
	registry := NewRegistry()
	selector := NewSelector(provider, "")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sup := NewSupervisor(registry, NopNotifier{}, logger, 3, 5*time.Millisecond)
	router := NewRouter(
		registry,
		map[domain.Provider]Adapter{provider: adapter},
		caps,
		NewLog(),
		selector,
		NopNotifier{},
		sup,
		logger,
		time.Second,
	)

	return &fixture{router: router, adapter: adapter, registry: registry, sup: sup, selector: selector}
}

func validInit() InitRequest {
	return InitRequest{APIKey: "test-key", Profile: "interview", SearchEnabled: true}
}

func TestInitializeBlankCredentials(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
	}{
		{"empty", ""},
		{"whitespace only", "   \t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.ProviderGemini, "hi")

			_, err := f.router.Initialize(context.Background(), InitRequest{APIKey: tt.apiKey})
			if !domain.IsAuth(err) {
				t.Fatalf("Initialize() error = %v, want auth error", err)
			}
			if f.adapter.calls() != 0 {
				t.Errorf("adapter contacted %d times for blank credentials, want 0", f.adapter.calls())
			}
		})
	}
}

func TestSendWithoutActiveSession(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")

	_, err := f.router.SendText(context.Background(), "hello")
	if !domain.IsNotActive(err) {
		t.Fatalf("SendText() error = %v, want not-active error", err)
	}
	if f.adapter.calls() != 0 {
		t.Error("send without session reached the adapter")
	}
}

func TestAudioGateBlocksUnsupportedProvider(t *testing.T) {
	f := newFixture(t, domain.ProviderOpenAI, "hi")

	// Gate applies with no session at all...
	_, err := f.router.SendAudio(context.Background(), "AAAA", "audio/pcm")
	if !domain.IsUnsupportedCapability(err) {
		t.Fatalf("SendAudio() error = %v, want unsupported-capability error", err)
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("gate message %q should contain 'not supported'", err.Error())
	}

	// ...and with an active one, without the adapter ever seeing the call.
	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if _, err := f.router.SendAudio(context.Background(), "AAAA", "audio/pcm"); !domain.IsUnsupportedCapability(err) {
		t.Fatalf("SendAudio() with session error = %v, want unsupported-capability error", err)
	}
	if _, _, audio := f.adapter.conn(0).calls(); audio != 0 {
		t.Errorf("gated audio call reached the connection %d times", audio)
	}
}

func TestSendTextRecordsTurn(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")

	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	reply, err := f.router.SendText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendText() error: %v", err)
	}
	if reply != "hi" {
		t.Errorf("SendText() = %q, want %q", reply, "hi")
	}

	conv := f.router.CurrentSession()
	if len(conv.Turns) != 1 {
		t.Fatalf("conversation has %d turns, want 1", len(conv.Turns))
	}
	if conv.Turns[0].InputSummary != "hello" || conv.Turns[0].ResponseText != "hi" {
		t.Errorf("turn = %+v, want inputSummary=hello responseText=hi", conv.Turns[0])
	}
}

func TestFailedSendRecordsNothing(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")

	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	conn := f.adapter.conn(0)
	conn.mu.Lock()
	conn.err = domain.NewError(domain.KindBackend, "backend exploded")
	conn.mu.Unlock()

	if _, err := f.router.SendText(context.Background(), "hello"); !domain.IsBackend(err) {
		t.Fatalf("SendText() error = %v, want backend error", err)
	}
	if turns := f.router.CurrentSession().Turns; len(turns) != 0 {
		t.Errorf("failed send recorded %d turns, want 0", len(turns))
	}
}

func TestSendImageRecordsPlaceholderSummary(t *testing.T) {
	f := newFixture(t, domain.ProviderOpenAI, "that is a login screen")

	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if _, err := f.router.SendImage(context.Background(), strings.Repeat("A", 200)); err != nil {
		t.Fatalf("SendImage() error: %v", err)
	}

	conv := f.router.CurrentSession()
	if len(conv.Turns) != 1 {
		t.Fatalf("conversation has %d turns, want 1", len(conv.Turns))
	}
	if conv.Turns[0].InputSummary != domain.ImageSentSummary {
		t.Errorf("inputSummary = %q, want %q", conv.Turns[0].InputSummary, domain.ImageSentSummary)
	}
}

func TestCloseThenSendFailsNotActive(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")

	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	f.router.Close(context.Background())

	_, err := f.router.SendText(context.Background(), "anyone there?")
	if !domain.IsNotActive(err) {
		t.Fatalf("SendText() after close error = %v, want not-active error", err)
	}
	if text, _, _ := f.adapter.conn(0).calls(); text != 0 {
		t.Error("send after close reached the connection")
	}
}

func TestCloseDiscardsInFlightSend(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "too late")

	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	conn := f.adapter.conn(0)
	release := make(chan struct{})
	conn.mu.Lock()
	conn.block = release
	conn.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		_, err := f.router.SendText(context.Background(), "hello")
		errCh <- err
	}()

	// Let the send reach the connection, then close out from under it.
	waitFor(t, func() bool {
		text, _, _ := conn.calls()
		return text == 1
	})
	f.router.Close(context.Background())
	close(release)

	if err := <-errCh; !domain.IsNotActive(err) {
		t.Fatalf("in-flight send error = %v, want not-active error", err)
	}
	if turns := f.router.CurrentSession().Turns; len(turns) != 0 {
		t.Errorf("discarded send recorded %d turns, want 0", len(turns))
	}
}

func TestConcurrentInitializeRejectedBusy(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")
	release := make(chan struct{})
	f.adapter.blockConnect = release
	f.adapter.started = make(chan struct{}, 1)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.router.Initialize(context.Background(), validInit())
		firstDone <- err
	}()
	<-f.adapter.started

	_, err := f.router.Initialize(context.Background(), validInit())
	if !domain.IsBusy(err) {
		t.Fatalf("second Initialize() error = %v, want busy error", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Initialize() error: %v", err)
	}
}

func TestStartNewSessionMintsFreshID(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")

	first := f.router.CurrentSession().SessionID
	second := f.router.StartNewSession()
	if second == first {
		t.Error("StartNewSession() returned the previous session id")
	}
	if turns := f.router.CurrentSession().Turns; len(turns) != 0 {
		t.Errorf("fresh session has %d turns, want 0", len(turns))
	}
}

func TestInitializeRejectsUnknownModel(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")
	f.selector.Update(domain.ProviderGemini, "gpt-4o")

	_, err := f.router.Initialize(context.Background(), validInit())
	if !domain.IsInvalidModel(err) {
		t.Fatalf("Initialize() error = %v, want invalid-model error", err)
	}
	if f.adapter.calls() != 0 {
		t.Error("unknown model still contacted the adapter")
	}
}

func TestProviderSlotsAreIndependent(t *testing.T) {
	caps, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("capabilities.NewRegistry() error: %v", err)
	}

	geminiAdapter := &fakeAdapter{provider: domain.ProviderGemini, reply: "from gemini"}
	openaiAdapter := &fakeAdapter{provider: domain.ProviderOpenAI, reply: "from openai"}
	registry := NewRegistry()
	selector := NewSelector(domain.ProviderGemini, "")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sup := NewSupervisor(registry, NopNotifier{}, logger, 3, 5*time.Millisecond)
	router := NewRouter(registry,
		map[domain.Provider]Adapter{
			domain.ProviderGemini: geminiAdapter,
			domain.ProviderOpenAI: openaiAdapter,
		},
		caps, NewLog(), selector, NopNotifier{}, sup, logger, time.Second)

	if _, err := router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize(gemini) error: %v", err)
	}

	// Switch providers and initialize the other slot.
	selector.Update(domain.ProviderOpenAI, "")
	if _, err := router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize(openai) error: %v", err)
	}

	// Switching back finds the gemini session where it was left.
	selector.Update(domain.ProviderGemini, "")
	reply, err := router.SendText(context.Background(), "still there?")
	if err != nil {
		t.Fatalf("SendText() after switch error: %v", err)
	}
	if reply != "from gemini" {
		t.Errorf("SendText() = %q, want %q", reply, "from gemini")
	}
}

func TestSendTimeoutIsNetworkError(t *testing.T) {
	f := newFixture(t, domain.ProviderGemini, "hi")
	f.router.timeout = 20 * time.Millisecond

	if _, err := f.router.Initialize(context.Background(), validInit()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	conn := f.adapter.conn(0)
	conn.mu.Lock()
	conn.block = make(chan struct{}) // never released
	conn.mu.Unlock()

	_, err := f.router.SendText(context.Background(), "hello")
	if !domain.IsNetwork(err) {
		t.Fatalf("timed-out send error = %v, want network error", err)
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
