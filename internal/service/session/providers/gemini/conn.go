package gemini

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// Client → server frames.

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type setupMessage struct {
	Setup setupBody `json:"setup"`
}

type setupBody struct {
	Model             string           `json:"model"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Server → client frames.

type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`

	ServerContent *struct {
		ModelTurn *struct {
			Parts []part `json:"parts"`
		} `json:"modelTurn"`
		TurnComplete bool `json:"turnComplete"`
	} `json:"serverContent"`

	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// conn is one live bidirectional session. A single read pump aggregates
// model turn fragments until turnComplete and hands each finished reply to
// whichever send is waiting.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	replies  chan string
	setupAck chan error

	failOnce  sync.Once
	closeOnce sync.Once
	failed    chan struct{}
	failErr   error
	done      chan error

	setupPending   atomic.Bool
	manuallyClosed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:       ws,
		replies:  make(chan string, 8),
		setupAck: make(chan error, 1),
		failed:   make(chan struct{}),
		done:     make(chan error, 1),
	}
	c.setupPending.Store(true)
	go c.readLoop()
	return c
}

// setup sends the session configuration and waits for the server's ack.
func (c *conn) setup(ctx context.Context, modelID, systemPrompt string) error {
	msg := setupMessage{Setup: setupBody{
		Model:            "models/" + modelID,
		GenerationConfig: generationConfig{ResponseModalities: []string{"TEXT"}},
	}}
	if systemPrompt != "" {
		msg.Setup.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	if err := c.write(msg); err != nil {
		return err
	}

	select {
	case err := <-c.setupAck:
		c.setupPending.Store(false)
		return err
	case <-c.failed:
		return domain.WrapError(c.failErr, domain.KindNetwork, "realtime session failed during setup")
	case <-ctx.Done():
		return domain.NewError(domain.KindNetwork, "timed out waiting for the realtime session to start")
	case <-time.After(setupTimeout):
		return domain.NewError(domain.KindNetwork, "timed out waiting for the realtime session to start")
	}
}

func (c *conn) SendText(ctx context.Context, text string) (string, error) {
	msg := clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
		TurnComplete: true,
	}}
	if err := c.write(msg); err != nil {
		return "", err
	}
	return c.awaitReply(ctx)
}

// SendImage pushes the screenshot onto the live stream, then closes the
// user turn so the model replies to it.
func (c *conn) SendImage(ctx context.Context, imageB64 string) (string, error) {
	chunk := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{MimeType: "image/jpeg", Data: imageB64}},
	}}
	if err := c.write(chunk); err != nil {
		return "", err
	}
	prompt := clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: "Help me respond to what is on my screen."}}}},
		TurnComplete: true,
	}}
	if err := c.write(prompt); err != nil {
		return "", err
	}
	return c.awaitReply(ctx)
}

// SendAudio pushes one chunk fire-and-forget. The model speaks up when it
// has something to say; no reply means no conversation turn.
func (c *conn) SendAudio(ctx context.Context, audioB64, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/pcm;rate=24000"
	}
	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{MimeType: mimeType, Data: audioB64}},
	}}
	if err := c.write(msg); err != nil {
		return "", err
	}
	return "", nil
}

func (c *conn) Done() <-chan error { return c.done }

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.manuallyClosed.Store(true)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
	return nil
}

func (c *conn) write(msg any) error {
	select {
	case <-c.failed:
		return domain.WrapError(c.failErr, domain.KindNetwork, "realtime connection is down")
	default:
	}

	c.writeMu.Lock()
	err := c.ws.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.fail(domain.WrapError(err, domain.KindNetwork, "failed to send on the realtime connection"))
		return domain.WrapError(err, domain.KindNetwork, "failed to send on the realtime connection")
	}
	return nil
}

func (c *conn) awaitReply(ctx context.Context) (string, error) {
	select {
	case reply := <-c.replies:
		return reply, nil
	case <-c.failed:
		return "", domain.WrapError(c.failErr, domain.KindNetwork, "realtime connection lost while waiting for a reply")
	case <-ctx.Done():
		return "", domain.NewError(domain.KindNetwork, "timed out waiting for a reply")
	}
}

func (c *conn) readLoop() {
	var turn strings.Builder

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(domain.WrapError(err, domain.KindNetwork, "realtime connection lost"))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if msg.SetupComplete != nil {
			c.ackSetup(nil)
			continue
		}

		if msg.Error != nil {
			serr := classifyServerError(msg.Error.Message)
			if c.setupPending.Load() {
				c.ackSetup(serr)
				continue
			}
			c.fail(serr)
			return
		}

		if sc := msg.ServerContent; sc != nil {
			if sc.ModelTurn != nil {
				for _, p := range sc.ModelTurn.Parts {
					turn.WriteString(p.Text)
				}
			}
			if sc.TurnComplete {
				c.deliver(strings.TrimSpace(turn.String()))
				turn.Reset()
			}
		}
	}
}

func (c *conn) ackSetup(err error) {
	select {
	case c.setupAck <- err:
	default:
	}
}

// deliver hands a finished reply to a waiting send. Unsolicited turns keep
// for a while in the buffer; once it is full the oldest is dropped.
func (c *conn) deliver(text string) {
	if text == "" {
		return
	}
	for {
		select {
		case c.replies <- text:
			return
		default:
			select {
			case <-c.replies:
			default:
			}
		}
	}
}

// fail marks the connection dead exactly once. Manual closes and normal
// close frames do not surface a disconnect to the supervisor.
func (c *conn) fail(err error) {
	c.failOnce.Do(func() {
		c.failErr = err
		close(c.failed)
		_ = c.ws.Close()

		if c.manuallyClosed.Load() {
			return
		}
		c.done <- err
	})
}

// classifyServerError maps a server-reported error message onto the domain
// taxonomy. The realtime API reports both auth and model problems through
// the same error frame, distinguished only by text.
func classifyServerError(message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "api key") || strings.Contains(lower, "permission") || strings.Contains(lower, "unauthorized"):
		return domain.NewError(domain.KindAuth, message)
	case strings.Contains(lower, "model"):
		return domain.NewError(domain.KindInvalidModel, message)
	default:
		return domain.NewError(domain.KindBackend, message)
	}
}
