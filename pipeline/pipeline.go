// Package pipeline models the per-connection handler chain a wsupgrade
// Upgrader rewires from plain HTTP framing to WebSocket framing once a
// handshake succeeds. Grounded on the ordered-handler-chain shape of
// ice-blockchain-subzero's WS adapters (server/ws/internal/adapters), and
// on the "addHandler returns a Future" convention netloop's virtualtime
// package supplies throughout.
package pipeline

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/joeycumines/netloop/virtualtime"
)

// Handler is one link in a Channel's Pipeline. Handlers are installed in
// order and, conventionally, process inbound frames in that order and
// outbound frames in reverse.
type Handler interface {
	// Name identifies the handler for logging and duplicate-detection.
	Name() string
}

// Pipeline is the ordered chain of Handlers attached to a Channel.
type Pipeline struct {
	mu       sync.Mutex
	handlers []Handler
}

// AddHandler appends h to the chain. It returns a Future so callers can
// await installation the same way they await any other loop-scheduled
// work, even though today's implementation completes synchronously.
func (p *Pipeline) AddHandler(h Handler) *virtualtime.Future[struct{}] {
	p.mu.Lock()
	p.handlers = append(p.handlers, h)
	p.mu.Unlock()
	return virtualtime.Succeeded(struct{}{})
}

// Handlers returns a snapshot of the current chain, in installation order.
func (p *Pipeline) Handlers() []Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Handler, len(p.handlers))
	copy(out, p.handlers)
	return out
}

// Has reports whether a handler with the given name is already installed.
func (p *Pipeline) Has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handlers {
		if h.Name() == name {
			return true
		}
	}
	return false
}

// Channel wraps a single accepted connection together with the Pipeline
// that decides how bytes read from it are framed and dispatched. It starts
// life carrying plain HTTP framing; a successful Upgrader.Upgrade call
// installs the WebSocket frame handlers that replace it.
type Channel struct {
	ID       uuid.UUID
	Conn     net.Conn
	pipeline *Pipeline

	mu   sync.Mutex
	data map[string]any
}

// NewChannel wraps conn in a fresh Channel with an empty Pipeline and a new
// correlation id.
func NewChannel(conn net.Conn) *Channel {
	return &Channel{
		ID:       uuid.New(),
		Conn:     conn,
		pipeline: &Pipeline{},
		data:     make(map[string]any),
	}
}

// Pipeline returns the channel's handler chain.
func (c *Channel) Pipeline() *Pipeline {
	return c.pipeline
}

// Set stashes an arbitrary value on the channel, keyed by name. Used by
// handlers that need to carry state (e.g. the negotiated max frame size)
// without widening the Channel struct for every concern that needs it.
func (c *Channel) Set(key string, val any) {
	c.mu.Lock()
	c.data[key] = val
	c.mu.Unlock()
}

// Value retrieves a value previously stored with Set.
func (c *Channel) Value(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.Conn.Close()
}

// contextKey avoids collisions with values other packages stash in a
// context.Context alongside a Channel.
type contextKey struct{}

// WithChannel returns a context carrying ch, retrievable with ChannelFrom.
func WithChannel(ctx context.Context, ch *Channel) context.Context {
	return context.WithValue(ctx, contextKey{}, ch)
}

// ChannelFrom retrieves the Channel stashed by WithChannel, if any.
func ChannelFrom(ctx context.Context) (*Channel, bool) {
	ch, ok := ctx.Value(contextKey{}).(*Channel)
	return ch, ok
}
