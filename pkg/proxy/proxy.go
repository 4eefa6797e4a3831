// Package proxy implements the client-side facade a user program talks to
// through the middleware device instead of owning an Engine directly,
// mirroring the teacher's HTTPGatewayClient: own state, own receive queue,
// thin per-operation methods each wrapping one round trip.
package proxy

import (
	"sync"
	"time"

	"github.com/samsamfire/playernsd/internal/fifo"
	"github.com/samsamfire/playernsd/internal/wire"
	"github.com/samsamfire/playernsd/pkg/client"
)

// MaxMessages is the proxy's own receive queue capacity (spec.md §3).
const MaxMessages = 16384

// Message is one message delivered to the proxy's consumer-side queue.
type Message struct {
	Timestamp time.Time
	Source    wire.ClientID
	Payload   []byte
}

// Proxy is a client-side wrapper owning its own receive queue, populated by
// the middleware's incoming data callback (spec.md §4.7). Every consumer
// operation acquires mu for the call's duration, exactly as §4.7 specifies;
// Deliver relies on the receive queue's own lock instead.
type Proxy struct {
	mu     sync.Mutex
	engine *client.Engine
	queue  *fifo.RingBuffer[Message]
}

// New wraps an already-constructed Engine. The caller owns connecting and
// registering it; Proxy only issues requests once Registered.
func New(engine *client.Engine) *Proxy {
	return &Proxy{
		engine: engine,
		queue:  fifo.NewRingBuffer[Message](MaxMessages, nil),
	}
}

// Deliver feeds one inbound message into the proxy's receive queue. It is
// the seam the middleware's incoming-data callback calls into (spec.md
// §4.7: "populated by the middleware's incoming data callback").
func (p *Proxy) Deliver(source wire.ClientID, payload []byte) {
	p.queue.Push(Message{Timestamp: time.Now(), Source: source, Payload: payload})
}

// SendMessage sends a text message, targeted or broadcast if target is
// empty.
func (p *Proxy) SendMessage(target wire.ClientID, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Send(target, body)
}

// SendBinaryMessage sends a binary message, targeted or broadcast if target
// is empty.
func (p *Proxy) SendBinaryMessage(target wire.ClientID, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.SendBinary(target, payload)
}

// ReceiveMessage returns and removes the oldest queued message, if any.
func (p *Proxy) ReceiveMessage() (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Pop()
}

// ReceiveMessageCount reports how many messages are currently queued.
func (p *Proxy) ReceiveMessageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// RequestProperty requests key's current value and returns it once the
// daemon replies. Every key is sent to the daemon, "self.id" included:
// Proxy talks to the engine directly, and the local "self.id" answer of
// pkg/driver's Dispatch does not apply to Proxy calls.
func (p *Proxy) RequestProperty(key string) (client.PropertyView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.PropertyGet(key)
}

// SetProperty sets key to value; there is no acknowledgement.
func (p *Proxy) SetProperty(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.PropertySet(key, value)
}

// RequestClientList requests and returns the current client list.
func (p *Proxy) RequestClientList() ([]wire.ClientID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.RequestClientList()
}

// GetProperty is an alias for RequestProperty, matching spec.md §4.7's
// "RequestProperty(key) / GetProperty" naming.
func (p *Proxy) GetProperty(key string) (client.PropertyView, error) {
	return p.RequestProperty(key)
}

// GetClientList is an alias for RequestClientList, matching spec.md §4.7's
// "RequestClientList / GetClientList" naming.
func (p *Proxy) GetClientList() ([]wire.ClientID, error) {
	return p.RequestClientList()
}
