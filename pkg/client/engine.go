// Package client implements the dual-loop engine that owns the TCP
// connection to playernsd: the wire-level state machine, the send queue,
// and the rendezvous layer that lets a synchronous caller await an
// asynchronous reply.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/samsamfire/playernsd/internal/wire"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithDialTimeout overrides the per-address dial timeout (default 5s).
func WithDialTimeout(d time.Duration) Option {
	return func(e *Engine) { e.dialTimeout = d }
}

// WithReconnectLimiter overrides the rate limiter guarding Reconnect, so a
// repeatedly failing connection doesn't hammer the daemon (SPEC_FULL.md
// DOMAIN STACK: golang.org/x/time/rate).
func WithReconnectLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// Engine owns the socket, the connection state machine, the send queue, and
// the rendezvous layer (spec.md §3 Ownership, §4.3).
type Engine struct {
	addr        string
	dialTimeout time.Duration
	handler     Handler
	logger      *slog.Logger
	limiter     *rate.Limiter

	mu    sync.Mutex
	state ConnectionState
	conn  net.Conn

	scanner *wire.Scanner
	sendQ   *sendQueue

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	listRendezvous *rendezvous[[]wire.ClientID]
	propRendezvous *rendezvous[PropertyView]
}

// NewEngine builds an Engine for the given "host:port" address. handler
// must not be nil.
func NewEngine(addr string, handler Handler, opts ...Option) *Engine {
	if handler == nil {
		panic("client: handler must not be nil")
	}
	e := &Engine{
		addr:           addr,
		dialTimeout:    5 * time.Second,
		handler:        handler,
		logger:         slog.Default(),
		limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		sendQ:          newSendQueue(),
		listRendezvous: newRendezvous[[]wire.ClientID](),
		propRendezvous: newRendezvous[PropertyView](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Context returns a context cancelled when Close is called. It is nil
// before the first successful Connect.
func (e *Engine) Context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// transition moves the engine to state s, calling handler.StateChanged
// exactly once (spec.md §4.3: "On every transition the engine calls
// handler.StateChanged exactly once"). A no-op transition to the already-
// current state is suppressed. Entering Disconnected wakes any outstanding
// rendezvous waiters with a failure (spec.md §4.4 cancellation).
func (e *Engine) transition(s ConnectionState) {
	e.mu.Lock()
	if e.state == s {
		e.mu.Unlock()
		return
	}
	e.state = s
	e.mu.Unlock()

	e.handler.StateChanged(s)
	if s == Disconnected {
		e.listRendezvous.abort()
		e.propRendezvous.abort()
	}
}

// Connect resolves addr, dials each resolved endpoint in order until one
// succeeds, and starts the reader and writer goroutines (spec.md §4.3
// "Connection"). It fails if the engine is not currently Disconnected.
func (e *Engine) Connect(ctx context.Context) error {
	if e.State() != Disconnected {
		return fmt.Errorf("%w: connect only valid when disconnected", ErrWrongState)
	}

	host, port, err := net.SplitHostPort(e.addr)
	if err != nil {
		return fmt.Errorf("client: invalid address %q: %w", e.addr, err)
	}

	ipAddrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("client: resolving %q: %w", host, err)
	}

	var conn net.Conn
	var dialErr error
	for _, ip := range ipAddrs {
		d := net.Dialer{Timeout: e.dialTimeout}
		conn, dialErr = d.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), port))
		if dialErr == nil {
			break
		}
		e.logger.Warn("client: dial attempt failed", "addr", ip.String(), "error", dialErr)
	}
	if conn == nil {
		return fmt.Errorf("client: connecting to %q: %w", e.addr, dialErr)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.conn = conn
	e.scanner = wire.NewScanner(conn)
	e.ctx, e.cancel = loopCtx, cancel
	e.mu.Unlock()

	e.wg.Add(2)
	go e.readLoop()
	go e.writeLoop()

	e.transition(Connected)
	return nil
}

// Reconnect waits for the reconnect rate limiter before calling Connect,
// preventing a hot connect-fail loop from hammering the daemon.
func (e *Engine) Reconnect(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	return e.Connect(ctx)
}

// Register sends the client's greeting and moves to WaitingRegistration.
// Valid only in the Greeting state (spec.md §4.3).
func (e *Engine) Register(id wire.ClientID) error {
	if e.State() != Greeting {
		return fmt.Errorf("%w: register only valid in greeting state", ErrWrongState)
	}
	e.sendQ.push(wire.EncodeGreetings(id))
	e.transition(WaitingRegistration)
	return nil
}

// Send enqueues a text message, targeted or broadcast if target is empty.
func (e *Engine) Send(target wire.ClientID, body string) error {
	if e.State() != Registered {
		return fmt.Errorf("%w: send only valid once registered", ErrWrongState)
	}
	e.sendQ.push(wire.EncodeMsgText(target, body))
	return nil
}

// SendBinary enqueues a binary message, targeted or broadcast if target is
// empty.
func (e *Engine) SendBinary(target wire.ClientID, payload []byte) error {
	if e.State() != Registered {
		return fmt.Errorf("%w: send only valid once registered", ErrWrongState)
	}
	e.sendQ.push(wire.EncodeMsgBin(target, payload))
	return nil
}

// PropertySet enqueues a property-set command. There is no acknowledgement
// (spec.md §4.6: "CMD property-set → engine.PropertySet(key, value); no ack").
func (e *Engine) PropertySet(key, value string) error {
	if e.State() != Registered {
		return fmt.Errorf("%w: propertyset only valid once registered", ErrWrongState)
	}
	e.sendQ.push(wire.EncodePropSet(key, value))
	return nil
}

// PropertyGet requests key and blocks until the matching propval reply
// arrives or the connection is lost (spec.md §4.4 rendezvous).
func (e *Engine) PropertyGet(key string) (PropertyView, error) {
	reqID := uuid.NewString()
	e.logger.Debug("client: propertyget request", "reqID", reqID, "key", key)
	return e.propRendezvous.Do(func() error {
		if e.State() != Registered {
			return fmt.Errorf("%w: propertyget only valid once registered", ErrWrongState)
		}
		e.sendQ.push(wire.EncodePropGet(key))
		return nil
	})
}

// RequestIP maps to the daemon's per-client IP lookup convention
// (propget "<target>.ip"), restored from the original implementation's
// RequestIP surface (SPEC_FULL.md [CLIENT ENGINE]). It is not required by
// any invariant; callers that don't need it can ignore it.
func (e *Engine) RequestIP(target wire.ClientID) (PropertyView, error) {
	return e.PropertyGet(target + ".ip")
}

// RequestClientList requests the current client list and blocks until the
// matching listclients reply arrives or the connection is lost.
func (e *Engine) RequestClientList() ([]wire.ClientID, error) {
	reqID := uuid.NewString()
	e.logger.Debug("client: requestclientlist request", "reqID", reqID)
	return e.listRendezvous.Do(func() error {
		if e.State() != Registered {
			return fmt.Errorf("%w: requestclientlist only valid once registered", ErrWrongState)
		}
		e.sendQ.push(wire.EncodeListClients())
		return nil
	})
}

// Close interrupts both loops, best-effort writes bye, and closes the
// socket. Idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		conn := e.conn
		cancel := e.cancel
		e.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		e.sendQ.close()

		if conn != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_, _ = conn.Write(wire.EncodeBye())
			_ = conn.Close()
		}
		e.wg.Wait()
		e.transition(Disconnected)
	})
	return nil
}

func (e *Engine) readLoop() {
	defer e.wg.Done()
	for {
		line, err := e.scanner.ReadLine()
		if err != nil {
			if errors.Is(err, wire.ErrEmptyLine) {
				e.logger.Warn("client: empty line from server, ignoring")
				continue
			}
			e.logger.Info("client: reader stopping", "error", err)
			e.transition(Disconnected)
			return
		}
		if err := e.handleLine(line); err != nil {
			e.logger.Error("client: fatal protocol error", "error", err, "line", line)
			e.transition(Disconnected)
			return
		}
	}
}

func (e *Engine) writeLoop() {
	defer e.wg.Done()
	for {
		frame, ok := e.sendQ.pop()
		if !ok {
			return
		}
		e.mu.Lock()
		conn := e.conn
		e.mu.Unlock()
		if conn == nil {
			return
		}
		if _, err := conn.Write(frame); err != nil {
			e.logger.Info("client: writer stopping", "error", err)
			e.transition(Disconnected)
			return
		}
	}
}

func (e *Engine) handleLine(line string) error {
	h, err := wire.ParseHeader(line)
	if err != nil {
		return nil
	}

	switch h.Command {
	case wire.CmdGreetings:
		return e.onGreetings(h)
	case wire.CmdRegistered:
		return e.onRegistered()
	case wire.CmdPing:
		e.sendQ.push(wire.EncodePong())
		return nil
	case wire.CmdListClients:
		ids := wire.ParseListClients(h)
		e.listRendezvous.fulfill(ids)
		e.handler.ClientListResponse(ids)
		return nil
	case wire.CmdMsgText:
		return e.onMsgText(h, line)
	case wire.CmdMsgBin:
		return e.onMsgBin(h)
	case wire.CmdPropVal:
		return e.onPropVal(h, line)
	case wire.CmdError:
		return e.onServerError(wire.ParseServerError(h))
	default:
		e.logger.Warn("client: unrecognized line", "line", line)
		return nil
	}
}

func (e *Engine) onGreetings(h wire.Header) error {
	g, err := wire.ParseGreeting(h)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedFrame, err)
	}
	if g.Version != wire.ProtocolVersion {
		return fmt.Errorf("%w: got %q want %q", ErrIncompatibleProtocol, g.Version, wire.ProtocolVersion)
	}
	if e.State() != Connected {
		return fmt.Errorf("%w: greetings received in state %s", ErrUnexpectedCommand, e.State())
	}
	e.transition(Greeting)
	return nil
}

func (e *Engine) onRegistered() error {
	if e.State() != WaitingRegistration {
		return fmt.Errorf("%w: registered received in state %s", ErrUnexpectedCommand, e.State())
	}
	e.transition(Registered)
	return nil
}

func (e *Engine) onMsgText(h wire.Header, line string) error {
	mt, err := wire.ParseMsgText(h)
	if err != nil {
		e.logger.Warn("client: malformed msgtext header", "line", line)
		return nil
	}
	body, err := e.scanner.ReadLine()
	if err != nil {
		return fmt.Errorf("client: reading msgtext body: %w", err)
	}
	e.handler.ReceiveText(mt.Source, body)
	return nil
}

func (e *Engine) onMsgBin(h wire.Header) error {
	mb, err := wire.ParseMsgBin(h)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedFrame, err)
	}
	payload, err := e.scanner.ReadExact(mb.Length)
	if err != nil {
		return fmt.Errorf("client: reading msgbin payload: %w", err)
	}
	e.handler.ReceiveBinary(mb.Source, payload)
	return nil
}

func (e *Engine) onPropVal(h wire.Header, line string) error {
	pv, err := wire.ParsePropVal(h)
	if err != nil {
		e.logger.Warn("client: malformed propval line", "line", line)
		return nil
	}
	view := PropertyView{Key: pv.Key, Value: pv.Value}
	e.propRendezvous.fulfill(view)
	e.handler.PropertyValue(pv.Key, pv.Value)
	return nil
}

// onServerError implements the §4.3 error transitions: a clientidinuse error
// while WaitingRegistration falls back to Greeting; every other error is
// surfaced without a state change.
func (e *Engine) onServerError(se wire.ServerErrorLine) error {
	if e.State() == WaitingRegistration && se.Kind == wire.ErrClientIDInUse {
		e.transition(Greeting)
	}
	e.handler.ErrorRaised(se.Kind, se.Detail)
	return nil
}
