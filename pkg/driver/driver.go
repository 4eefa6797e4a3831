// Package driver implements the CiA-309-gateway-shaped adaptor that joins
// playernsd on behalf of one simulated robot and exposes it to the hosting
// robotics middleware: the request dispatcher in gateway.go's BaseGateway
// (match-on-request-kind, delegate to the underlying transport, translate
// to a publish) is the direct model for Driver.Dispatch.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samsamfire/playernsd/internal/config"
	"github.com/samsamfire/playernsd/internal/fifo"
	"github.com/samsamfire/playernsd/pkg/client"

	"github.com/samsamfire/playernsd/internal/wire"
)

// MaxMessages is the receive queue's fixed capacity (spec.md §3, matching
// dev_nsdnet.h's MAX_MESSAGES).
const MaxMessages = 16384

// InboundMessage is one delivered message, queued until a consumer takes it
// (spec.md §3). Payload is owned by the queue until popped.
type InboundMessage struct {
	Timestamp time.Time
	Source    wire.ClientID
	Payload   []byte
}

// Config is the driver's construction-time configuration (spec.md §6):
// "read once at construction... Missing id ⇒ fatal initialization error."
type Config struct {
	ID   wire.ClientID // required
	Host string        // default "localhost"
	Port string        // default "9999"

	// Position2DAddr, if non-empty, is subscribed for position updates
	// forwarded as the "self.position" property (spec.md §4.6, §6).
	Position2DAddr Address

	// Origin, if non-nil, is the world-file pose/localization origin used
	// to rebase position2d updates (SPEC_FULL.md [DRIVER BRIDGE]).
	Origin *config.WorldOrigin

	Logger *slog.Logger
}

// Driver translates middleware requests/commands to Engine calls and Engine
// events to middleware publishes (spec.md §4.6). It exclusively owns the
// receive queue, the client-list view, and the property view (spec.md §3
// Ownership).
type Driver struct {
	cfg    Config
	engine *client.Engine
	mw     Middleware
	logger *slog.Logger

	mu         sync.Mutex
	clientList []wire.ClientID
	property   PropertyAck
	recvQueue  *fifo.RingBuffer[InboundMessage]
	greeted    bool            // true once the first Greeting -> Register has fired
	runCtx     context.Context // set by Run; drives auto-reconnect
	closing    bool            // true once Close has been called
}

// New builds a Driver. cfg.ID must be set; Host/Port default to
// "localhost"/"9999" if empty (spec.md §6).
func New(cfg Config, mw Middleware, opts ...client.Option) (*Driver, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("driver: id is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "9999"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Driver{
		cfg:       cfg,
		mw:        mw,
		logger:    cfg.Logger,
		recvQueue: fifo.NewRingBuffer[InboundMessage](MaxMessages, cfg.Logger),
	}
	allOpts := append([]client.Option{client.WithLogger(cfg.Logger)}, opts...)
	d.engine = client.NewEngine(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port), d, allOpts...)
	return d, nil
}

// Run connects the engine and subscribes to position updates if configured.
// It blocks until ctx is cancelled, auto-reconnecting (StateChanged) on any
// unplanned disconnect in the meantime, then closes and returns.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	d.runCtx = ctx
	d.mu.Unlock()

	if err := d.engine.Connect(ctx); err != nil {
		return fmt.Errorf("driver: connecting: %w", err)
	}
	if d.cfg.Position2DAddr != "" {
		if err := d.mw.Subscribe(d.cfg.Position2DAddr); err != nil {
			d.logger.Warn("driver: subscribing to position2d failed", "error", err)
		}
	}
	<-ctx.Done()
	return d.Close()
}

// Close shuts the engine down and suppresses any pending auto-reconnect.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	return d.engine.Close()
}

// autoReconnect retries Engine.Reconnect, paced by the engine's reconnect
// rate limiter (SPEC_FULL.md DOMAIN STACK: golang.org/x/time/rate), until it
// succeeds or ctx is done. Launched from StateChanged on an unplanned
// Disconnected transition.
func (d *Driver) autoReconnect(ctx context.Context) {
	for {
		if err := d.engine.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("driver: reconnect attempt failed", "error", err)
			continue
		}
		return
	}
}

// Dispatch is the request dispatcher of spec.md §4.6: it matches on the
// request's Subtype and translates to exactly one Engine call plus, where
// the subtype expects one, a reply.
func (d *Driver) Dispatch(req Request) (Response, error) {
	switch req.Subtype {
	case SubtypeReqListClients:
		ids, err := d.engine.RequestClientList()
		if err != nil {
			return Response{}, err
		}
		return Response{ClientList: ids}, nil

	case SubtypeCmdSend:
		if req.Binary != nil {
			return Response{}, d.engine.SendBinary(req.Target, req.Binary)
		}
		return Response{}, d.engine.Send(req.Target, req.Text)

	case SubtypeReqPropGet:
		if req.Key == "self.id" {
			// Short-circuit (spec.md §4.6, invariant 5): never touches the
			// wire.
			return Response{Property: PropertyAck{
				Key:        "self.id",
				Value:      d.cfg.ID,
				ValueCount: len(d.cfg.ID),
			}}, nil
		}
		pv, err := d.engine.PropertyGet(req.Key)
		if err != nil {
			return Response{}, err
		}
		return Response{Property: PropertyAck{
			Key:        pv.Key,
			Value:      pv.Value,
			ValueCount: len(pv.Value),
		}}, nil

	case SubtypeReqPropSet, SubtypeCmdPropSet:
		return Response{}, d.engine.PropertySet(req.Key, req.Value)

	case SubtypeDataPosition2D:
		d.forwardPosition(req.Position)
		return Response{}, nil

	default:
		return Response{}, fmt.Errorf("driver: unsupported request subtype %s", req.Subtype)
	}
}

// RequestIP restores the original implementation's RequestIP surface
// (SPEC_FULL.md [CLIENT ENGINE]/[DRIVER BRIDGE]), exposed as a second
// passthrough request kind alongside Dispatch. It is a convenience, not
// required by any invariant.
func (d *Driver) RequestIP(target wire.ClientID) (PropertyAck, error) {
	pv, err := d.engine.RequestIP(target)
	if err != nil {
		return PropertyAck{}, err
	}
	return PropertyAck{Key: pv.Key, Value: pv.Value, ValueCount: len(pv.Value)}, nil
}

func (d *Driver) forwardPosition(p Position2D) {
	rebased := p
	if d.cfg.Origin != nil {
		rebased = rebase(p, d.cfg.Origin.LocalizationOrigin)
	}
	if err := d.engine.PropertySet("self.position", formatPosition(rebased)); err != nil {
		d.logger.Warn("driver: forwarding position failed", "error", err)
	}
}

// --- client.Handler implementation: engine events -> middleware publishes ---

// StateChanged reacts to engine transitions (spec.md §4.6 "On engine
// callbacks"): the *first* entry into Greeting triggers Register with the
// configured id. A clientidinuse error also re-enters Greeting (see
// onServerError), but that re-entry must not re-register with the same
// stale id here — ErrorRaised fires right after with the mutated id, and
// it alone drives the retry Register call.
func (d *Driver) StateChanged(state client.ConnectionState) {
	switch state {
	case client.Greeting:
		d.mu.Lock()
		first := !d.greeted
		d.greeted = true
		d.mu.Unlock()
		if !first {
			return
		}
		if err := d.engine.Register(d.cfg.ID); err != nil {
			d.logger.Error("driver: registering failed", "id", d.cfg.ID, "error", err)
		}
	case client.Registered:
		d.logger.Info("driver: registered with playernsd", "id", d.cfg.ID)
	case client.Disconnected:
		// A fresh Connect/Reconnect produces a fresh Greeting that must
		// register again.
		d.mu.Lock()
		d.greeted = false
		runCtx, closing := d.runCtx, d.closing
		d.mu.Unlock()
		// Only auto-reconnect on an unplanned disconnect while Run is still
		// active; a deliberate Close (or Run's own ctx cancellation) must
		// not spawn a reconnect loop behind the caller's back.
		if !closing && runCtx != nil && runCtx.Err() == nil {
			d.logger.Warn("driver: connection lost, reconnecting")
			go d.autoReconnect(runCtx)
		}
	}
}

// ErrorRaised reacts to server errors (spec.md §4.6): a clientidinuse error
// appends "_" to the last attempted id and re-registers, retrying
// indefinitely until a free name is found; every other kind is logged.
func (d *Driver) ErrorRaised(kind wire.ServerError, detail string) {
	if kind != wire.ErrClientIDInUse {
		d.logger.Warn("driver: server error", "kind", kind, "detail", detail)
		return
	}
	d.mu.Lock()
	d.cfg.ID += "_"
	retryID := d.cfg.ID
	d.mu.Unlock()

	d.logger.Warn("driver: client id in use, retrying", "id", retryID)
	if err := d.engine.Register(retryID); err != nil {
		d.logger.Error("driver: re-registering failed", "id", retryID, "error", err)
	}
}

// ReceiveText stages an inbound text message and publishes it to
// middleware subscribers (spec.md §4.6).
func (d *Driver) ReceiveText(source wire.ClientID, body string) {
	d.receive(source, []byte(body))
}

// ReceiveBinary stages an inbound binary message and publishes it.
func (d *Driver) ReceiveBinary(source wire.ClientID, payload []byte) {
	d.receive(source, payload)
}

func (d *Driver) receive(source wire.ClientID, payload []byte) {
	msg := InboundMessage{Timestamp: time.Now(), Source: source, Payload: payload}
	d.recvQueue.Push(msg)
	if err := d.mw.Publish(d.ownAddr(), SubtypeDataRecv, payload); err != nil {
		d.logger.Warn("driver: publishing received message failed", "error", err)
	}
}

// ClientListResponse and PropertyValue record every reply in the bridge's
// own views (spec.md §3 PropertyView/ClientListView), independently of
// Dispatch's rendezvous. The views are internal to Driver; no method
// exports them.
func (d *Driver) ClientListResponse(ids []wire.ClientID) {
	d.mu.Lock()
	d.clientList = append([]wire.ClientID(nil), ids...)
	d.mu.Unlock()
}

func (d *Driver) PropertyValue(key, value string) {
	d.mu.Lock()
	d.property = PropertyAck{Key: key, Value: value, ValueCount: len(value)}
	d.mu.Unlock()
}

func (d *Driver) ownAddr() Address {
	return Address(d.cfg.ID)
}

// PopMessage returns and removes the oldest queued inbound message, if any.
func (d *Driver) PopMessage() (InboundMessage, bool) {
	return d.recvQueue.Pop()
}
