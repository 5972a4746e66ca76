// Package push manages the push registration of the local device and
// publishes push notifications.
//
// A Push owns two goroutines, both started by Run: the state machine, which
// processes Activate, Deactivate and platform token events one at a time,
// and the callback goroutine, which runs every delegate callback and every
// PublishAsync completion in the order they were produced.
package push

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/csw/ablypush"
)

const eventQueueMax = 16

type Push struct {
	executor ablypush.HTTPExecutor
	delegate RegistererDelegate
	platform Platform
	store    DeviceStore
	clientID string
	log      *log.Entry

	eventCh chan event

	// callbacks queued for the callback goroutine. The queue is unbounded
	// so the state machine never waits on a delegate that is itself
	// waiting to post an event.
	cbMu    sync.Mutex
	cbQueue []func()
	cbReady chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards state and device for readers; only the state machine writes.
	mu     sync.RWMutex
	state  State
	device LocalDevice

	// token sent by the registration in flight, nil when none is pending.
	// Owned by the state machine.
	registering ablypush.DeviceToken
}

type Option func(*Push)

func WithDelegate(d RegistererDelegate) Option {
	return func(p *Push) { p.delegate = d }
}

func WithPlatform(pl Platform) Option {
	return func(p *Push) { p.platform = pl }
}

func WithStore(s DeviceStore) Option {
	return func(p *Push) { p.store = s }
}

// WithClientID sets the client id the device is registered for.
func WithClientID(id string) Option {
	return func(p *Push) { p.clientID = id }
}

func WithLogger(entry *log.Entry) Option {
	return func(p *Push) { p.log = entry }
}

// New returns a Push using executor for all requests. The executor is
// shared, not owned. Nothing happens until Run is started.
func New(executor ablypush.HTTPExecutor, opts ...Option) (*Push, error) {
	if executor == nil {
		return nil, ablypush.InvalidArgumentf("http executor must not be nil")
	}
	p := &Push{
		executor: executor,
		store:    NewMemoryStore(),
		log:      log.WithField("component", "push"),
		eventCh:  make(chan event, eventQueueMax),
		cbReady:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	device, err := p.store.Load()
	if err != nil {
		p.log.WithError(err).Warn("Failed to load stored device, starting unregistered")
		device = LocalDevice{}
	}
	p.device = device
	if device.registered() {
		p.state = Registered
	}
	return p, nil
}

// Run processes events until ctx is cancelled or Close is called. It must
// be called exactly once.
func (p *Push) Run(ctx context.Context) {
	defer p.cancel()
	go p.runCallbacks()
	for {
		select {
		case ev := <-p.eventCh:
			p.handle(ev)
		case <-ctx.Done():
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// Close stops Run. Pending callbacks are dropped.
func (p *Push) Close() {
	p.cancel()
}

func (p *Push) runCallbacks() {
	for {
		select {
		case <-p.cbReady:
		case <-p.ctx.Done():
			return
		}
		p.cbMu.Lock()
		fns := p.cbQueue
		p.cbQueue = nil
		p.cbMu.Unlock()
		for _, fn := range fns {
			if p.ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}

// State returns the current registration state.
func (p *Push) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Device returns a snapshot of the local device.
func (p *Push) Device() LocalDevice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d := p.device
	d.Token = append(ablypush.DeviceToken(nil), p.device.Token...)
	return d
}

// Publish sends payload to recipient. Errors from the executor are returned
// unchanged.
func (p *Push) Publish(ctx context.Context, recipient ablypush.Recipient, payload map[string]interface{}) error {
	req, err := ablypush.MakePublish(recipient, payload)
	if err != nil {
		return err
	}
	if _, err := p.executor.Execute(ctx, req); err != nil {
		p.log.WithError(err).Debug("Publish failed")
		return err
	}
	return nil
}

// PublishAsync is Publish with the result delivered to done on the callback
// goroutine. done may be nil.
func (p *Push) PublishAsync(recipient ablypush.Recipient, payload map[string]interface{}, done func(error)) {
	go func() {
		err := p.Publish(p.ctx, recipient, payload)
		if done != nil {
			p.callback(func() { done(err) })
		}
	}()
}

// Activate registers the device for push. The outcome is reported through
// the delegate's ActivateCallback.
func (p *Push) Activate() {
	p.post(activateEvent{})
}

// Deactivate removes the device registration. The outcome is reported
// through the delegate's DeactivateCallback.
func (p *Push) Deactivate() {
	p.post(deactivateEvent{})
}

// DidRegisterForRemoteNotifications hands over the token issued by the
// platform push service.
func (p *Push) DidRegisterForRemoteNotifications(token []byte) {
	p.post(gotTokenEvent{token: append(ablypush.DeviceToken(nil), token...)})
}

// DidFailToRegisterForRemoteNotifications reports that the platform could
// not issue a token.
func (p *Push) DidFailToRegisterForRemoteNotifications(err error) {
	p.post(tokenFailedEvent{err: err})
}

func (p *Push) post(ev event) {
	select {
	case p.eventCh <- ev:
	case <-p.ctx.Done():
		p.log.WithField("event", ev).Debug("Dropping event after close")
	}
}

func (p *Push) callback(fn func()) {
	p.cbMu.Lock()
	p.cbQueue = append(p.cbQueue, fn)
	p.cbMu.Unlock()
	select {
	case p.cbReady <- struct{}{}:
	default:
	}
}
