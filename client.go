package bayeux

import (
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// HandshakeRetryInterval is the default delay between handshake attempts
	// while the server is unreachable or refusing the handshake
	HandshakeRetryInterval = 5 * time.Second
	// ConnectFailureThreshold is the default number of failed connect
	// requests tolerated before the client falls back to a fresh handshake
	ConnectFailureThreshold = 3
)

// MessengerService is the minimal capability contract a consumer of the
// client depends on. Destroy is additionally provided by Client for process
// shutdown.
type MessengerService interface {
	Start()
	Stop()
	Register(channel Channel, listener Listener)
	Deregister(channel Channel, listener Listener)
}

// Options collects the configurable pieces of a Client
type Options struct {
	Logger                  Logger
	HTTPClient              *http.Client
	Transport               http.RoundTripper
	HandshakeRetryInterval  time.Duration
	ConnectFailureThreshold int
}

// Option mutates Options during NewClient
type Option func(*Options)

// WithLogger configures the client to log through the given Logger
func WithLogger(logger Logger) Option {
	return func(options *Options) {
		options.Logger = logger
	}
}

// WithHTTPClient supplies a fully formed HTTP client, e.g. one with custom
// cookie handling
func WithHTTPClient(client *http.Client) Option {
	return func(options *Options) {
		options.HTTPClient = client
	}
}

// WithHTTPTransport supplies a transport for the default HTTP client. It is
// ignored when WithHTTPClient is also given.
func WithHTTPTransport(transport http.RoundTripper) Option {
	return func(options *Options) {
		options.Transport = transport
	}
}

// WithHandshakeRetryInterval overrides HandshakeRetryInterval
func WithHandshakeRetryInterval(d time.Duration) Option {
	return func(options *Options) {
		options.HandshakeRetryInterval = d
	}
}

// WithConnectFailureThreshold overrides ConnectFailureThreshold
func WithConnectFailureThreshold(n int) Option {
	return func(options *Options) {
		options.ConnectFailureThreshold = n
	}
}

// Client maintains a logical session with a Bayeux server over repeated
// HTTP long-polling exchanges. It sequences the handshake, connect
// heartbeat, disconnect and subscribe/unsubscribe requests, recovers from
// transient failures by retrying indefinitely while started, and lets
// application code register listeners against named channels.
//
// All public operations may be called concurrently from any goroutine.
type Client struct {
	logger   Logger
	sender   *MessageSender
	receiver *MessageReceiver
	loop     *eventLoop

	handshakeRetryInterval  time.Duration
	connectFailureThreshold int

	// mu serializes every read and write of session state. Public entry
	// points acquire it; internal handlers (the *Locked methods) assume it
	// is held, so nothing here ever needs to re-acquire it.
	mu            sync.Mutex
	state         sessionState
	subscriptions map[Channel]struct{}
	timer         *scheduledTask
}

// NewClient initializes a Client for the server at serverAddress
func NewClient(serverAddress string, opts ...Option) (*Client, error) {
	options := &Options{
		HandshakeRetryInterval:  HandshakeRetryInterval,
		ConnectFailureThreshold: ConnectFailureThreshold,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = &wrappedFieldLogger{logrus.New()}
	}
	if options.HTTPClient == nil {
		var err error
		if options.HTTPClient, err = defaultHTTPClient(options.Transport); err != nil {
			return nil, err
		}
	}

	loop := newEventLoop(options.Logger)
	receiver := NewMessageReceiver(options.Logger)
	sender, err := NewMessageSender(options.HTTPClient, serverAddress, receiver, loop, options.Logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		logger:                  options.Logger,
		sender:                  sender,
		receiver:                receiver,
		loop:                    loop,
		handshakeRetryInterval:  options.HandshakeRetryInterval,
		connectFailureThreshold: options.ConnectFailureThreshold,
		subscriptions:           make(map[Channel]struct{}),
	}

	receiver.Register(MetaHandshake, ListenerFunc(c.handleHandshake))
	receiver.Register(MetaConnect, ListenerFunc(c.handleConnect))
	receiver.Register(MetaDisconnect, ListenerFunc(c.handleDisconnect))

	return c, nil
}

// Start begins the session. The event loop is spawned lazily on the first
// call; a handshake request is issued immediately. Calling Start on a
// started client is a logged no-op.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.destroyed {
		c.logger.Warn("client is destroyed, ignoring start")
		return
	}
	if c.state.started {
		c.logger.Info("client already running")
		return
	}
	c.state.started = true
	c.state.everStarted = true
	c.state.connected = false
	c.loop.EnsureRunning()
	c.sender.Handshake(c.handshakeError)
}

// Stop ends the session by canceling any pending retry and issuing a
// disconnect request. The event loop keeps running so the client can be
// started again. Calling Stop on a stopped client is a logged no-op.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.started {
		c.logger.Info("client not running")
		return
	}
	c.state.handshaken = false
	c.state.started = false
	c.state.retryConnectCount = 0
	c.cancelTimerLocked()
	c.sender.Disconnect(c.disconnectError)
}

// Destroy permanently shuts the client down. While connected it issues a
// disconnect first and stops the event loop once the disconnect resolves;
// with a disconnect already pending it waits for that response; otherwise
// the loop stops immediately. Safe to call repeatedly, before or after
// Start.
func (c *Client) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.destroyed = true
	if !c.loop.Running() {
		return
	}
	switch {
	case c.state.started && c.state.connected:
		c.sender.Disconnect(c.disconnectError)
	case !c.state.started && c.state.connected:
		// A disconnect is already in flight; its callback stops the loop
	default:
		c.stopLoopLocked()
	}
}

// Register adds a listener for a channel. If the session is already
// handshaken and this is the channel's first listener, a subscribe request
// goes out immediately; otherwise the channel is recorded and subscribed
// once the next handshake completes.
func (c *Client) Register(channel Channel, listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.handshaken {
		if _, ok := c.subscriptions[channel]; !ok {
			c.subscriptions[channel] = struct{}{}
			if c.state.started {
				c.sender.Subscribe(channel, c.subscribeError)
			}
		}
	} else {
		// Not connected yet; the subscription set is replayed after the
		// handshake succeeds
		c.subscriptions[channel] = struct{}{}
	}
	c.receiver.Register(channel, listener)
}

// Deregister removes a listener for a channel. Removing the last listener
// drops the channel from the subscription set and, while started, sends an
// unsubscribe request. Unknown pairs are a logged no-op.
func (c *Client) Deregister(channel Channel, listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiver.Deregister(channel, listener) != 0 {
		return
	}
	if _, ok := c.subscriptions[channel]; !ok {
		c.logger.Info("channel has no subscription to release", "channel", channel)
		return
	}
	delete(c.subscriptions, channel)
	if c.state.started {
		c.sender.Unsubscribe(channel, c.unsubscribeError)
	}
}

// State reports the client's composed protocol state
func (c *Client) State() StateRepresentation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.representation()
}

// Subscriptions returns the channels currently in the subscription set
func (c *Client) Subscriptions() []Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]Channel, 0, len(c.subscriptions))
	for channel := range c.subscriptions {
		channels = append(channels, channel)
	}
	return channels
}

// handleHandshake processes /meta/handshake responses. On success it
// captures the client id, starts the connect loop and replays every pending
// subscription; on a protocol-level failure it schedules another handshake.
// Responses arriving after Stop or Destroy are ignored so a stale in-flight
// exchange cannot revive the session.
func (c *Client) handleHandshake(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("handshake response", "successful", m.Successful)
	if !c.state.started || c.state.destroyed {
		return
	}
	if m.Successful {
		c.state.handshaken = true
		c.sender.SetClientID(m.ClientID)
		c.sender.Connect(c.connectError)
		for channel := range c.subscriptions {
			c.sender.Subscribe(channel, c.subscribeError)
		}
	} else {
		c.state.handshaken = false
		c.scheduleLocked(c.handshakeRetryInterval, func() {
			c.sender.Handshake(c.handshakeError)
		})
	}
}

func (c *Client) handshakeError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.started || c.state.destroyed {
		return
	}
	c.logger.WithError(err).Warn("error sending handshake request, retrying", "interval", c.handshakeRetryInterval)
	c.state.handshaken = false
	c.scheduleLocked(c.handshakeRetryInterval, func() {
		c.sender.Handshake(c.handshakeError)
	})
}

// handleConnect processes /meta/connect responses. Each successful response
// resets the failure counter, adopts any advised interval and schedules the
// next connect, so the exchange doubles as the session heartbeat.
func (c *Client) handleConnect(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("connect response", "successful", m.Successful)
	if !c.state.started || c.state.destroyed {
		return
	}
	if !m.Successful {
		// A rejected connect goes through the same recovery ladder as a
		// transport failure
		c.connectFailureLocked()
		return
	}
	c.state.retryConnectCount = 0
	c.state.connected = true
	if m.Advice != nil && m.Advice.Interval > 0 {
		c.state.connectInterval = m.Advice.IntervalAsDuration()
	}
	c.scheduleLocked(c.state.connectInterval, func() {
		c.sender.Connect(c.connectError)
	})
}

func (c *Client) connectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.started || c.state.destroyed {
		return
	}
	c.logger.WithError(err).Debug("connect request failed")
	c.connectFailureLocked()
}

func (c *Client) connectFailureLocked() {
	c.state.retryConnectCount++
	c.state.connected = false
	if c.state.retryConnectCount < c.connectFailureThreshold {
		c.logger.Warn("trying to reconnect", "attempt", c.state.retryConnectCount)
		c.scheduleLocked(c.state.connectInterval, func() {
			c.sender.Connect(c.connectError)
		})
		return
	}
	// The session is lost; start over from a fresh handshake
	c.logger.Warn("failed trying to reconnect, resending handshake request")
	c.state.handshaken = false
	c.state.retryConnectCount = 0
	c.sender.Handshake(c.handshakeError)
}

func (c *Client) handleDisconnect(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("disconnect response", "successful", m.Successful)
	c.state.connected = false
	if c.state.destroyed {
		c.stopLoopLocked()
	}
}

func (c *Client) disconnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.WithError(err).Debug("disconnect request failed")
	c.state.connected = false
	if c.state.destroyed {
		c.stopLoopLocked()
	}
}

func (c *Client) subscribeError(err error) {
	c.logger.WithError(err).Warn("error sending subscribe request")
}

func (c *Client) unsubscribeError(err error) {
	c.logger.WithError(err).Warn("error sending unsubscribe request")
}

// scheduleLocked replaces the single pending retry/heartbeat timer. The
// stale timer, if any, is canceled first so it cannot fire spuriously.
func (c *Client) scheduleLocked(d time.Duration, fn func()) {
	c.cancelTimerLocked()
	c.timer = c.loop.Schedule(d, fn)
}

func (c *Client) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
}

func (c *Client) stopLoopLocked() {
	c.logger.Info("stopping event loop")
	c.cancelTimerLocked()
	c.loop.Stop()
}
