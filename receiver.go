package bayeux

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
)

// Listener is notified of every Message delivered on a channel it is
// registered against.
type Listener interface {
	OnMessage(m Message)
}

// ListenerFunc adapts a plain function into a Listener. Every call returns a
// distinct handle; keep the returned value if you intend to deregister it
// later.
func ListenerFunc(fn func(Message)) Listener {
	return &listenerFunc{fn}
}

type listenerFunc struct {
	fn func(Message)
}

func (l *listenerFunc) OnMessage(m Message) {
	l.fn(m)
}

// MessageReceiver buffers inbound response bytes, decodes complete batches
// of messages, and fans them out to per-channel listener sets. It knows
// nothing of the protocol beyond the channel field.
type MessageReceiver struct {
	logger Logger

	lock      sync.RWMutex
	listeners map[Channel]map[Listener]struct{}

	// streamLock serializes whole response streams so fragments of two
	// concurrent bodies cannot interleave in the buffer
	streamLock sync.Mutex

	bufLock sync.Mutex
	buf     bytes.Buffer
}

// NewMessageReceiver initializes a MessageReceiver with no listeners
func NewMessageReceiver(logger Logger) *MessageReceiver {
	if logger == nil {
		logger = newNullLogger()
	}
	return &MessageReceiver{
		logger:    logger,
		listeners: make(map[Channel]map[Listener]struct{}),
	}
}

// Register adds a listener for a channel. Registering the same listener for
// the same channel twice is a no-op.
func (r *MessageReceiver) Register(channel Channel, l Listener) {
	r.lock.Lock()
	defer r.lock.Unlock()
	set, ok := r.listeners[channel]
	if !ok {
		set = make(map[Listener]struct{})
		r.listeners[channel] = set
	}
	set[l] = struct{}{}
}

// Deregister removes a listener for a channel and returns the number of
// listeners remaining for that channel so the caller can decide whether to
// unsubscribe server-side.
func (r *MessageReceiver) Deregister(channel Channel, l Listener) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	set, ok := r.listeners[channel]
	if !ok {
		return 0
	}
	delete(set, l)
	if len(set) == 0 {
		delete(r.listeners, channel)
	}
	return len(set)
}

// Write buffers a fragment of the current response stream. Fragments may
// arrive in any number of pieces per logical message batch.
func (r *MessageReceiver) Write(p []byte) (int, error) {
	r.bufLock.Lock()
	defer r.bufLock.Unlock()
	return r.buf.Write(p)
}

// Close marks the end of the current response stream. The buffered bytes
// are decoded as a batch of messages and every message carrying a channel
// field is dispatched to that channel's listeners. A batch that fails to
// decode is discarded whole; no message from it is delivered.
func (r *MessageReceiver) Close() error {
	r.bufLock.Lock()
	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	r.buf.Reset()
	r.bufLock.Unlock()

	if len(data) == 0 {
		return nil
	}

	var batch []Message
	if err := json.Unmarshal(data, &batch); err != nil {
		batchErr := MalformedBatchError{err}
		r.logger.WithError(batchErr).Warn("dropping message batch")
		return batchErr
	}

	for _, m := range batch {
		if m.Channel == emptyChannel {
			continue
		}
		r.notify(m)
	}
	return nil
}

// Consume reads an entire response body into the receiver and dispatches the
// decoded batch. Streams are processed one at a time.
func (r *MessageReceiver) Consume(body io.ReadCloser) error {
	r.streamLock.Lock()
	defer r.streamLock.Unlock()
	defer body.Close()

	if _, err := io.Copy(r, body); err != nil {
		r.bufLock.Lock()
		r.buf.Reset()
		r.bufLock.Unlock()
		return err
	}
	return r.Close()
}

func (r *MessageReceiver) notify(m Message) {
	for _, l := range r.listenersFor(m.Channel) {
		l.OnMessage(m)
	}
}

// listenersFor snapshots the listeners interested in a channel: the exact
// set plus any wildcard registrations that match. Wildcards never match
// meta channels.
func (r *MessageReceiver) listenersFor(channel Channel) []Listener {
	r.lock.RLock()
	defer r.lock.RUnlock()

	interested := make([]Listener, 0, len(r.listeners[channel]))
	for l := range r.listeners[channel] {
		interested = append(interested, l)
	}
	if channel.Type() == MetaChannel {
		return interested
	}
	for registered, set := range r.listeners {
		if !registered.HasWildcard() || !registered.Match(channel) {
			continue
		}
		for l := range set {
			interested = append(interested, l)
		}
	}
	return interested
}
