package bayeux

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"
)

// ErrorCallback is invoked, on the event loop, when an outbound request
// could not be transmitted. A nil callback means the failure is only logged.
type ErrorCallback func(err error)

// MessageSender builds and transmits the outbound protocol messages,
// assigning a strictly increasing message id to each, and hands every
// response stream to the MessageReceiver for decoding. It tracks the
// server-issued client identifier between a successful handshake and the
// next one.
type MessageSender struct {
	logger        Logger
	client        *http.Client
	serverAddress *url.URL
	receiver      *MessageReceiver
	loop          *eventLoop
	state         *clientState
	messageID     int64
}

// NewMessageSender initializes a MessageSender posting to serverAddress.
// A nil httpClient gets replaced with a default suitable for long-polling.
func NewMessageSender(httpClient *http.Client, serverAddress string, receiver *MessageReceiver, loop *eventLoop, logger Logger) (*MessageSender, error) {
	if logger == nil {
		logger = newNullLogger()
	}
	if httpClient == nil {
		var err error
		if httpClient, err = defaultHTTPClient(nil); err != nil {
			return nil, err
		}
	}

	parsedAddress, err := url.Parse(serverAddress)
	if err != nil {
		return nil, err
	}

	return &MessageSender{
		logger:        logger,
		client:        httpClient,
		serverAddress: parsedAddress,
		receiver:      receiver,
		loop:          loop,
		state:         &clientState{},
	}, nil
}

func defaultHTTPClient(transport http.RoundTripper) (*http.Client, error) {
	if transport == nil {
		transport = &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 90 * time.Second,
		}
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Jar: jar}, nil
}

// SetClientID records the session id token issued by the server. Every
// request after a successful handshake other than the handshake itself
// carries it.
func (s *MessageSender) SetClientID(clientID string) {
	s.state.SetClientID(clientID)
}

// ClientID returns the current session id token, or "" before the first
// successful handshake.
func (s *MessageSender) ClientID() string {
	return s.state.GetClientID()
}

// nextMessageID increments and returns the message id counter. Ids are
// unique per sender, not across clients.
func (s *MessageSender) nextMessageID() string {
	return strconv.FormatInt(atomic.AddInt64(&s.messageID, 1), 10)
}

// Handshake sends a handshake request to the server
func (s *MessageSender) Handshake(errback ErrorCallback) {
	builder := NewHandshakeRequestBuilder()
	if err := builder.AddVersion("1.0"); err != nil {
		s.fail(MetaHandshake, errback, err)
		return
	}
	if err := builder.AddMinimumVersion("1.0"); err != nil {
		s.fail(MetaHandshake, errback, err)
		return
	}
	for _, ct := range []string{ConnectionTypeLongPolling, ConnectionTypeCallbackPolling} {
		if err := builder.AddSupportedConnectionType(ct); err != nil {
			s.fail(MetaHandshake, errback, err)
			return
		}
	}
	builder.AddID(s.nextMessageID())
	m, err := builder.Build()
	if err != nil {
		s.fail(MetaHandshake, errback, err)
		return
	}
	s.sendMessage(m, errback)
}

// Connect sends a connect request to the server. Only one connect should be
// outstanding at a time; the Client schedules each one after the previous
// response resolves.
//
// See also: https://docs.cometd.org/current/reference/#_bayeux_meta_connect
func (s *MessageSender) Connect(errback ErrorCallback) {
	builder := NewConnectRequestBuilder()
	builder.AddClientID(s.state.GetClientID())
	if err := builder.AddConnectionType(ConnectionTypeLongPolling); err != nil {
		s.fail(MetaConnect, errback, err)
		return
	}
	builder.AddID(s.nextMessageID())
	m, err := builder.Build()
	if err != nil {
		s.fail(MetaConnect, errback, err)
		return
	}
	s.sendMessage(m, errback)
}

// Disconnect sends a disconnect request to the server to terminate the
// session
func (s *MessageSender) Disconnect(errback ErrorCallback) {
	builder := NewDisconnectRequestBuilder()
	builder.AddClientID(s.state.GetClientID())
	builder.AddID(s.nextMessageID())
	m, err := builder.Build()
	if err != nil {
		s.fail(MetaDisconnect, errback, err)
		return
	}
	s.sendMessage(m, errback)
}

// Subscribe sends a subscribe request for a single channel
func (s *MessageSender) Subscribe(subscription Channel, errback ErrorCallback) {
	builder := NewSubscribeRequestBuilder()
	builder.AddClientID(s.state.GetClientID())
	builder.AddID(s.nextMessageID())
	if err := builder.AddSubscription(subscription); err != nil {
		s.fail(MetaSubscribe, errback, err)
		return
	}
	m, err := builder.Build()
	if err != nil {
		s.fail(MetaSubscribe, errback, err)
		return
	}
	s.sendMessage(m, errback)
}

// Unsubscribe sends an unsubscribe request for a single channel. The message
// is built from the sender's own client id and the channel argument.
func (s *MessageSender) Unsubscribe(subscription Channel, errback ErrorCallback) {
	builder := NewUnsubscribeRequestBuilder()
	builder.AddClientID(s.state.GetClientID())
	builder.AddID(s.nextMessageID())
	if err := builder.AddSubscription(subscription); err != nil {
		s.fail(MetaUnsubscribe, errback, err)
		return
	}
	m, err := builder.Build()
	if err != nil {
		s.fail(MetaUnsubscribe, errback, err)
		return
	}
	s.sendMessage(m, errback)
}

// sendMessage transmits one message as an HTTP POST with a form-encoded
// `message` field. The caller never blocks: the request runs on its own
// goroutine, a successful response body streams into the receiver, and a
// transport failure (including any non-200 status, without further
// distinction) reaches errback on the event loop.
func (s *MessageSender) sendMessage(m Message, errback ErrorCallback) {
	payload, err := encodeMessageForm(m)
	if err != nil {
		s.fail(m.Channel, errback, err)
		return
	}
	logger := s.logger.WithField("channel", m.Channel)
	logger.Debug("sending message", "id", m.ID)

	go func() {
		req, err := http.NewRequest(http.MethodPost, s.serverAddress.String(), strings.NewReader(payload))
		if err != nil {
			s.fail(m.Channel, errback, err)
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.fail(m.Channel, errback, err)
			return
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			s.fail(m.Channel, errback, BadResponseError{resp.StatusCode, resp.Status})
			return
		}
		// A batch the receiver cannot decode is dropped there; it is not a
		// send failure, so errback stays untouched.
		if err := s.receiver.Consume(resp.Body); err != nil {
			logger.WithError(err).Warn("error consuming response body")
		}
	}()
}

func encodeMessageForm(m Message) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	form := url.Values{"message": []string{string(raw)}}
	return form.Encode(), nil
}

func (s *MessageSender) fail(channel Channel, errback ErrorCallback, err error) {
	sendErr := SendFailedError{channel, err}
	s.logger.WithError(sendErr).Warn("error sending message")
	if errback == nil {
		return
	}
	s.loop.Submit(func() {
		errback(sendErr)
	})
}
