// Package bayeuxtest provides a scripted Bayeux server that plugs in as an
// http.RoundTripper so client behavior can be exercised without sockets.
package bayeuxtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"

	"github.com/cometwire/bayeux"
)

const (
	VERSION = "1.0"
)

var (
	chars    = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmonpqrstuvwxyz0123456789")
	numChars = len(chars)
)

type Logger interface {
	Log(args ...any)
	Logf(format string, args ...any)
}

// Server speaks the form-encoded Bayeux wire protocol: each request is a
// POST with a single `message` field holding one JSON message, each
// response a JSON array of messages.
type Server struct {
	log Logger

	mu       sync.Mutex
	running  bool
	clientID string
	subs     map[string][]bayeux.Channel
	requests []bayeux.Message
	pending  []bayeux.Message
	advice   *bayeux.Advice

	failHandshakes int
	failConnects   int
	handshakeError bool
}

func NewServer(logger Logger, opts ...ServerOpts) *Server {
	server := &Server{
		log:  logger,
		subs: make(map[string][]bayeux.Channel),
		advice: &bayeux.Advice{
			Reconnect: "retry",
			Timeout:   30000,
			Interval:  25,
		},
	}

	for _, opt := range opts {
		opt.apply(server)
	}

	return server
}

func (s *Server) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = true

	return nil
}

func (s *Server) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false

	return nil
}

// FailNextHandshakes makes the next n handshake requests come back with
// successful=false.
func (s *Server) FailNextHandshakes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHandshakes = n
}

// FailNextConnects makes the next n connect requests fail at the transport
// level.
func (s *Server) FailNextConnects(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConnects = n
}

// Publish queues an event message for delivery on the next connect response
func (s *Server) Publish(channel bayeux.Channel, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, bayeux.Message{
		Channel:  channel,
		ID:       generateID(5),
		Data:     json.RawMessage(data),
		ClientID: s.clientID,
	})
}

// Requests returns every message received so far, in arrival order
func (s *Server) Requests() []bayeux.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bayeux.Message(nil), s.requests...)
}

// CountRequests returns how many requests arrived on the given channel
func (s *Server) CountRequests(channel bayeux.Channel) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.requests {
		if m.Channel == channel {
			count++
		}
	}
	return count
}

// ClientID returns the session id issued by the most recent handshake
func (s *Server) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

func (s *Server) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, errors.New("server not running")
	}

	defer func() {
		if err := req.Body.Close(); err != nil {
			s.log.Logf("could not close test server request body: %+v", err)
		}
	}()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("issue reading body (%w)", err)
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("issue parsing form body (%w)", err)
	}

	var msg bayeux.Message
	if err := json.Unmarshal([]byte(form.Get("message")), &msg); err != nil {
		return &http.Response{
			StatusCode: http.StatusUnprocessableEntity,
			Status:     http.StatusText(http.StatusUnprocessableEntity),
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}

	replies := []*bayeux.Message{}

	switch msg.Channel {
	case bayeux.MetaHandshake:
		if s.handshakeError {
			// For error parsing tests, always return a 400 Bad Request for
			// handshake
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Status:     http.StatusText(http.StatusBadRequest),
				Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":"Invalid request"}`))),
			}, nil
		}
		s.requests = append(s.requests, msg)
		if s.failHandshakes > 0 {
			s.failHandshakes--
			replies = append(replies, &bayeux.Message{
				Channel:    bayeux.MetaHandshake,
				ID:         msg.ID,
				Successful: false,
				Error:      "401::handshake denied",
			})
			break
		}
		s.clientID = generateID(10)
		replies = append(replies, &bayeux.Message{
			Channel:                  bayeux.MetaHandshake,
			Version:                  msg.Version,
			SupportedConnectionTypes: msg.SupportedConnectionTypes,
			ClientID:                 s.clientID,
			Successful:               true,
			Advice:                   s.advice,
			ID:                       msg.ID,
		})

	case bayeux.MetaConnect:
		if s.failConnects > 0 {
			s.failConnects--
			return nil, errors.New("connection refused")
		}
		s.requests = append(s.requests, msg)

		for _, event := range s.pending {
			if s.subscribed(msg.ClientID, event.Channel) {
				event := event
				replies = append(replies, &event)
			}
		}
		s.pending = nil

		replies = append(replies, &bayeux.Message{
			Channel:    bayeux.MetaConnect,
			Successful: true,
			ClientID:   msg.ClientID,
			Advice:     s.advice,
			ID:         msg.ID,
		})

	case bayeux.MetaSubscribe:
		s.requests = append(s.requests, msg)
		if _, ok := s.subs[msg.ClientID]; !ok {
			s.subs[msg.ClientID] = make([]bayeux.Channel, 0)
		}

		reply := &bayeux.Message{
			Channel:      bayeux.MetaSubscribe,
			ID:           msg.ID,
			ClientID:     msg.ClientID,
			Successful:   true,
			Subscription: msg.Subscription,
		}

		for _, ch := range s.subs[msg.ClientID] {
			if ch == msg.Subscription {
				reply.Successful = false
				reply.Error = "403:%s:already subscribed"
			}
		}

		s.subs[msg.ClientID] = append(s.subs[msg.ClientID], msg.Subscription)

		replies = append(replies, reply)

	case bayeux.MetaUnsubscribe:
		s.requests = append(s.requests, msg)
		reply := &bayeux.Message{
			Channel:    bayeux.MetaUnsubscribe,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: true,
		}

		for _, released := range msg.Subscriptions {
			found := false
			subs := []bayeux.Channel{}
			for _, ch := range s.subs[msg.ClientID] {
				if ch == released {
					found = true
					continue
				}

				subs = append(subs, ch)
			}

			s.subs[msg.ClientID] = subs

			if !found {
				reply.Successful = false
				reply.Error = "403:%s:not subscribed"
			}
		}

		replies = append(replies, reply)

	case bayeux.MetaDisconnect:
		s.requests = append(s.requests, msg)
		delete(s.subs, msg.ClientID)

		replies = append(replies, &bayeux.Message{
			Channel:    bayeux.MetaDisconnect,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: true,
		})
	default:
		s.log.Logf("unhandled: %+v", msg)
	}

	reply, err := json.Marshal(replies)
	if err != nil {
		return nil, fmt.Errorf("issue marshaling body (%w)", err)
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(reply)),
	}, nil
}

func (s *Server) subscribed(clientID string, channel bayeux.Channel) bool {
	for _, ch := range s.subs[clientID] {
		if ch == channel {
			return true
		}
	}
	return false
}

func generateID(length int) string {
	ret := make([]rune, length)
	for i := range ret {
		ret[i] = chars[rand.Intn(numChars)]
	}

	return string(ret)
}
