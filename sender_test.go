package bayeux

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingTransport decodes the form-encoded wire format and records every
// message it sees, replying with a canned response.
type recordingTransport struct {
	mu          sync.Mutex
	messages    []Message
	contentType string

	err    error
	status int
	body   string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	var m Message
	if err := json.Unmarshal([]byte(form.Get("message")), &m); err != nil {
		return nil, err
	}

	rt.mu.Lock()
	rt.messages = append(rt.messages, m)
	rt.contentType = req.Header.Get("Content-Type")
	failErr, status, respBody := rt.err, rt.status, rt.body
	rt.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}
	if status == 0 {
		status = http.StatusOK
	}
	if respBody == "" {
		respBody = "[]"
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(respBody)),
	}, nil
}

func (rt *recordingTransport) count(channel Channel) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := 0
	for _, m := range rt.messages {
		if m.Channel == channel {
			n++
		}
	}
	return n
}

func (rt *recordingTransport) message(channel Channel) (Message, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, m := range rt.messages {
		if m.Channel == channel {
			return m, true
		}
	}
	return Message{}, false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSender(t *testing.T, rt *recordingTransport) (*MessageSender, *MessageReceiver, *eventLoop) {
	t.Helper()
	loop := newEventLoop(newNullLogger())
	loop.EnsureRunning()
	t.Cleanup(loop.Stop)

	receiver := NewMessageReceiver(newNullLogger())
	sender, err := NewMessageSender(&http.Client{Transport: rt}, "http://bayeux.test/cometd", receiver, loop, newNullLogger())
	if err != nil {
		t.Fatalf("unexpected error creating sender: %q", err)
	}
	return sender, receiver, loop
}

func TestSenderHandshakeWireFormat(t *testing.T) {
	rt := &recordingTransport{}
	sender, _, _ := newTestSender(t, rt)

	sender.Handshake(nil)
	waitFor(t, "handshake request", func() bool { return rt.count(MetaHandshake) == 1 })

	m, _ := rt.message(MetaHandshake)
	if m.ID != "1" {
		t.Errorf("unexpected message id; want 1, got %s", m.ID)
	}
	if m.Version != "1.0" || m.MinimumVersion != "1.0" {
		t.Errorf("unexpected version fields: %+v", m)
	}
	if len(m.SupportedConnectionTypes) != 2 {
		t.Errorf("expected two supported connection types, got %v", m.SupportedConnectionTypes)
	}
	if m.ClientID != "" {
		t.Errorf("handshake must not carry a client id, got %q", m.ClientID)
	}

	rt.mu.Lock()
	contentType := rt.contentType
	rt.mu.Unlock()
	if contentType != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected content type %q", contentType)
	}
}

func TestSenderAssignsIncreasingMessageIDs(t *testing.T) {
	rt := &recordingTransport{}
	sender, _, _ := newTestSender(t, rt)
	sender.SetClientID("fakeClientID")

	sender.Handshake(nil)
	sender.Connect(nil)
	sender.Subscribe("/foo/bar", nil)
	sender.Unsubscribe("/foo/bar", nil)
	sender.Disconnect(nil)

	waitFor(t, "all five requests", func() bool {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return len(rt.messages) == 5
	})

	wantIDs := map[Channel]string{
		MetaHandshake:   "1",
		MetaConnect:     "2",
		MetaSubscribe:   "3",
		MetaUnsubscribe: "4",
		MetaDisconnect:  "5",
	}
	for channel, want := range wantIDs {
		m, ok := rt.message(channel)
		if !ok {
			t.Errorf("no %s request recorded", channel)
			continue
		}
		if m.ID != want {
			t.Errorf("unexpected id for %s; want %s, got %s", channel, want, m.ID)
		}
	}
}

func TestSenderPostHandshakeRequestsCarryClientID(t *testing.T) {
	rt := &recordingTransport{}
	sender, _, _ := newTestSender(t, rt)
	sender.SetClientID("fakeClientID")

	sender.Connect(nil)
	sender.Subscribe("/foo/bar", nil)
	waitFor(t, "connect and subscribe requests", func() bool {
		return rt.count(MetaConnect) == 1 && rt.count(MetaSubscribe) == 1
	})

	for _, channel := range []Channel{MetaConnect, MetaSubscribe} {
		m, _ := rt.message(channel)
		if m.ClientID != "fakeClientID" {
			t.Errorf("expected %s request to carry the client id, got %q", channel, m.ClientID)
		}
	}

	sub, _ := rt.message(MetaSubscribe)
	if sub.Subscription != Channel("/foo/bar") {
		t.Errorf("unexpected subscription; want /foo/bar, got %s", sub.Subscription)
	}
}

func TestSenderConnectWithoutClientIDFails(t *testing.T) {
	rt := &recordingTransport{}
	sender, _, _ := newTestSender(t, rt)

	errs := make(chan error, 1)
	sender.Connect(func(err error) {
		errs <- err
	})

	select {
	case err := <-errs:
		if !errors.Is(err, ErrMissingClientID) {
			t.Errorf("expected ErrMissingClientID, got %q", err)
		}
	case <-time.After(time.Second):
		t.Fatal("error callback never invoked")
	}
	if rt.count(MetaConnect) != 0 {
		t.Error("connect request should not have been transmitted")
	}
}

func TestSenderTransportFailureInvokesErrback(t *testing.T) {
	rt := &recordingTransport{err: errors.New("connection refused")}
	sender, _, _ := newTestSender(t, rt)

	errs := make(chan error, 1)
	sender.Handshake(func(err error) {
		errs <- err
	})

	select {
	case err := <-errs:
		var sendErr SendFailedError
		if !errors.As(err, &sendErr) {
			t.Errorf("expected SendFailedError, got %q", err)
		}
	case <-time.After(time.Second):
		t.Fatal("error callback never invoked")
	}
}

func TestSenderTreatsNon200AsTransportFailure(t *testing.T) {
	rt := &recordingTransport{status: http.StatusBadGateway}
	sender, _, _ := newTestSender(t, rt)

	errs := make(chan error, 1)
	sender.Handshake(func(err error) {
		errs <- err
	})

	select {
	case err := <-errs:
		var badResponse BadResponseError
		if !errors.As(err, &badResponse) {
			t.Fatalf("expected BadResponseError, got %q", err)
		}
		if badResponse.StatusCode != http.StatusBadGateway {
			t.Errorf("unexpected status code; want 502, got %d", badResponse.StatusCode)
		}
	case <-time.After(time.Second):
		t.Fatal("error callback never invoked")
	}
}

func TestSenderStreamsResponseIntoReceiver(t *testing.T) {
	rt := &recordingTransport{body: `[{"channel":"/chat/demo","data":{"text":"hi"}}]`}
	sender, receiver, _ := newTestSender(t, rt)
	sender.SetClientID("fakeClientID")

	listener := &recordingListener{}
	receiver.Register("/chat/demo", listener)

	sender.Connect(nil)
	waitFor(t, "response dispatch", func() bool { return listener.count() == 1 })
}
