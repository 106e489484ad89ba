// Package bayeux implements a client for the Bayeux publish/subscribe
// protocol (the protocol underlying CometD) over HTTP long-polling.
//
// A Client maintains a logical session with the server across repeated
// request/response exchanges: it handshakes, keeps the session alive with
// periodic connect requests, and recovers from transient transport or
// protocol failures by retrying indefinitely while started.
//
// Create a client with the address of the Bayeux endpoint
//
//	client, err := bayeux.NewClient("http://localhost:8080/cometd")
//
// register listeners for the channels you care about, then start it
//
//	listener := bayeux.ListenerFunc(func(m bayeux.Message) {
//		fmt.Println(m.Channel, string(m.Data))
//	})
//	client.Register("/chat/demo", listener)
//	client.Start()
//
// Channels registered before the handshake completes are subscribed
// automatically once it does. Keep the Listener handle around if you intend
// to deregister it later
//
//	client.Deregister("/chat/demo", listener)
//
// Stop ends the session but leaves the client restartable; Destroy shuts it
// down for good and should be called before process exit
//
//	client.Stop()
//	client.Destroy()
//
// Logging defaults to logrus. Use WithFieldLogger to supply your own logrus
// instance or WithSlogLogger to log through log/slog instead
//
//	client, err := bayeux.NewClient(addr, bayeux.WithSlogLogger(slog.Default()))
package bayeux
