package bayeux

import (
	"encoding/json"
	"fmt"
)

func ExampleHandshakeRequestBuilder() {
	b := NewHandshakeRequestBuilder()
	if err := b.AddSupportedConnectionType(ConnectionTypeLongPolling); err != nil {
		return
	}
	if err := b.AddVersion("1.0"); err != nil {
		return
	}
	b.AddID("1")
	m, err := b.Build()
	if err != nil {
		return
	}
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return
	}
	fmt.Println(string(jsonBytes))
	// Output:
	// {"id":"1","channel":"/meta/handshake","version":"1.0","supportedConnectionTypes":["long-polling"]}
}

func ExampleConnectRequestBuilder() {
	b := NewConnectRequestBuilder()
	if err := b.AddConnectionType(ConnectionTypeLongPolling); err != nil {
		return
	}
	b.AddClientID("Un1q31d3nt1f13r")
	b.AddID("2")
	m, err := b.Build()
	if err != nil {
		return
	}
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return
	}
	fmt.Println(string(jsonBytes))
	// Output:
	// {"id":"2","channel":"/meta/connect","clientId":"Un1q31d3nt1f13r","connectionType":"long-polling"}
}

func ExampleUnsubscribeRequestBuilder() {
	b := NewUnsubscribeRequestBuilder()
	b.AddClientID("Un1q31d3nt1f13r")
	b.AddID("3")
	if err := b.AddSubscription("/foo/bar"); err != nil {
		return
	}
	m, err := b.Build()
	if err != nil {
		return
	}
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return
	}
	fmt.Println(string(jsonBytes))
	// Output:
	// {"id":"3","channel":"/meta/unsubscribe","clientId":"Un1q31d3nt1f13r","subscriptions":["/foo/bar"]}
}
