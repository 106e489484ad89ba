package bayeux

import (
	"strconv"
	"strings"
)

// HandshakeRequestBuilder provides a way to safely and confidently create
// handshake requests to /meta/handshake.
//
// See also: https://docs.cometd.org/current/reference/#_handshake_request
type HandshakeRequestBuilder struct {
	// Required fields
	version                  string
	supportedConnectionTypes []string
	// Optional fields
	id             string
	minimumVersion string
}

// NewHandshakeRequestBuilder provides an easy way to build a Message that can
// be sent as a Handshake Request as documented in
// https://docs.cometd.org/current/reference/#_handshake_request
func NewHandshakeRequestBuilder() *HandshakeRequestBuilder {
	return &HandshakeRequestBuilder{
		supportedConnectionTypes: make([]string, 0),
	}
}

// AddSupportedConnectionType accepts a string and will add it to the list of
// supported connection types for the /meta/handshake request. It validates
// the connection type. You're encouraged to use one of the constants created
// for these different connection types.
// This will de-duplicate connection types and returns an error if an invalid
// connection type was provided.
func (b *HandshakeRequestBuilder) AddSupportedConnectionType(connectionType string) error {
	switch connectionType {
	case ConnectionTypeCallbackPolling, ConnectionTypeLongPolling, ConnectionTypeIFrame:
		for _, ct := range b.supportedConnectionTypes {
			if ct == connectionType {
				return nil
			}
		}
		b.supportedConnectionTypes = append(b.supportedConnectionTypes, connectionType)
	default:
		return BadConnectionTypeError{connectionType}
	}
	return nil
}

// AddVersion accepts the version of the Bayeux protocol that the client
// supports.
func (b *HandshakeRequestBuilder) AddVersion(version string) error {
	if err := validateVersion(version); err != nil {
		return err
	}
	b.version = version
	return nil
}

// AddMinimumVersion adds the minimum supported version
func (b *HandshakeRequestBuilder) AddMinimumVersion(version string) error {
	if err := validateVersion(version); err != nil {
		return err
	}
	b.minimumVersion = version
	return nil
}

// AddID adds the client-assigned message id to the request
func (b *HandshakeRequestBuilder) AddID(id string) {
	b.id = id
}

// Build generates the final Message to be sent as a Handshake Request
func (b *HandshakeRequestBuilder) Build() (Message, error) {
	if len(b.supportedConnectionTypes) < 1 {
		return Message{}, ErrNoSupportedConnectionTypes
	}
	if len(b.version) == 0 {
		return Message{}, ErrNoVersion
	}
	m := Message{
		Channel:                  MetaHandshake,
		ID:                       b.id,
		Version:                  b.version,
		SupportedConnectionTypes: b.supportedConnectionTypes,
	}
	if len(b.minimumVersion) > 0 {
		m.MinimumVersion = b.minimumVersion
	}
	return m, nil
}

func validateVersion(version string) error {
	if len(version) < 1 {
		return BadConnectionVersionError{version}
	}
	pieces := strings.SplitN(version, ".", 2)
	if _, err := strconv.Atoi(pieces[0]); err != nil {
		return BadConnectionVersionError{version}
	}
	return nil
}

// ConnectRequestBuilder provides a way to safely build a Message that can be
// sent as a /meta/connect request as documented in
// https://docs.cometd.org/current/reference/#_connect_request
type ConnectRequestBuilder struct {
	clientID       string
	connectionType string
	id             string
}

// NewConnectRequestBuilder initializes a ConnectRequestBuilder as an easy way
// to build a Message that can be sent as a /meta/connect request.
//
// See also: https://docs.cometd.org/current/reference/#_connect_request
func NewConnectRequestBuilder() *ConnectRequestBuilder {
	return &ConnectRequestBuilder{}
}

// AddClientID adds the previously provided clientId to the request
func (b *ConnectRequestBuilder) AddClientID(clientID string) {
	b.clientID = clientID
}

// AddConnectionType adds the connection type used by the client for the
// purposes of this connection to the request
func (b *ConnectRequestBuilder) AddConnectionType(connectionType string) error {
	switch connectionType {
	case ConnectionTypeCallbackPolling, ConnectionTypeLongPolling, ConnectionTypeIFrame:
		b.connectionType = connectionType
	default:
		return BadConnectionTypeError{connectionType}
	}
	return nil
}

// AddID adds the client-assigned message id to the request
func (b *ConnectRequestBuilder) AddID(id string) {
	b.id = id
}

// Build generates the final Message to be sent as a Connect Request
func (b *ConnectRequestBuilder) Build() (Message, error) {
	if b.clientID == "" {
		return Message{}, ErrMissingClientID
	}

	if b.connectionType == "" {
		return Message{}, ErrMissingConnectionType
	}

	return Message{
		Channel:        MetaConnect,
		ID:             b.id,
		ClientID:       b.clientID,
		ConnectionType: b.connectionType,
	}, nil
}

// SubscribeRequestBuilder provides an easy way to build a /meta/subscribe
// request per the specification in
// https://docs.cometd.org/current/reference/#_subscribe_request
type SubscribeRequestBuilder struct {
	clientID     string
	subscription Channel
	id           string
}

// NewSubscribeRequestBuilder initializes a SubscribeRequestBuilder as an easy
// way to build a Message that can be sent as a /meta/subscribe request. See
// also https://docs.cometd.org/current/reference/#_subscribe_request
func NewSubscribeRequestBuilder() *SubscribeRequestBuilder {
	return &SubscribeRequestBuilder{}
}

// AddClientID adds the previously provided clientId to the request
func (b *SubscribeRequestBuilder) AddClientID(clientID string) {
	b.clientID = clientID
}

// AddSubscription sets the channel being subscribed to in a /meta/subscribe
// request
func (b *SubscribeRequestBuilder) AddSubscription(c Channel) error {
	if !c.IsValid() {
		return InvalidChannelError{c}
	}

	b.subscription = c
	return nil
}

// AddID adds the client-assigned message id to the request
func (b *SubscribeRequestBuilder) AddID(id string) {
	b.id = id
}

// Build generates the final Message to be sent as a Subscribe Request
func (b *SubscribeRequestBuilder) Build() (Message, error) {
	if b.clientID == "" {
		return Message{}, ErrMissingClientID
	}

	if b.subscription == emptyChannel {
		return Message{}, ErrEmptySlice("subscriptions")
	}

	return Message{
		Channel:      MetaSubscribe,
		ID:           b.id,
		ClientID:     b.clientID,
		Subscription: b.subscription,
	}, nil
}

// UnsubscribeRequestBuilder provides an easy way to build a /meta/unsubscribe
// request per the specification in
// https://docs.cometd.org/current/reference/#_unsubscribe_request
type UnsubscribeRequestBuilder struct {
	clientID      string
	subscriptions []Channel
	id            string
}

// NewUnsubscribeRequestBuilder initializes an UnsubscribeRequestBuilder as an
// easy way to build a Message that can be sent as a /meta/unsubscribe
// request. See also
// https://docs.cometd.org/current/reference/#_unsubscribe_request
func NewUnsubscribeRequestBuilder() *UnsubscribeRequestBuilder {
	return &UnsubscribeRequestBuilder{subscriptions: make([]Channel, 0)}
}

// AddClientID adds the previously provided clientId to the request
func (b *UnsubscribeRequestBuilder) AddClientID(clientID string) {
	b.clientID = clientID
}

// AddSubscription adds a given channel to the list of subscriptions being
// released in a /meta/unsubscribe request
func (b *UnsubscribeRequestBuilder) AddSubscription(c Channel) error {
	if !c.IsValid() {
		return InvalidChannelError{c}
	}

	for _, s := range b.subscriptions {
		if s == c {
			return nil
		}
	}
	b.subscriptions = append(b.subscriptions, c)
	return nil
}

// AddID adds the client-assigned message id to the request
func (b *UnsubscribeRequestBuilder) AddID(id string) {
	b.id = id
}

// Build generates the final Message to be sent as an Unsubscribe Request.
// The channels being released ride in the plural `subscriptions` field.
func (b *UnsubscribeRequestBuilder) Build() (Message, error) {
	if b.clientID == "" {
		return Message{}, ErrMissingClientID
	}

	if len(b.subscriptions) < 1 {
		return Message{}, ErrEmptySlice("subscriptions")
	}

	return Message{
		Channel:       MetaUnsubscribe,
		ID:            b.id,
		ClientID:      b.clientID,
		Subscriptions: b.subscriptions,
	}, nil
}

// DisconnectRequestBuilder provides an easy way to build a /meta/disconnect
// request per the specification in
// https://docs.cometd.org/current/reference/#_bayeux_meta_disconnect
type DisconnectRequestBuilder struct {
	clientID string
	id       string
}

// NewDisconnectRequestBuilder initializes a DisconnectRequestBuilder as an
// easy way to build a Message that can be sent as a /meta/disconnect request.
func NewDisconnectRequestBuilder() *DisconnectRequestBuilder {
	return &DisconnectRequestBuilder{}
}

// AddClientID adds the previously provided clientId to the request
func (b *DisconnectRequestBuilder) AddClientID(clientID string) {
	b.clientID = clientID
}

// AddID adds the client-assigned message id to the request
func (b *DisconnectRequestBuilder) AddID(id string) {
	b.id = id
}

// Build generates the final Message to be sent as a Disconnect Request
func (b *DisconnectRequestBuilder) Build() (Message, error) {
	if b.clientID == "" {
		return Message{}, ErrMissingClientID
	}

	return Message{Channel: MetaDisconnect, ID: b.id, ClientID: b.clientID}, nil
}
