package bayeux

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSupportedConnectionTypes is returned when a handshake request is
	// built without any connection types
	ErrNoSupportedConnectionTypes = errors.New("no supported connection types provided")

	// ErrNoVersion is returned when a version is not provided
	ErrNoVersion = errors.New("no version specified")

	// ErrMissingClientID is returned when the client id has not been set
	ErrMissingClientID = errors.New("missing clientID value")

	// ErrMissingConnectionType is returned when the connection type is unset
	ErrMissingConnectionType = errors.New("missing connectionType value")
)

// BadResponseError is returned when we get an unexpected HTTP response from
// the server
type BadResponseError struct {
	StatusCode int
	Status     string
}

func (e BadResponseError) Error() string {
	return fmt.Sprintf(
		"expected 200 response from bayeux server, got %d with status '%s'",
		e.StatusCode,
		e.Status,
	)
}

// BadConnectionTypeError is returned when we don't know how to handle the
// requested connection type
type BadConnectionTypeError struct {
	ConnectionType string
}

func (e BadConnectionTypeError) Error() string {
	return fmt.Sprintf("%q is not a valid connection type", e.ConnectionType)
}

// BadConnectionVersionError is returned when we can't support the requested
// version number
type BadConnectionVersionError struct {
	Version string
}

func (e BadConnectionVersionError) Error() string {
	return fmt.Sprintf("version %q is invalid for Bayeux protocol", e.Version)
}

// InvalidChannelError is the result of a failure to validate a channel name
type InvalidChannelError struct {
	Channel
}

func (e InvalidChannelError) Error() string {
	return fmt.Sprintf("channel %q appears to not be a valid channel", e.Channel)
}

// ErrEmptySlice is returned when an empty slice is unexpected
type ErrEmptySlice string

func (e ErrEmptySlice) Error() string {
	return fmt.Sprintf("no %s provided", string(e))
}

// UnparsableMessageError is returned when we fail to parse the error field
// of a message
type UnparsableMessageError string

func (e UnparsableMessageError) Error() string {
	return fmt.Sprintf("error message not parseable: %s", string(e))
}

// MalformedBatchError is returned when an inbound response body could not be
// decoded as a batch of messages. The whole batch is discarded.
type MalformedBatchError struct {
	err error
}

func (e MalformedBatchError) Error() string {
	return fmt.Sprintf("unable to decode message batch (%s)", e.err)
}

func (e MalformedBatchError) Unwrap() error {
	return e.err
}

// SendFailedError is handed to error callbacks when an outbound request
// could not be transmitted
type SendFailedError struct {
	Channel Channel
	err     error
}

func (e SendFailedError) Error() string {
	return fmt.Sprintf("unable to send %s request (%s)", e.Channel, e.err)
}

func (e SendFailedError) Unwrap() error {
	return e.err
}
