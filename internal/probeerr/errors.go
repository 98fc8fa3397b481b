// Package probeerr defines the sentinel error taxonomy a channel monitor
// can hit, grounded on the donor's internal/pipeline/core error style.
package probeerr

import (
	"errors"
	"fmt"
)

// Monitor errors.
var (
	// ErrSocketBindFailed indicates the UDP multicast socket could not be bound.
	ErrSocketBindFailed = errors.New("socket bind failed")

	// ErrMulticastJoinFailed indicates the process could not join the
	// channel's multicast group.
	ErrMulticastJoinFailed = errors.New("multicast join failed")

	// ErrDecodeFailed indicates ffmpeg failed to extract a frame or audio
	// chunk from the rolling transport-stream buffer.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrNoChannelsConfigured indicates the supervisor found no enabled
	// channel configurations to monitor.
	ErrNoChannelsConfigured = errors.New("no channels configured")
)

// SocketError wraps a socket-level failure with the channel and address
// it happened on.
type SocketError struct {
	ChannelID string
	Addr      string
	Err       error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("channel %s (%s): %v", e.ChannelID, e.Addr, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// NewSocketError wraps err with channel/address context.
func NewSocketError(channelID, addr string, err error) *SocketError {
	return &SocketError{ChannelID: channelID, Addr: addr, Err: err}
}

// DecodeError wraps a decode-stage failure with the channel it happened on.
type DecodeError struct {
	ChannelID string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("channel %s: decode failed: %v", e.ChannelID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError wraps err with channel context.
func NewDecodeError(channelID string, err error) *DecodeError {
	return &DecodeError{ChannelID: channelID, Err: err}
}
