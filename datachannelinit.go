// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

// DataChannelInit can be used to configure properties of the underlying
// channel such as data reliability. Every field is optional: a nil
// pointer means "let CreateDataChannel pick the default."
type DataChannelInit struct {
	// Ordered indicates whether messages must be delivered in the order
	// they were sent. Defaults to true if nil.
	Ordered *bool

	// MaxPacketLifeTime limits the time (in milliseconds) during which the
	// channel will transmit or retransmit data if not acknowledged. Mutually
	// exclusive with MaxRetransmits.
	MaxPacketLifeTime *uint16

	// MaxRetransmits limits the number of times the channel will retransmit
	// data if not successfully delivered. Mutually exclusive with
	// MaxPacketLifeTime.
	MaxRetransmits *uint16

	// Protocol names the subprotocol used with this channel.
	Protocol *string

	// Negotiated, when true, means both sides create a DataChannel with
	// the same ID out-of-band rather than exchanging DCEP open/ack.
	Negotiated *bool

	// ID overrides the generated data channel identifier. Required when
	// Negotiated is true.
	ID *uint16
}

// DataChannelMessage represents a message received over a DataChannel.
type DataChannelMessage struct {
	// IsString is set when the message carries UTF-8 text rather than
	// an opaque binary payload.
	IsString bool
	Data     []byte
}
