// Package protocol implements the binary wire protocol spoken between an
// application server and the SignalR service over a multiplexed physical
// connection.
//
// # Wire Format
//
// Every message is a length-prefixed frame on the byte stream:
//
//	[Frame Length: uvarint][Frame Body]
//
// The frame body is an ordered array of tagged elements. The array starts
// with a uvarint element count; the first element is always the integer
// message-type discriminant (see MessageType). Each element carries a
// one-byte type tag so that decoders can skip unknown trailing fields
// from newer peers, and so that a type mismatch can be reported against
// the exact field that failed.
//
// Optional trailing fields are omitted when they hold their default value.
// Decoders treat a shorter array as if the missing trailing fields were
// defaults: an absent string decodes as "", an absent collection as nil.
//
// # Encoding
//
//   - Uvarint: compact unsigned integers (protobuf-style)
//   - ZigZag svarint: signed integer elements
//   - Length-prefixed: strings and byte payloads
//   - Maps: uvarint pair count followed by key/value pairs
//
// Payload sets (map of protocol name to raw bytes) let one logical message
// carry format-specific serializations for several client protocols at once.
//
// # Message Set
//
// The concrete ServiceMessage variants correspond one-to-one with the wire
// discriminants 1-40: handshake, ping, connection lifecycle, data-plane
// (connection/user/group/broadcast), group membership (+WithAck), ack,
// service events, client invocation, flow control, and group-member query.
//
// # Ping Sub-Protocol
//
// The Ping message carries an optional flat list of (key, value) string
// pairs implementing keepalive, rebalance, status, offline, servers, and
// echo signaling. See ping.go for the recognized tokens.
//
// # Usage Example
//
//	data := protocol.EncodeMessage(&protocol.ConnectionData{
//	    ConnectionID: "conn1",
//	    Payload:      []byte("hello"),
//	})
//
//	msg, consumed, err := protocol.TryDecodeMessage(buf)
//	if err == protocol.ErrNeedMoreData {
//	    // read more bytes from the stream
//	}
package protocol
