package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ErrNeedMoreData is returned by TryDecodeMessage when the buffer does not
// yet hold a complete frame. Callers should read more bytes from the stream
// and retry with the grown buffer.
var ErrNeedMoreData = errors.New("protocol: need more data")

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// HardMaxAllocation.
var ErrFrameTooLarge = errors.New("protocol: frame too large")

// UnknownTypeError reports a discriminant outside the known message set.
// Unknown message types are decode errors, never silently ignored; only
// unknown optional trailing fields inside a known message are skipped.
type UnknownTypeError struct {
	Type MessageType
}

// Error returns the error message.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("protocol: unknown message type %d", int64(e.Type))
}

// EncodeMessage encodes a message as a length-prefixed frame:
// uvarint body length followed by the tagged element array.
func EncodeMessage(m ServiceMessage) []byte {
	w := newFieldWriter()
	w.Int(int64(m.Type()))
	m.encodeFields(w)

	body := NewEncoderWithCap(128)
	w.encodeTo(body)

	out := NewEncoderWithCap(body.Len() + 4)
	out.WriteUvarint(uint64(body.Len()))
	out.WriteBytes(body.Bytes())
	return out.Bytes()
}

// TryDecodeMessage attempts to decode one frame from the front of buf.
// On success it returns the message and the number of bytes consumed.
// If buf holds only part of a frame it returns ErrNeedMoreData with zero
// consumed. Any other error means the stream is corrupt at the frame
// boundary and the connection should be torn down.
func TryDecodeMessage(buf []byte) (ServiceMessage, int, error) {
	d := NewDecoder(buf)
	length, err := d.ReadUvarint()
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, 0, ErrNeedMoreData
		}
		return nil, 0, err
	}
	if length > HardMaxAllocation {
		return nil, 0, ErrFrameTooLarge
	}
	prefix := d.Position()
	if uint64(d.Remaining()) < length {
		return nil, 0, ErrNeedMoreData
	}

	consumed := prefix + int(length)
	msg, err := decodeBody(buf[prefix:consumed])
	if err != nil {
		return nil, consumed, err
	}
	return msg, consumed, nil
}

// decodeBody decodes one frame body (the tagged element array).
func decodeBody(body []byte) (ServiceMessage, error) {
	d := NewDecoder(body)
	r, err := newFieldReader(d)
	if err != nil {
		return nil, err
	}

	mt := MessageType(r.Int("MessageType"))
	if err := r.Err(); err != nil {
		return nil, err
	}

	msg, err := decodeFields(mt, r)
	if err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// decodeFields reads the variant-specific fields in declaration order.
// Reads past the end of a shorter array yield defaults, which is how
// optional trailing fields omitted by the peer decode.
func decodeFields(mt MessageType, r *fieldReader) (ServiceMessage, error) {
	var msg ServiceMessage

	switch mt {
	case TypeHandshakeRequest:
		msg = &HandshakeRequest{
			Version:                 r.Int("Version"),
			ConnectionType:          ConnectionKind(r.Int("ConnectionType")),
			Target:                  r.Str("Target"),
			MigrationLevel:          r.Int("MigrationLevel"),
			ExtensibleMembers:       r.StrMap("ExtensibleMembers"),
			AllowStatefulReconnects: r.Bool("AllowStatefulReconnects"),
		}
	case TypeHandshakeResponse:
		msg = &HandshakeResponse{
			ErrorMessage:     r.Str("ErrorMessage"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
			ConnectionID:     r.Str("ConnectionId"),
		}
	case TypePing:
		msg = &Ping{
			Messages: r.StrList("Messages"),
		}
	case TypeOpenConnection:
		msg = &OpenConnection{
			ConnectionID:     r.Str("ConnectionId"),
			Claims:           r.StrMap("Claims"),
			Headers:          r.StrListMap("Headers"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCloseConnection:
		msg = &CloseConnection{
			ConnectionID:     r.Str("ConnectionId"),
			ErrorMessage:     r.Str("ErrorMessage"),
			Headers:          r.StrListMap("Headers"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeConnectionData:
		msg = &ConnectionData{
			ConnectionID:     r.Str("ConnectionId"),
			Payload:          r.Bin("Payload"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeMultiConnectionData:
		msg = &MultiConnectionData{
			ConnectionList:   r.StrList("ConnectionList"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeUserData:
		msg = &UserData{
			UserID:           r.Str("UserId"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeMultiUserData:
		msg = &MultiUserData{
			UserList:         r.StrList("UserList"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeBroadcastData:
		msg = &BroadcastData{
			ExcludedList:     r.StrList("ExcludedList"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeJoinGroup:
		msg = &JoinGroup{
			ConnectionID:     r.Str("ConnectionId"),
			GroupName:        r.Str("GroupName"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeLeaveGroup:
		msg = &LeaveGroup{
			ConnectionID:     r.Str("ConnectionId"),
			GroupName:        r.Str("GroupName"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeGroupBroadcastData:
		msg = &GroupBroadcastData{
			GroupName:        r.Str("GroupName"),
			ExcludedList:     r.StrList("ExcludedList"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
			ExcludedUserList: r.StrList("ExcludedUserList"),
			CallerUserID:     r.Str("CallerUserId"),
		}
	case TypeMultiGroupBroadcastData:
		msg = &MultiGroupBroadcastData{
			GroupList:        r.StrList("GroupList"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeUserJoinGroup:
		msg = &UserJoinGroup{
			UserID:           r.Str("UserId"),
			GroupName:        r.Str("GroupName"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeUserLeaveGroup:
		msg = &UserLeaveGroup{
			UserID:           r.Str("UserId"),
			GroupName:        r.Str("GroupName"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeJoinGroupWithAck:
		msg = &JoinGroupWithAck{
			ConnectionID:     r.Str("ConnectionId"),
			GroupName:        r.Str("GroupName"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeLeaveGroupWithAck:
		msg = &LeaveGroupWithAck{
			ConnectionID:     r.Str("ConnectionId"),
			GroupName:        r.Str("GroupName"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeAck:
		msg = &AckMessage{
			AckID:            r.Int("AckId"),
			Status:           AckStatus(r.Int("Status")),
			Message:          r.Str("Message"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
			Payload:          r.Bin("Payload"),
		}
	case TypeCheckUserInGroupWithAck:
		msg = &CheckUserInGroupWithAck{
			UserID:           r.Str("UserId"),
			GroupName:        r.Str("GroupName"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeServiceEvent:
		msg = &ServiceEvent{
			ObjectType:       r.Int("Type"),
			ID:               r.Str("Id"),
			Kind:             r.Int("Kind"),
			Message:          r.Str("Message"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCheckGroupExistenceWithAck:
		msg = &CheckGroupExistenceWithAck{
			GroupName:        r.Str("GroupName"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCheckConnectionExistenceWithAck:
		msg = &CheckConnectionExistenceWithAck{
			ConnectionID:     r.Str("ConnectionId"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCheckUserExistenceWithAck:
		msg = &CheckUserExistenceWithAck{
			UserID:           r.Str("UserId"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeUserJoinGroupWithAck:
		msg = &UserJoinGroupWithAck{
			UserID:           r.Str("UserId"),
			GroupName:        r.Str("GroupName"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeUserLeaveGroupWithAck:
		msg = &UserLeaveGroupWithAck{
			UserID:           r.Str("UserId"),
			GroupName:        r.Str("GroupName"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeAccessKeyRequest:
		msg = &AccessKeyRequest{
			Token:            r.Str("Token"),
			Kid:              r.Str("Kid"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeAccessKeyResponse:
		msg = &AccessKeyResponse{
			Kid:              r.Str("Kid"),
			AccessKey:        r.Str("AccessKey"),
			ErrorType:        r.Str("ErrorType"),
			ErrorMessage:     r.Str("ErrorMessage"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCloseConnectionWithAck:
		msg = &CloseConnectionWithAck{
			ConnectionID:     r.Str("ConnectionId"),
			Reason:           r.Str("Reason"),
			AckID:            r.Int("AckId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCloseConnectionsWithAck:
		msg = &CloseConnectionsWithAck{
			Reason:           r.Str("Reason"),
			AckID:            r.Int("AckId"),
			Excluded:         r.StrList("Excluded"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCloseUserConnectionsWithAck:
		msg = &CloseUserConnectionsWithAck{
			UserID:           r.Str("UserId"),
			Reason:           r.Str("Reason"),
			AckID:            r.Int("AckId"),
			Excluded:         r.StrList("Excluded"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeCloseGroupConnectionsWithAck:
		msg = &CloseGroupConnectionsWithAck{
			GroupName:        r.Str("GroupName"),
			Reason:           r.Str("Reason"),
			AckID:            r.Int("AckId"),
			Excluded:         r.StrList("Excluded"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeClientInvocation:
		msg = &ClientInvocation{
			InvocationID:     r.Str("InvocationId"),
			ConnectionID:     r.Str("ConnectionId"),
			CallerServerID:   r.Str("CallerServerId"),
			Payloads:         r.BinMap("Payloads"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeClientCompletion:
		msg = &ClientCompletion{
			InvocationID:     r.Str("InvocationId"),
			ConnectionID:     r.Str("ConnectionId"),
			CallerServerID:   r.Str("CallerServerId"),
			Protocol:         r.Str("Protocol"),
			Payload:          r.Bin("Payload"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeErrorCompletion:
		msg = &ErrorCompletion{
			InvocationID:     r.Str("InvocationId"),
			ConnectionID:     r.Str("ConnectionId"),
			CallerServerID:   r.Str("CallerServerId"),
			Error:            r.Str("Error"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeServiceMapping:
		msg = &ServiceMapping{
			InvocationID:     r.Str("InvocationId"),
			ConnectionID:     r.Str("ConnectionId"),
			InstanceID:       r.Str("InstanceId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeConnectionReconnect:
		msg = &ConnectionReconnect{
			ConnectionID:     r.Str("ConnectionId"),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeConnectionFlowControl:
		msg = &ConnectionFlowControl{
			ConnectionID:     r.Str("ConnectionId"),
			ConnectionType:   ConnectionKind(r.Int("ConnectionType")),
			Operation:        FlowControlOperation(r.Int("Operation")),
			ExtensionMembers: r.StrMap("ExtensionMembers"),
		}
	case TypeGroupMemberQuery:
		msg = &GroupMemberQuery{
			ExtensionMembers:  r.StrMap("ExtensionMembers"),
			GroupName:         r.Str("GroupName"),
			AckID:             r.Int("AckId"),
			Max:               r.Int("Max"),
			ContinuationToken: r.Str("ContinuationToken"),
		}
	default:
		return nil, &UnknownTypeError{Type: mt}
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return msg, nil
}
