package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, m ServiceMessage) ServiceMessage {
	t.Helper()
	frame := EncodeMessage(m)
	got, consumed, err := TryDecodeMessage(frame)
	if err != nil {
		t.Fatalf("TryDecodeMessage(%s): %v", m.Type(), err)
	}
	if consumed != len(frame) {
		t.Fatalf("TryDecodeMessage(%s): consumed %d of %d bytes", m.Type(), consumed, len(frame))
	}
	return got
}

func TestRoundTripAllMessages(t *testing.T) {
	ext := map[string]string{"region": "westus", "trace": "abc"}
	payloads := map[string][]byte{"json": []byte(`{"v":1}`), "messagepack": {0x92, 0x01}}
	headers := map[string][]string{"Accept": {"text/html", "application/json"}}

	tests := []ServiceMessage{
		&HandshakeRequest{
			Version:                 1,
			ConnectionType:          ConnectionKindOnDemand,
			Target:                  "instance-7",
			MigrationLevel:          2,
			ExtensibleMembers:       ext,
			AllowStatefulReconnects: true,
		},
		&HandshakeResponse{
			ErrorMessage:     "quota exceeded",
			ExtensionMembers: ext,
			ConnectionID:     "conn-1",
		},
		&Ping{Messages: []string{"echo", "id-42"}},
		&OpenConnection{
			ConnectionID:     "client-1",
			Claims:           map[string]string{"sub": "user-a"},
			Headers:          headers,
			ExtensionMembers: ext,
		},
		&CloseConnection{
			ConnectionID:     "client-1",
			ErrorMessage:     "kicked",
			Headers:          headers,
			ExtensionMembers: ext,
		},
		&ConnectionData{
			ConnectionID:     "client-1",
			Payload:          []byte{1, 2, 3, 4},
			ExtensionMembers: ext,
		},
		&MultiConnectionData{
			ConnectionList:   []string{"c1", "c2"},
			Payloads:         payloads,
			ExtensionMembers: ext,
		},
		&UserData{UserID: "user-a", Payloads: payloads, ExtensionMembers: ext},
		&MultiUserData{UserList: []string{"u1", "u2"}, Payloads: payloads, ExtensionMembers: ext},
		&BroadcastData{ExcludedList: []string{"c9"}, Payloads: payloads, ExtensionMembers: ext},
		&JoinGroup{ConnectionID: "c1", GroupName: "g1", ExtensionMembers: ext},
		&LeaveGroup{ConnectionID: "c1", GroupName: "g1", ExtensionMembers: ext},
		&GroupBroadcastData{
			GroupName:        "g1",
			ExcludedList:     []string{"c3"},
			Payloads:         payloads,
			ExtensionMembers: ext,
			ExcludedUserList: []string{"u3"},
			CallerUserID:     "u1",
		},
		&MultiGroupBroadcastData{GroupList: []string{"g1", "g2"}, Payloads: payloads, ExtensionMembers: ext},
		&UserJoinGroup{UserID: "u1", GroupName: "g1", ExtensionMembers: ext},
		&UserLeaveGroup{UserID: "u1", GroupName: "g1", ExtensionMembers: ext},
		&JoinGroupWithAck{ConnectionID: "c1", GroupName: "g1", AckID: 7, ExtensionMembers: ext},
		&LeaveGroupWithAck{ConnectionID: "c1", GroupName: "g1", AckID: 8, ExtensionMembers: ext},
		&AckMessage{
			AckID:            7,
			Status:           AckOk,
			Message:          "done",
			ExtensionMembers: ext,
			Payload:          []byte{0xaa},
		},
		&CheckUserInGroupWithAck{UserID: "u1", GroupName: "g1", AckID: 9, ExtensionMembers: ext},
		&ServiceEvent{ObjectType: 2, ID: "g1", Kind: 1, Message: "group removed", ExtensionMembers: ext},
		&CheckGroupExistenceWithAck{GroupName: "g1", AckID: 10, ExtensionMembers: ext},
		&CheckConnectionExistenceWithAck{ConnectionID: "c1", AckID: 11, ExtensionMembers: ext},
		&CheckUserExistenceWithAck{UserID: "u1", AckID: 12, ExtensionMembers: ext},
		&UserJoinGroupWithAck{UserID: "u1", GroupName: "g1", AckID: 13, ExtensionMembers: ext},
		&UserLeaveGroupWithAck{UserID: "u1", GroupName: "g1", AckID: 14, ExtensionMembers: ext},
		&AccessKeyRequest{Token: "jwt-token", Kid: "key-1", ExtensionMembers: ext},
		&AccessKeyResponse{
			Kid:              "key-1",
			AccessKey:        "secret",
			ErrorType:        "Unauthorized",
			ErrorMessage:     "expired",
			ExtensionMembers: ext,
		},
		&CloseConnectionWithAck{ConnectionID: "c1", Reason: "bye", AckID: 15, ExtensionMembers: ext},
		&CloseConnectionsWithAck{Reason: "drain", AckID: 16, Excluded: []string{"c2"}, ExtensionMembers: ext},
		&CloseUserConnectionsWithAck{
			UserID:           "u1",
			Reason:           "drain",
			AckID:            17,
			Excluded:         []string{"c2"},
			ExtensionMembers: ext,
		},
		&CloseGroupConnectionsWithAck{
			GroupName:        "g1",
			Reason:           "drain",
			AckID:            18,
			Excluded:         []string{"c2"},
			ExtensionMembers: ext,
		},
		&ClientInvocation{
			InvocationID:     "inv-1",
			ConnectionID:     "c1",
			CallerServerID:   "srv-1",
			Payloads:         payloads,
			ExtensionMembers: ext,
		},
		&ClientCompletion{
			InvocationID:     "inv-1",
			ConnectionID:     "c1",
			CallerServerID:   "srv-1",
			Protocol:         "json",
			Payload:          []byte{0x01},
			ExtensionMembers: ext,
		},
		&ErrorCompletion{
			InvocationID:     "inv-1",
			ConnectionID:     "c1",
			CallerServerID:   "srv-1",
			Error:            "handler panicked",
			ExtensionMembers: ext,
		},
		&ServiceMapping{InvocationID: "inv-1", ConnectionID: "c1", InstanceID: "inst-1", ExtensionMembers: ext},
		&ConnectionReconnect{ConnectionID: "c1", ExtensionMembers: ext},
		&ConnectionFlowControl{
			ConnectionID:     "c1",
			ConnectionType:   ConnectionKindDefault,
			Operation:        FlowControlPause,
			ExtensionMembers: ext,
		},
		&GroupMemberQuery{
			ExtensionMembers:  ext,
			GroupName:         "g1",
			AckID:             19,
			Max:               100,
			ContinuationToken: "page-2",
		},
	}

	for _, want := range tests {
		t.Run(want.Type().String(), func(t *testing.T) {
			got := roundTrip(t, want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, want)
			}
		})
	}
}

func TestRoundTripOmittedOptionals(t *testing.T) {
	tests := []ServiceMessage{
		&HandshakeRequest{Version: 1},
		&HandshakeResponse{},
		&Ping{},
		&ConnectionData{ConnectionID: "c1"},
		&AckMessage{AckID: 3, Status: AckNotFound},
		&BroadcastData{Payloads: map[string][]byte{"json": []byte("x")}},
		&GroupBroadcastData{GroupName: "g1"},
		&GroupMemberQuery{GroupName: "g1", AckID: 2},
	}
	for _, want := range tests {
		t.Run(want.Type().String(), func(t *testing.T) {
			got := roundTrip(t, want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, want)
			}
		})
	}
}

func TestEncodeTrimsTrailingDefaults(t *testing.T) {
	// Both carry only the leading fields; the trailing optionals must not
	// lengthen the frame.
	bare := EncodeMessage(&ConnectionData{ConnectionID: "c1", Payload: []byte("hi")})
	full := EncodeMessage(&ConnectionData{
		ConnectionID:     "c1",
		Payload:          []byte("hi"),
		ExtensionMembers: map[string]string{},
	})
	if len(bare) != len(full) {
		t.Errorf("empty trailing map not trimmed: %d != %d bytes", len(bare), len(full))
	}

	ping := EncodeMessage(&Ping{})
	// length prefix, element count, tagged type discriminant.
	if len(ping) != 4 {
		t.Errorf("keepalive ping = %d bytes, want 4", len(ping))
	}
}

func TestBroadcastDataTwoProtocolPayloads(t *testing.T) {
	want := &BroadcastData{
		Payloads: map[string][]byte{
			"json":        []byte(`{"target":"x"}`),
			"messagepack": {0x91, 0xa1, 0x78},
		},
	}
	got := roundTrip(t, want).(*BroadcastData)
	if len(got.Payloads) != 2 {
		t.Fatalf("payload count = %d, want 2", len(got.Payloads))
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestTryDecodePartialFrame(t *testing.T) {
	frame := EncodeMessage(&OpenConnection{ConnectionID: "c1", Claims: map[string]string{"sub": "u"}})
	for cut := 0; cut < len(frame); cut++ {
		_, consumed, err := TryDecodeMessage(frame[:cut])
		if !errors.Is(err, ErrNeedMoreData) {
			t.Fatalf("cut=%d: err = %v, want ErrNeedMoreData", cut, err)
		}
		if consumed != 0 {
			t.Fatalf("cut=%d: consumed = %d, want 0", cut, consumed)
		}
	}
}

func TestTryDecodeMultipleFrames(t *testing.T) {
	first := EncodeMessage(&Ping{})
	second := EncodeMessage(&ConnectionData{ConnectionID: "c1", Payload: []byte("x")})
	buf := append(append([]byte{}, first...), second...)

	m1, n1, err := TryDecodeMessage(buf)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if m1.Type() != TypePing || n1 != len(first) {
		t.Fatalf("first frame: type %s consumed %d, want %s consumed %d",
			m1.Type(), n1, TypePing, len(first))
	}
	m2, n2, err := TryDecodeMessage(buf[n1:])
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if m2.Type() != TypeConnectionData || n2 != len(second) {
		t.Fatalf("second frame: type %s consumed %d, want %s consumed %d",
			m2.Type(), n2, TypeConnectionData, len(second))
	}
}

func TestTryDecodeFrameTooLarge(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(HardMaxAllocation + 1)
	if _, _, err := TryDecodeMessage(e.Bytes()); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func buildFrame(w *fieldWriter) []byte {
	body := NewEncoderWithCap(64)
	w.encodeTo(body)
	out := NewEncoderWithCap(body.Len() + 4)
	out.WriteUvarint(uint64(body.Len()))
	out.WriteBytes(body.Bytes())
	return out.Bytes()
}

func TestDecodeUnknownType(t *testing.T) {
	w := newFieldWriter()
	w.Int(99)
	_, _, err := TryDecodeMessage(buildFrame(w))
	var ute *UnknownTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("err = %v, want UnknownTypeError", err)
	}
	if ute.Type != 99 {
		t.Errorf("unknown type = %d, want 99", int64(ute.Type))
	}
}

func TestDecodeFieldTypeMismatch(t *testing.T) {
	// ConnectionData's first field must be a string; send an int instead.
	w := newFieldWriter()
	w.Int(int64(TypeConnectionData))
	w.Int(42)
	_, _, err := TryDecodeMessage(buildFrame(w))
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldError", err)
	}
	if fe.Field != "ConnectionId" {
		t.Errorf("field = %q, want %q", fe.Field, "ConnectionId")
	}
	if fe.Want != "string" || fe.Got != "int" {
		t.Errorf("want/got = %q/%q, want string/int", fe.Want, fe.Got)
	}
}

func TestDecodeSkipsUnknownTrailingFields(t *testing.T) {
	// A newer peer appends fields this decoder has never heard of. They
	// must be skipped without disturbing the known prefix.
	w := newFieldWriter()
	w.Int(int64(TypeConnectionData))
	w.Str("c1")
	w.Bin([]byte("payload"))
	w.StrMap(map[string]string{"k": "v"})
	w.Str("future-field")
	w.StrListMap(map[string][]string{"h": {"a", "b"}})

	msg, consumed, err := TryDecodeMessage(buildFrame(w))
	if err != nil {
		t.Fatalf("TryDecodeMessage: %v", err)
	}
	if consumed != len(buildFrame(w)) {
		t.Errorf("consumed %d bytes, want the whole frame", consumed)
	}
	cd, ok := msg.(*ConnectionData)
	if !ok {
		t.Fatalf("decoded %T, want *ConnectionData", msg)
	}
	want := &ConnectionData{
		ConnectionID:     "c1",
		Payload:          []byte("payload"),
		ExtensionMembers: map[string]string{"k": "v"},
	}
	if !reflect.DeepEqual(cd, want) {
		t.Errorf("decoded %#v, want %#v", cd, want)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	frame := EncodeMessage(&ConnectionData{ConnectionID: "c1", Payload: []byte("0123456789")})
	// Keep the length prefix honest but lie about the string length inside
	// by truncating the body and re-prefixing.
	body := frame[1:]
	cut := body[:len(body)-4]
	e := NewEncoder()
	e.WriteUvarint(uint64(len(cut)))
	e.WriteBytes(cut)
	_, _, err := TryDecodeMessage(e.Bytes())
	if err == nil || errors.Is(err, ErrNeedMoreData) {
		t.Errorf("err = %v, want a hard decode error", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	if got := TypeBroadcastData.String(); got != "BroadcastData" {
		t.Errorf("String() = %q, want %q", got, "BroadcastData")
	}
	if got := MessageType(15).String(); got != "Unknown" {
		t.Errorf("String() = %q, want %q", got, "Unknown")
	}
}
