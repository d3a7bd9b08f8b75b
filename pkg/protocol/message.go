package protocol

// MessageType is the integer discriminant carried as the first array
// element of every frame.
type MessageType int64

// Wire message discriminants. Value 15 is reserved and unassigned.
const (
	TypeHandshakeRequest                MessageType = 1
	TypeHandshakeResponse               MessageType = 2
	TypePing                            MessageType = 3
	TypeOpenConnection                  MessageType = 4
	TypeCloseConnection                 MessageType = 5
	TypeConnectionData                  MessageType = 6
	TypeMultiConnectionData             MessageType = 7
	TypeUserData                        MessageType = 8
	TypeMultiUserData                   MessageType = 9
	TypeBroadcastData                   MessageType = 10
	TypeJoinGroup                       MessageType = 11
	TypeLeaveGroup                      MessageType = 12
	TypeGroupBroadcastData              MessageType = 13
	TypeMultiGroupBroadcastData         MessageType = 14
	TypeUserJoinGroup                   MessageType = 16
	TypeUserLeaveGroup                  MessageType = 17
	TypeJoinGroupWithAck                MessageType = 18
	TypeLeaveGroupWithAck               MessageType = 19
	TypeAck                             MessageType = 20
	TypeCheckUserInGroupWithAck         MessageType = 21
	TypeServiceEvent                    MessageType = 22
	TypeCheckGroupExistenceWithAck      MessageType = 23
	TypeCheckConnectionExistenceWithAck MessageType = 24
	TypeCheckUserExistenceWithAck       MessageType = 25
	TypeUserJoinGroupWithAck            MessageType = 26
	TypeUserLeaveGroupWithAck           MessageType = 27
	TypeAccessKeyRequest                MessageType = 28
	TypeAccessKeyResponse               MessageType = 29
	TypeCloseConnectionWithAck          MessageType = 30
	TypeCloseConnectionsWithAck         MessageType = 31
	TypeCloseUserConnectionsWithAck     MessageType = 32
	TypeCloseGroupConnectionsWithAck    MessageType = 33
	TypeClientInvocation                MessageType = 34
	TypeClientCompletion                MessageType = 35
	TypeErrorCompletion                 MessageType = 36
	TypeServiceMapping                  MessageType = 37
	TypeConnectionReconnect             MessageType = 38
	TypeConnectionFlowControl           MessageType = 39
	TypeGroupMemberQuery                MessageType = 40
)

// String returns the message-type name.
func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

var typeNames = map[MessageType]string{
	TypeHandshakeRequest:                "HandshakeRequest",
	TypeHandshakeResponse:               "HandshakeResponse",
	TypePing:                            "Ping",
	TypeOpenConnection:                  "OpenConnection",
	TypeCloseConnection:                 "CloseConnection",
	TypeConnectionData:                  "ConnectionData",
	TypeMultiConnectionData:             "MultiConnectionData",
	TypeUserData:                        "UserData",
	TypeMultiUserData:                   "MultiUserData",
	TypeBroadcastData:                   "BroadcastData",
	TypeJoinGroup:                       "JoinGroup",
	TypeLeaveGroup:                      "LeaveGroup",
	TypeGroupBroadcastData:              "GroupBroadcastData",
	TypeMultiGroupBroadcastData:         "MultiGroupBroadcastData",
	TypeUserJoinGroup:                   "UserJoinGroup",
	TypeUserLeaveGroup:                  "UserLeaveGroup",
	TypeJoinGroupWithAck:                "JoinGroupWithAck",
	TypeLeaveGroupWithAck:               "LeaveGroupWithAck",
	TypeAck:                             "Ack",
	TypeCheckUserInGroupWithAck:         "CheckUserInGroupWithAck",
	TypeServiceEvent:                    "ServiceEvent",
	TypeCheckGroupExistenceWithAck:      "CheckGroupExistenceWithAck",
	TypeCheckConnectionExistenceWithAck: "CheckConnectionExistenceWithAck",
	TypeCheckUserExistenceWithAck:       "CheckUserExistenceWithAck",
	TypeUserJoinGroupWithAck:            "UserJoinGroupWithAck",
	TypeUserLeaveGroupWithAck:           "UserLeaveGroupWithAck",
	TypeAccessKeyRequest:                "AccessKeyRequest",
	TypeAccessKeyResponse:               "AccessKeyResponse",
	TypeCloseConnectionWithAck:          "CloseConnectionWithAck",
	TypeCloseConnectionsWithAck:         "CloseConnectionsWithAck",
	TypeCloseUserConnectionsWithAck:     "CloseUserConnectionsWithAck",
	TypeCloseGroupConnectionsWithAck:    "CloseGroupConnectionsWithAck",
	TypeClientInvocation:                "ClientInvocation",
	TypeClientCompletion:                "ClientCompletion",
	TypeErrorCompletion:                 "ErrorCompletion",
	TypeServiceMapping:                  "ServiceMapping",
	TypeConnectionReconnect:             "ConnectionReconnect",
	TypeConnectionFlowControl:           "ConnectionFlowControl",
	TypeGroupMemberQuery:                "GroupMemberQuery",
}

// ConnectionKind identifies the role of a physical connection in the
// handshake.
type ConnectionKind int64

const (
	ConnectionKindDefault  ConnectionKind = 0
	ConnectionKindOnDemand ConnectionKind = 1
	ConnectionKindWeak     ConnectionKind = 2
)

// String returns the connection-kind name.
func (k ConnectionKind) String() string {
	switch k {
	case ConnectionKindDefault:
		return "Default"
	case ConnectionKindOnDemand:
		return "OnDemand"
	case ConnectionKindWeak:
		return "Weak"
	default:
		return "Unknown"
	}
}

// AckStatus is the resolution status carried in an Ack message.
type AckStatus int64

const (
	AckOk                  AckStatus = 1
	AckNotFound            AckStatus = 2
	AckTimeout             AckStatus = 3
	AckInternalServerError AckStatus = 5
)

// String returns the ack-status name.
func (s AckStatus) String() string {
	switch s {
	case AckOk:
		return "Ok"
	case AckNotFound:
		return "NotFound"
	case AckTimeout:
		return "Timeout"
	case AckInternalServerError:
		return "InternalServerError"
	default:
		return "Unknown"
	}
}

// FlowControlOperation is the operation carried in a ConnectionFlowControl
// message.
type FlowControlOperation int64

const (
	FlowControlPause    FlowControlOperation = 1
	FlowControlPauseAck FlowControlOperation = 2
	FlowControlResume   FlowControlOperation = 3
	FlowControlOffline  FlowControlOperation = 4
)

// String returns the flow-control operation name.
func (op FlowControlOperation) String() string {
	switch op {
	case FlowControlPause:
		return "Pause"
	case FlowControlPauseAck:
		return "PauseAck"
	case FlowControlResume:
		return "Resume"
	case FlowControlOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// ServiceMessage is the closed sum of all wire message variants. A message
// is immutable once handed to the write path. The sealed marker method
// keeps the variant set closed to this package.
type ServiceMessage interface {
	// Type returns the wire discriminant for this variant.
	Type() MessageType

	encodeFields(w *fieldWriter)
	sealed()
}

// HandshakeRequest opens a physical connection (type 1).
type HandshakeRequest struct {
	Version                 int64
	ConnectionType          ConnectionKind
	Target                  string
	MigrationLevel          int64
	ExtensibleMembers       map[string]string
	AllowStatefulReconnects bool
}

func (*HandshakeRequest) Type() MessageType { return TypeHandshakeRequest }
func (*HandshakeRequest) sealed()           {}

func (m *HandshakeRequest) encodeFields(w *fieldWriter) {
	w.Int(m.Version)
	w.Int(int64(m.ConnectionType))
	w.Str(m.Target)
	w.Int(m.MigrationLevel)
	w.StrMap(m.ExtensibleMembers)
	w.Bool(m.AllowStatefulReconnects)
}

// HandshakeResponse answers a HandshakeRequest (type 2). A non-empty
// ErrorMessage is fatal for the connection attempt.
type HandshakeResponse struct {
	ErrorMessage     string
	ExtensionMembers map[string]string
	ConnectionID     string
}

func (*HandshakeResponse) Type() MessageType { return TypeHandshakeResponse }
func (*HandshakeResponse) sealed()           {}

func (m *HandshakeResponse) encodeFields(w *fieldWriter) {
	w.Str(m.ErrorMessage)
	w.StrMap(m.ExtensionMembers)
	w.Str(m.ConnectionID)
}

// Ping carries the keepalive/status sub-protocol (type 3). Messages is a
// flat list of (key, value) string pairs; an empty list is a bare
// keepalive. See ping.go for the recognized tokens.
type Ping struct {
	Messages []string
}

func (*Ping) Type() MessageType { return TypePing }
func (*Ping) sealed()           {}

func (m *Ping) encodeFields(w *fieldWriter) {
	w.StrList(m.Messages)
}

// OpenConnection announces a new logical client connection (type 4).
type OpenConnection struct {
	ConnectionID     string
	Claims           map[string]string
	Headers          map[string][]string
	ExtensionMembers map[string]string
}

func (*OpenConnection) Type() MessageType { return TypeOpenConnection }
func (*OpenConnection) sealed()           {}

func (m *OpenConnection) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.StrMap(m.Claims)
	w.StrListMap(m.Headers)
	w.StrMap(m.ExtensionMembers)
}

// CloseConnection closes a logical client connection (type 5).
type CloseConnection struct {
	ConnectionID     string
	ErrorMessage     string
	Headers          map[string][]string
	ExtensionMembers map[string]string
}

func (*CloseConnection) Type() MessageType { return TypeCloseConnection }
func (*CloseConnection) sealed()           {}

func (m *CloseConnection) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Str(m.ErrorMessage)
	w.StrListMap(m.Headers)
	w.StrMap(m.ExtensionMembers)
}

// ConnectionData carries raw bytes for one logical connection (type 6).
type ConnectionData struct {
	ConnectionID     string
	Payload          []byte
	ExtensionMembers map[string]string
}

func (*ConnectionData) Type() MessageType { return TypeConnectionData }
func (*ConnectionData) sealed()           {}

func (m *ConnectionData) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Bin(m.Payload)
	w.StrMap(m.ExtensionMembers)
}

// MultiConnectionData fans data out to a list of connections (type 7).
type MultiConnectionData struct {
	ConnectionList   []string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
}

func (*MultiConnectionData) Type() MessageType { return TypeMultiConnectionData }
func (*MultiConnectionData) sealed()           {}

func (m *MultiConnectionData) encodeFields(w *fieldWriter) {
	w.StrList(m.ConnectionList)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
}

// UserData sends data to every connection of one user (type 8).
type UserData struct {
	UserID           string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
}

func (*UserData) Type() MessageType { return TypeUserData }
func (*UserData) sealed()           {}

func (m *UserData) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
}

// MultiUserData sends data to every connection of several users (type 9).
type MultiUserData struct {
	UserList         []string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
}

func (*MultiUserData) Type() MessageType { return TypeMultiUserData }
func (*MultiUserData) sealed()           {}

func (m *MultiUserData) encodeFields(w *fieldWriter) {
	w.StrList(m.UserList)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
}

// BroadcastData sends data to all connections except the excluded list
// (type 10).
type BroadcastData struct {
	ExcludedList     []string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
}

func (*BroadcastData) Type() MessageType { return TypeBroadcastData }
func (*BroadcastData) sealed()           {}

func (m *BroadcastData) encodeFields(w *fieldWriter) {
	w.StrList(m.ExcludedList)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
}

// JoinGroup adds a connection to a group (type 11).
type JoinGroup struct {
	ConnectionID     string
	GroupName        string
	ExtensionMembers map[string]string
}

func (*JoinGroup) Type() MessageType { return TypeJoinGroup }
func (*JoinGroup) sealed()           {}

func (m *JoinGroup) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Str(m.GroupName)
	w.StrMap(m.ExtensionMembers)
}

// LeaveGroup removes a connection from a group (type 12).
type LeaveGroup struct {
	ConnectionID     string
	GroupName        string
	ExtensionMembers map[string]string
}

func (*LeaveGroup) Type() MessageType { return TypeLeaveGroup }
func (*LeaveGroup) sealed()           {}

func (m *LeaveGroup) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Str(m.GroupName)
	w.StrMap(m.ExtensionMembers)
}

// GroupBroadcastData sends data to a group (type 13).
type GroupBroadcastData struct {
	GroupName        string
	ExcludedList     []string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
	ExcludedUserList []string
	CallerUserID     string
}

func (*GroupBroadcastData) Type() MessageType { return TypeGroupBroadcastData }
func (*GroupBroadcastData) sealed()           {}

func (m *GroupBroadcastData) encodeFields(w *fieldWriter) {
	w.Str(m.GroupName)
	w.StrList(m.ExcludedList)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
	w.StrList(m.ExcludedUserList)
	w.Str(m.CallerUserID)
}

// MultiGroupBroadcastData sends data to several groups (type 14).
type MultiGroupBroadcastData struct {
	GroupList        []string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
}

func (*MultiGroupBroadcastData) Type() MessageType { return TypeMultiGroupBroadcastData }
func (*MultiGroupBroadcastData) sealed()           {}

func (m *MultiGroupBroadcastData) encodeFields(w *fieldWriter) {
	w.StrList(m.GroupList)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
}

// UserJoinGroup adds all connections of a user to a group (type 16).
type UserJoinGroup struct {
	UserID           string
	GroupName        string
	ExtensionMembers map[string]string
}

func (*UserJoinGroup) Type() MessageType { return TypeUserJoinGroup }
func (*UserJoinGroup) sealed()           {}

func (m *UserJoinGroup) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Str(m.GroupName)
	w.StrMap(m.ExtensionMembers)
}

// UserLeaveGroup removes all connections of a user from a group (type 17).
type UserLeaveGroup struct {
	UserID           string
	GroupName        string
	ExtensionMembers map[string]string
}

func (*UserLeaveGroup) Type() MessageType { return TypeUserLeaveGroup }
func (*UserLeaveGroup) sealed()           {}

func (m *UserLeaveGroup) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Str(m.GroupName)
	w.StrMap(m.ExtensionMembers)
}

// JoinGroupWithAck is JoinGroup with an acknowledgment id (type 18).
type JoinGroupWithAck struct {
	ConnectionID     string
	GroupName        string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*JoinGroupWithAck) Type() MessageType { return TypeJoinGroupWithAck }
func (*JoinGroupWithAck) sealed()           {}

func (m *JoinGroupWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// LeaveGroupWithAck is LeaveGroup with an acknowledgment id (type 19).
type LeaveGroupWithAck struct {
	ConnectionID     string
	GroupName        string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*LeaveGroupWithAck) Type() MessageType { return TypeLeaveGroupWithAck }
func (*LeaveGroupWithAck) sealed()           {}

func (m *LeaveGroupWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// AckMessage resolves a previously sent acknowledgeable operation (type 20).
type AckMessage struct {
	AckID            int64
	Status           AckStatus
	Message          string
	ExtensionMembers map[string]string
	Payload          []byte
}

func (*AckMessage) Type() MessageType { return TypeAck }
func (*AckMessage) sealed()           {}

func (m *AckMessage) encodeFields(w *fieldWriter) {
	w.Int(m.AckID)
	w.Int(int64(m.Status))
	w.Str(m.Message)
	w.StrMap(m.ExtensionMembers)
	w.Bin(m.Payload)
}

// CheckUserInGroupWithAck queries group membership of a user (type 21).
type CheckUserInGroupWithAck struct {
	UserID           string
	GroupName        string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*CheckUserInGroupWithAck) Type() MessageType { return TypeCheckUserInGroupWithAck }
func (*CheckUserInGroupWithAck) sealed()           {}

func (m *CheckUserInGroupWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// ServiceEvent notifies the server of a service-side event (type 22).
type ServiceEvent struct {
	ObjectType       int64
	ID               string
	Kind             int64
	Message          string
	ExtensionMembers map[string]string
}

func (*ServiceEvent) Type() MessageType { return TypeServiceEvent }
func (*ServiceEvent) sealed()           {}

func (m *ServiceEvent) encodeFields(w *fieldWriter) {
	w.Int(m.ObjectType)
	w.Str(m.ID)
	w.Int(m.Kind)
	w.Str(m.Message)
	w.StrMap(m.ExtensionMembers)
}

// CheckGroupExistenceWithAck queries whether a group has members (type 23).
type CheckGroupExistenceWithAck struct {
	GroupName        string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*CheckGroupExistenceWithAck) Type() MessageType { return TypeCheckGroupExistenceWithAck }
func (*CheckGroupExistenceWithAck) sealed()           {}

func (m *CheckGroupExistenceWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// CheckConnectionExistenceWithAck queries whether a connection exists
// (type 24).
type CheckConnectionExistenceWithAck struct {
	ConnectionID     string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*CheckConnectionExistenceWithAck) Type() MessageType {
	return TypeCheckConnectionExistenceWithAck
}
func (*CheckConnectionExistenceWithAck) sealed() {}

func (m *CheckConnectionExistenceWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// CheckUserExistenceWithAck queries whether a user has any connection
// (type 25).
type CheckUserExistenceWithAck struct {
	UserID           string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*CheckUserExistenceWithAck) Type() MessageType { return TypeCheckUserExistenceWithAck }
func (*CheckUserExistenceWithAck) sealed()           {}

func (m *CheckUserExistenceWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// UserJoinGroupWithAck is UserJoinGroup with an acknowledgment id (type 26).
type UserJoinGroupWithAck struct {
	UserID           string
	GroupName        string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*UserJoinGroupWithAck) Type() MessageType { return TypeUserJoinGroupWithAck }
func (*UserJoinGroupWithAck) sealed()           {}

func (m *UserJoinGroupWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// UserLeaveGroupWithAck is UserLeaveGroup with an acknowledgment id
// (type 27).
type UserLeaveGroupWithAck struct {
	UserID           string
	GroupName        string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*UserLeaveGroupWithAck) Type() MessageType { return TypeUserLeaveGroupWithAck }
func (*UserLeaveGroupWithAck) sealed()           {}

func (m *UserLeaveGroupWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// AccessKeyRequest requests a fresh access key (type 28).
type AccessKeyRequest struct {
	Token            string
	Kid              string
	ExtensionMembers map[string]string
}

func (*AccessKeyRequest) Type() MessageType { return TypeAccessKeyRequest }
func (*AccessKeyRequest) sealed()           {}

func (m *AccessKeyRequest) encodeFields(w *fieldWriter) {
	w.Str(m.Token)
	w.Str(m.Kid)
	w.StrMap(m.ExtensionMembers)
}

// AccessKeyResponse answers an AccessKeyRequest (type 29).
type AccessKeyResponse struct {
	Kid              string
	AccessKey        string
	ErrorType        string
	ErrorMessage     string
	ExtensionMembers map[string]string
}

func (*AccessKeyResponse) Type() MessageType { return TypeAccessKeyResponse }
func (*AccessKeyResponse) sealed()           {}

func (m *AccessKeyResponse) encodeFields(w *fieldWriter) {
	w.Str(m.Kid)
	w.Str(m.AccessKey)
	w.Str(m.ErrorType)
	w.Str(m.ErrorMessage)
	w.StrMap(m.ExtensionMembers)
}

// CloseConnectionWithAck closes one client connection with confirmation
// (type 30).
type CloseConnectionWithAck struct {
	ConnectionID     string
	Reason           string
	AckID            int64
	ExtensionMembers map[string]string
}

func (*CloseConnectionWithAck) Type() MessageType { return TypeCloseConnectionWithAck }
func (*CloseConnectionWithAck) sealed()           {}

func (m *CloseConnectionWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Str(m.Reason)
	w.Int(m.AckID)
	w.StrMap(m.ExtensionMembers)
}

// CloseConnectionsWithAck closes all client connections with confirmation
// (type 31).
type CloseConnectionsWithAck struct {
	Reason           string
	AckID            int64
	Excluded         []string
	ExtensionMembers map[string]string
}

func (*CloseConnectionsWithAck) Type() MessageType { return TypeCloseConnectionsWithAck }
func (*CloseConnectionsWithAck) sealed()           {}

func (m *CloseConnectionsWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.Reason)
	w.Int(m.AckID)
	w.StrList(m.Excluded)
	w.StrMap(m.ExtensionMembers)
}

// CloseUserConnectionsWithAck closes a user's connections with confirmation
// (type 32).
type CloseUserConnectionsWithAck struct {
	UserID           string
	Reason           string
	AckID            int64
	Excluded         []string
	ExtensionMembers map[string]string
}

func (*CloseUserConnectionsWithAck) Type() MessageType { return TypeCloseUserConnectionsWithAck }
func (*CloseUserConnectionsWithAck) sealed()           {}

func (m *CloseUserConnectionsWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.UserID)
	w.Str(m.Reason)
	w.Int(m.AckID)
	w.StrList(m.Excluded)
	w.StrMap(m.ExtensionMembers)
}

// CloseGroupConnectionsWithAck closes a group's connections with
// confirmation (type 33).
type CloseGroupConnectionsWithAck struct {
	GroupName        string
	Reason           string
	AckID            int64
	Excluded         []string
	ExtensionMembers map[string]string
}

func (*CloseGroupConnectionsWithAck) Type() MessageType { return TypeCloseGroupConnectionsWithAck }
func (*CloseGroupConnectionsWithAck) sealed()           {}

func (m *CloseGroupConnectionsWithAck) encodeFields(w *fieldWriter) {
	w.Str(m.GroupName)
	w.Str(m.Reason)
	w.Int(m.AckID)
	w.StrList(m.Excluded)
	w.StrMap(m.ExtensionMembers)
}

// ClientInvocation starts a server-to-client invocation (type 34).
type ClientInvocation struct {
	InvocationID     string
	ConnectionID     string
	CallerServerID   string
	Payloads         map[string][]byte
	ExtensionMembers map[string]string
}

func (*ClientInvocation) Type() MessageType { return TypeClientInvocation }
func (*ClientInvocation) sealed()           {}

func (m *ClientInvocation) encodeFields(w *fieldWriter) {
	w.Str(m.InvocationID)
	w.Str(m.ConnectionID)
	w.Str(m.CallerServerID)
	w.BinMap(m.Payloads)
	w.StrMap(m.ExtensionMembers)
}

// ClientCompletion carries a client's invocation result (type 35).
type ClientCompletion struct {
	InvocationID     string
	ConnectionID     string
	CallerServerID   string
	Protocol         string
	Payload          []byte
	ExtensionMembers map[string]string
}

func (*ClientCompletion) Type() MessageType { return TypeClientCompletion }
func (*ClientCompletion) sealed()           {}

func (m *ClientCompletion) encodeFields(w *fieldWriter) {
	w.Str(m.InvocationID)
	w.Str(m.ConnectionID)
	w.Str(m.CallerServerID)
	w.Str(m.Protocol)
	w.Bin(m.Payload)
	w.StrMap(m.ExtensionMembers)
}

// ErrorCompletion carries an invocation failure (type 36).
type ErrorCompletion struct {
	InvocationID     string
	ConnectionID     string
	CallerServerID   string
	Error            string
	ExtensionMembers map[string]string
}

func (*ErrorCompletion) Type() MessageType { return TypeErrorCompletion }
func (*ErrorCompletion) sealed()           {}

func (m *ErrorCompletion) encodeFields(w *fieldWriter) {
	w.Str(m.InvocationID)
	w.Str(m.ConnectionID)
	w.Str(m.CallerServerID)
	w.Str(m.Error)
	w.StrMap(m.ExtensionMembers)
}

// ServiceMapping maps an invocation to the service instance that routed it
// (type 37).
type ServiceMapping struct {
	InvocationID     string
	ConnectionID     string
	InstanceID       string
	ExtensionMembers map[string]string
}

func (*ServiceMapping) Type() MessageType { return TypeServiceMapping }
func (*ServiceMapping) sealed()           {}

func (m *ServiceMapping) encodeFields(w *fieldWriter) {
	w.Str(m.InvocationID)
	w.Str(m.ConnectionID)
	w.Str(m.InstanceID)
	w.StrMap(m.ExtensionMembers)
}

// ConnectionReconnect announces that a client reconnected with state intact
// (type 38).
type ConnectionReconnect struct {
	ConnectionID     string
	ExtensionMembers map[string]string
}

func (*ConnectionReconnect) Type() MessageType { return TypeConnectionReconnect }
func (*ConnectionReconnect) sealed()           {}

func (m *ConnectionReconnect) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.StrMap(m.ExtensionMembers)
}

// ConnectionFlowControl pauses, resumes, or offlines one physical
// connection (type 39).
type ConnectionFlowControl struct {
	ConnectionID     string
	ConnectionType   ConnectionKind
	Operation        FlowControlOperation
	ExtensionMembers map[string]string
}

func (*ConnectionFlowControl) Type() MessageType { return TypeConnectionFlowControl }
func (*ConnectionFlowControl) sealed()           {}

func (m *ConnectionFlowControl) encodeFields(w *fieldWriter) {
	w.Str(m.ConnectionID)
	w.Int(int64(m.ConnectionType))
	w.Int(int64(m.Operation))
	w.StrMap(m.ExtensionMembers)
}

// GroupMemberQuery requests a page of group members (type 40).
type GroupMemberQuery struct {
	ExtensionMembers  map[string]string
	GroupName         string
	AckID             int64
	Max               int64
	ContinuationToken string
}

func (*GroupMemberQuery) Type() MessageType { return TypeGroupMemberQuery }
func (*GroupMemberQuery) sealed()           {}

func (m *GroupMemberQuery) encodeFields(w *fieldWriter) {
	w.StrMap(m.ExtensionMembers)
	w.Str(m.GroupName)
	w.Int(m.AckID)
	w.Int(m.Max)
	w.Str(m.ContinuationToken)
}
