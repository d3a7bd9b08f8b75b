package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Ping token keys. A Ping's Messages list is a flat sequence of
// (key, value) pairs; an empty list is a bare keepalive.
const (
	pingKeyTarget  = "target"
	pingKeyStatus  = "status"
	pingKeyOffline = "offline"
	pingKeyServers = "servers"
	pingKeyEcho    = "echo"
)

// Offline token values. fin:1 asks the service to migrate clients to
// another connection before acknowledging; fin:0 drops them.
const (
	offlineValueDrop    = "fin:0"
	offlineValueMigrate = "fin:1"
	offlineValueAck     = "finack"
)

// PingKind classifies a parsed ping.
type PingKind int

const (
	PingKeepAlive PingKind = iota
	PingRebalance
	PingStatusRequest
	PingStatusResponse
	PingOfflineRequest
	PingOfflineAck
	PingServersRequest
	PingServersResponse
	PingEcho
)

// String returns the ping-kind name.
func (k PingKind) String() string {
	switch k {
	case PingKeepAlive:
		return "KeepAlive"
	case PingRebalance:
		return "Rebalance"
	case PingStatusRequest:
		return "StatusRequest"
	case PingStatusResponse:
		return "StatusResponse"
	case PingOfflineRequest:
		return "OfflineRequest"
	case PingOfflineAck:
		return "OfflineAck"
	case PingServersRequest:
		return "ServersRequest"
	case PingServersResponse:
		return "ServersResponse"
	case PingEcho:
		return "Echo"
	default:
		return "Unknown"
	}
}

// PingInfo is the parsed form of one ping token.
type PingInfo struct {
	Kind PingKind

	// InstanceID is the target instance for PingRebalance.
	InstanceID string

	// ActiveClients reports whether the service has clients for this
	// endpoint (PingStatusResponse).
	ActiveClients bool

	// Migrate reports whether clients should be migrated rather than
	// dropped (PingOfflineRequest).
	Migrate bool

	// Timestamp and Servers carry the server listing (PingServersResponse).
	Timestamp int64
	Servers   []string

	// EchoID is the opaque identifier echoed back unchanged (PingEcho).
	EchoID string
}

// KeepAlivePing builds a bare keepalive ping.
func KeepAlivePing() *Ping {
	return &Ping{}
}

// RebalancePing builds a ping asking the server to open an on-demand
// connection toward the named instance.
func RebalancePing(instanceID string) *Ping {
	return &Ping{Messages: []string{pingKeyTarget, instanceID}}
}

// StatusRequestPing builds a ping asking whether the service holds active
// clients for this endpoint.
func StatusRequestPing() *Ping {
	return &Ping{Messages: []string{pingKeyStatus, ""}}
}

// StatusResponsePing answers a status request. The value is "1" when the
// service holds active clients and "0" otherwise.
func StatusResponsePing(activeClients bool) *Ping {
	v := "0"
	if activeClients {
		v = "1"
	}
	return &Ping{Messages: []string{pingKeyStatus, v}}
}

// OfflinePing builds the graceful-offline request. migrate selects fin:1
// (migrate clients) over fin:0 (drop clients).
func OfflinePing(migrate bool) *Ping {
	v := offlineValueDrop
	if migrate {
		v = offlineValueMigrate
	}
	return &Ping{Messages: []string{pingKeyOffline, v}}
}

// OfflineAckPing builds the finack answer to an offline request.
func OfflineAckPing() *Ping {
	return &Ping{Messages: []string{pingKeyOffline, offlineValueAck}}
}

// ServersRequestPing asks the service for the servers currently connected
// to this endpoint.
func ServersRequestPing() *Ping {
	return &Ping{Messages: []string{pingKeyServers, ""}}
}

// ServersResponsePing answers a servers request. The value is the unix
// timestamp followed by a colon and the semicolon-joined server ids.
func ServersResponsePing(timestamp int64, serverIDs []string) *Ping {
	v := strconv.FormatInt(timestamp, 10) + ":" + strings.Join(serverIDs, ";")
	return &Ping{Messages: []string{pingKeyServers, v}}
}

// EchoPing builds an echo ping carrying an opaque identifier. The peer
// answers with the identical token, so the same constructor serves both
// directions.
func EchoPing(id string) *Ping {
	return &Ping{Messages: []string{pingKeyEcho, id}}
}

// ParsePing classifies every token in a ping. A ping with no recognized
// tokens (or no tokens at all) yields a single PingKeepAlive entry.
// Unrecognized keys are ignored for forward compatibility.
func ParsePing(p *Ping) []PingInfo {
	var infos []PingInfo
	msgs := p.Messages
	for i := 0; i+1 < len(msgs); i += 2 {
		key, value := msgs[i], msgs[i+1]
		switch key {
		case pingKeyTarget:
			infos = append(infos, PingInfo{Kind: PingRebalance, InstanceID: value})
		case pingKeyStatus:
			if value == "" {
				infos = append(infos, PingInfo{Kind: PingStatusRequest})
			} else {
				infos = append(infos, PingInfo{Kind: PingStatusResponse, ActiveClients: value == "1"})
			}
		case pingKeyOffline:
			switch value {
			case offlineValueAck:
				infos = append(infos, PingInfo{Kind: PingOfflineAck})
			case offlineValueMigrate:
				infos = append(infos, PingInfo{Kind: PingOfflineRequest, Migrate: true})
			case offlineValueDrop:
				infos = append(infos, PingInfo{Kind: PingOfflineRequest})
			}
		case pingKeyServers:
			if value == "" {
				infos = append(infos, PingInfo{Kind: PingServersRequest})
			} else if ts, servers, err := parseServersValue(value); err == nil {
				infos = append(infos, PingInfo{Kind: PingServersResponse, Timestamp: ts, Servers: servers})
			}
		case pingKeyEcho:
			infos = append(infos, PingInfo{Kind: PingEcho, EchoID: value})
		}
	}
	if len(infos) == 0 {
		infos = append(infos, PingInfo{Kind: PingKeepAlive})
	}
	return infos
}

// parseServersValue splits "timestamp:id1;id2;..." into its parts.
func parseServersValue(v string) (int64, []string, error) {
	idx := strings.IndexByte(v, ':')
	if idx < 0 {
		return 0, nil, fmt.Errorf("protocol: malformed servers value %q", v)
	}
	ts, err := strconv.ParseInt(v[:idx], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("protocol: malformed servers timestamp %q: %w", v[:idx], err)
	}
	rest := v[idx+1:]
	if rest == "" {
		return ts, nil, nil
	}
	return ts, strings.Split(rest, ";"), nil
}
