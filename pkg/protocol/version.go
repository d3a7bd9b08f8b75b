package protocol

import "fmt"

// CurrentVersion is the protocol version advertised in HandshakeRequest.
const CurrentVersion int64 = 1

// MaxMigrationLevel is the highest migration level this implementation
// understands: 0 = no migration, 1 = migrate on shutdown, 2 = migrate on
// any disconnect.
const MaxMigrationLevel int64 = 2

// VersionError reports an unsupported protocol version advertised by the
// peer during handshake.
type VersionError struct {
	Advertised int64
}

// Error returns the error message.
func (e *VersionError) Error() string {
	return fmt.Sprintf("protocol: unsupported protocol version %d (supported: %d)",
		e.Advertised, CurrentVersion)
}

// CheckVersion validates a handshake-advertised version. Versions above
// the current one are rejected; the peer is expected to downgrade.
func CheckVersion(advertised int64) error {
	if advertised <= 0 || advertised > CurrentVersion {
		return &VersionError{Advertised: advertised}
	}
	return nil
}
