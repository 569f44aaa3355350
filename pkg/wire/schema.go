package wire

import "fmt"

// Redis key and channel helpers
//
// Key pattern: retinue:{session}:{entity}
// Channel pattern: retinue:{session}:peer:{peer_id}

// PeerChannel returns the inbox channel a peer subscribes to.
// Pattern: retinue:{session}:peer:{peer_id}
func PeerChannel(session string, peer PeerID) string {
	return fmt.Sprintf("retinue:%s:peer:%s", session, peer)
}

// RosterKey returns the SET holding the ids of every peer in the session.
// Pattern: retinue:{session}:peers
func RosterKey(session string) string {
	return fmt.Sprintf("retinue:%s:peers", session)
}

// AuthorityKey returns the string key naming the authoritative peer.
// Pattern: retinue:{session}:authority
func AuthorityKey(session string) string {
	return fmt.Sprintf("retinue:%s:authority", session)
}

// SessionPattern matches every peer channel of a session, for PSUBSCRIBE.
// Pattern: retinue:{session}:peer:*
func SessionPattern(session string) string {
	return fmt.Sprintf("retinue:%s:peer:*", session)
}
