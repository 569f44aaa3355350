// Package session holds the explicit context every bus and machine operation
// receives: which session this is, who the local peer is, and who decides.
package session

import (
	"fmt"

	"github.com/dyluth/retinue/pkg/wire"
)

// Context identifies the local peer and the authority of a session.
type Context struct {
	Session   string
	Local     wire.PeerID
	Authority wire.PeerID
}

// IsAuthority reports whether the local peer decides companion state.
func (c Context) IsAuthority() bool {
	return c.Local == c.Authority
}

// IsLocal reports whether p is the local peer.
func (c Context) IsLocal(p wire.PeerID) bool {
	return p == c.Local
}

// Validate checks that all identities are set.
func (c Context) Validate() error {
	if c.Session == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if c.Local.IsNone() {
		return fmt.Errorf("local peer cannot be empty")
	}
	if c.Authority.IsNone() {
		return fmt.Errorf("authority peer cannot be empty")
	}
	return nil
}
