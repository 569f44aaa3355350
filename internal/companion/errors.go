package companion

import (
	"errors"
	"fmt"

	"github.com/dyluth/retinue/pkg/wire"
)

// Setup errors. These mean the machine was wired wrong and are never retried.
var (
	ErrNotSetup     = errors.New("state machine is not set up")
	ErrAlreadySetup = errors.New("state machine is already set up")
	ErrUnknownState = errors.New("state is not registered in the state table")
)

// ErrUnknownEntity is returned by Registry.Lookup. An inbound message naming an
// entity this peer does not track means the peers have diverged.
var ErrUnknownEntity = fmt.Errorf("%w: unknown entity", wire.ErrDesync)

// ErrNotAuthority is returned when a replica attempts an authority-only operation.
var ErrNotAuthority = errors.New("operation requires the session authority")

// ErrNotOwner is returned when a peer acts on a companion it does not own.
var ErrNotOwner = errors.New("peer does not own the companion")
