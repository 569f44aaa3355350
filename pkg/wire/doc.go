// Package wire defines the closed catalog of messages exchanged between the peers
// of a retinue session, the envelope they travel in, and the Redis key and channel
// patterns the session medium uses.
//
// # Overview
//
// One peer in a session is the authority. It decides every companion state change
// and broadcasts the outcome as a StateChanged message. Every other peer is a replica
// that applies outcomes it receives and never decides them itself.
//
// Peers only ever talk in terms of the Message types declared here. A Message is an
// immutable value: a forwarded outcome is always a newly built message.
//
// # Envelope
//
// Every frame on the network is a JSON Envelope carrying the message kind, the
// sending peer, the target peer (or the broadcast flag) and the kind-specific payload:
//
//	frame, err := wire.Encode(env, &wire.ClaimRequest{Entity: "abigail"})
//	env, msg, err := wire.Decode(frame)
//
// Decode switches over every Kind. An unknown kind is a protocol desync, reported
// as ErrUnknownKind.
//
// # Inventory blobs
//
// A companion's bag travels inside InventoryHandoff as a length-prefixed binary
// encoding, base64-armoured so it fits a text field. EncodeBlob and DecodeBlob
// round-trip exactly: same items, same stacks, same order.
//
// # Multi-Session Support
//
// All Redis keys and channels are namespaced by session name, so several sessions
// can share one Redis server.
package wire
