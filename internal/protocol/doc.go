// Package protocol owns the chess move-exchange wire contract.
//
// Ownership boundary:
// - position and board text codecs
// - fixed-length frame encode/decode for Move and Quit messages
// - codec error taxonomy
//
// Everything here is a pure transform. Stream handling lives in internal/transport.
package protocol
