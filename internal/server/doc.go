// Package server implements the linechat relay: a line-oriented chat server
// that fans every line a peer sends out to every other connected peer.
//
// The implementation is organized into specialized files for configuration,
// the peer registry and outboxes, per-connection sessions, the TCP acceptor,
// and the optional WebSocket gateway, so every transport shares the same
// Relay and Registry.
package server
