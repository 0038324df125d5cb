// Package transport issues research requests to the streaming endpoint.
//
// A Client sends GET {server}/research?company=...&criteria=... and hands
// the response back unread so the body can be consumed as a stream. The
// status code is not interpreted: a non-2xx body is streamed like any other.
// There is no retry.
//
// Requests can be routed through a SOCKS5 proxy, or through an embedded Tor
// daemon started with EmbeddedTor.
package transport
