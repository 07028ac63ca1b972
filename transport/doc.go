// Package transport provides the network collaborator behind the command bus.
//
// # Overview
//
// A Manager implements the collaborator contract the bus consumes: handler
// registration by command, text and raw byte sends, and shutdown. It moves
// frames over a Link and dispatches inbound text frames to handlers.
//
//	┌──────────┐  On / SendText / SendBytes  ┌─────────┐  frames  ┌──────┐
//	│  netbus  │ ──────────────────────────> │ Manager │ <──────> │ Link │
//	└──────────┘                             └─────────┘          └──────┘
//
// # Available Links
//
//   - MemoryLink: in-process Switch, for tests and single-process use
//   - UDPLink: one datagram per frame, optional outbound rate limit
//   - NATSLink: frames published to per-address NATS subjects
//   - WebSocketLink: binary WebSocket messages, peers dialed on demand
//
// # Frames
//
// Text frames carry a 4-byte 0xFF marker, the command, a separator and the
// data. Receivers split the command at the first space or newline, so text
// sent with any other separator arrives as a bare command. Raw frames sent
// with SendBytes are passed through untouched; the receiving Manager
// dispatches them only if they happen to be well-formed text frames.
//
// # Handler Policy
//
// One handler per command. Registering a command again replaces the previous
// handler. The cancel func returned by On removes only its own registration.
// Handlers run on the Manager's receive goroutine, one at a time; a
// panicking handler is recovered and logged.
package transport
