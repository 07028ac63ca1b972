// Package errors provides the structured error taxonomy used across netbus.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: the peer or network may recover (unreachable, timeouts)
//   - Permanent: retrying the same call will not help (bad address, closed bus)
//   - Resource: local capacity was exhausted (full inbox, rate limit)
//
// Internal failures (recovered handler panics, broken invariants) use
// CategoryInternal.
//
// # Usage
//
// Transports return *Error values; the command bus converts them to the
// boolean results of its public API and logs the code:
//
//	err := errors.New(errors.CodeUnreachable, "no route to peer",
//	    errors.WithAddress(to.String()))
//
//	if errors.Is(err, errors.CodeClosed) {
//	    // stop sending
//	}
//
// Wrap attaches a code to a lower-level error while keeping the chain intact
// for errors.As and errors.Is from the standard library:
//
//	if _, err := conn.WriteToUDP(frame, ra); err != nil {
//	    return errors.Wrap(err, errors.CodeNetwork, "udp write")
//	}
package errors
